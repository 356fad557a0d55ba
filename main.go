package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"myvoice/audio"
	"myvoice/beep"
	"myvoice/config"
	"myvoice/doctor"
	"myvoice/hotkey"
	"myvoice/keyboard"
	"myvoice/log"
	"myvoice/login"
	"myvoice/notify"
	"myvoice/shutdown"
	"myvoice/speech"
	"myvoice/tray"
)

var version = "dev"

const authorizationTimeout = 5 * time.Second

var shutdownOnce sync.Once

func gracefulShutdown(ctrl *controller, code int) {
	shutdownOnce.Do(func() {
		if ctrl != nil {
			ctrl.Close()
			log.AppEnd(ctrl.Committed())
		}
		log.Close()
		if tuiProgram != nil {
			tuiProgram.Quit()
		}
		os.Exit(code)
	})
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

func modeLineText(provider string, opts dictationOptions) string {
	insert := "type"
	if opts.Paste {
		insert = "paste"
	}
	return fmt.Sprintf("[%s | %s | %s]", provider, opts.Locale, insert)
}

func optionsFrom(cfg config.Config) dictationOptions {
	return dictationOptions{Locale: cfg.Locale, Delay: cfg.Delay, Paste: cfg.Paste}
}

func run() {
	flags, err := config.ParseFlags("myvoice", os.Args[1:], os.Stderr)
	if errors.Is(err, config.ErrHelp) {
		os.Exit(0)
	}
	if errors.Is(err, config.ErrInvalid) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	if err != nil {
		os.Exit(2)
	}

	if flags.Version {
		fmt.Printf("myvoice %s\n", version)
		os.Exit(0)
	}

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if flags.Login != "" {
		if err := login.Set(flags.Login == "on"); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Launch at login: %s\n", flags.Login)
		os.Exit(0)
	}

	configDir, err := env.Dir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve config directory: %v\n", err)
		os.Exit(1)
	}
	settings, err := config.LoadSettings(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
	}
	cfg, err := config.Resolve(flags, env, settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg.Dir = configDir

	logPath, err := log.ResolveDir(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	if flags.Doctor {
		os.Exit(doctor.Run(doctor.Options{
			Config:  cfg,
			Version: version,
		}))
	}

	// Resolve -setup into a saved device before daemonizing
	if flags.Setup {
		actx, err := audio.NewContext()
		if err != nil {
			fmt.Printf("Error initializing audio: %v\n", err)
			os.Exit(1)
		}
		dev, err := audio.SelectDevice(actx, cfg.Device)
		actx.Close()
		switch {
		case errors.Is(err, audio.ErrPickerCancelled):
			os.Exit(130)
		case err != nil:
			fmt.Printf("Warning: device selection failed: %v\n", err)
		case dev != nil:
			cfg.Device = dev.Name
			settings.Device = dev.Name
			if err := config.SaveSettings(configDir, settings); err != nil {
				fmt.Printf("Warning: could not save settings: %v\n", err)
			}
		}
	}

	// Daemonize in non-TUI mode: re-exec in background, return shell prompt
	if !flags.TUI && flags.Test == "" && os.Getenv("_MYVOICE_BG") == "" {
		args := os.Args[1:]
		if flags.Setup {
			args = append(args, "-device", cfg.Device)
		}
		exe, _ := os.Executable()
		cmd := exec.Command(exe, args...)
		cmd.Env = append(os.Environ(), "_MYVOICE_BG=1")
		devnull, _ := os.Open(os.DevNull)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = devnull, devnull, devnull
		if err := cmd.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	if flags.Test != "" {
		runTestMode(flags.Test, cfg)
		return
	}

	provider, err := speech.NewProvider(cfg.Provider, cfg.Credentials)
	if err != nil {
		log.Errorf("provider init error: %v", err)
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	log.AppStart(provider.Name(), cfg.Locale, cfg.Key)

	notifier := notify.New(true)

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	dev, err := audio.FindDevice(actx, cfg.Device)
	if err != nil {
		log.Warnf("%v, using system default", err)
		dev = nil
	}

	rec := speech.NewRecognizer(provider, actx)
	rec.SetDevice(dev)

	authCtx, cancelAuth := context.WithTimeout(context.Background(), authorizationTimeout)
	granted := <-rec.RequestAuthorization(authCtx)
	cancelAuth()
	log.Permission("speech", granted)
	if !granted {
		notifier.Permission("Speech recognition", "check the API key and microphone")
	}

	kb := keyboard.New(notifier)
	defer kb.Close()
	if ok := kb.CheckPermission(); !ok {
		log.Permission("keyboard", false)
		kb.RequestPermission()
	}

	combo, _ := hotkey.ParseCombo(cfg.Key)
	opts := optionsFrom(cfg)

	var sink EventSink = logSink{}
	if flags.TUI {
		sink = tuiSink{}
	}

	var ctrl *controller
	trayQuit := make(chan struct{})
	var trayQuitOnce sync.Once
	tr := tray.New(tray.Callbacks{
		OnToggle: func() { ctrl.Toggle() },
		OnLogin:  login.Set,
		OnQuit:   func() { trayQuitOnce.Do(func() { close(trayQuit) }) },
	}, login.Enabled())
	showTray := flags.Tray && tray.Available()
	if showTray {
		sink = multiSink{sink, traySink{tr}}
	}
	ctrl = newController(rec, kb, sink, notifier, opts)

	tuiDone := make(chan struct{})
	if flags.TUI {
		tuiMu.Lock()
		tuiProgram = newTUIProgram(combo.String(), ctrl.Cancel)
		tuiMu.Unlock()
		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
			}
			close(tuiDone)
		}()
	}

	go beep.Init()

	hotkeys, err := bindHotkey(hotkey.NewComboMonitor, combo, cfg.TapThreshold)
	if err != nil {
		log.Errorf("hotkey register error: %v", err)
		if tuiProgram != nil {
			tuiProgram.Quit()
			<-tuiDone
		}
		fmt.Printf("Error registering hotkey: %v\n", err)
		os.Exit(1)
	}

	if showTray {
		if err := tr.Start(); err != nil {
			log.Warnf("menu bar icon disabled: %v", err)
		}
	}

	sink.ModeLine(modeLineText(provider.Name(), opts))
	sink.DeviceLine(deviceLineText(dev))
	if !granted {
		sink.PermissionWarning("speech recognition unavailable; check the API key and microphone")
	}

	var changes <-chan config.Settings
	if w, err := config.Watch(configDir, 0); err != nil {
		log.Warnf("settings watcher disabled: %v", err)
	} else {
		defer w.Stop()
		changes = w.Changes()
	}

	reload := &reloader{
		flags:      flags,
		env:        env,
		dir:        configDir,
		provider:   provider.Name(),
		cfg:        cfg,
		hotkeys:    hotkeys,
		findDevice: func(name string) (*audio.DeviceInfo, error) { return audio.FindDevice(actx, name) },
		rec:        rec,
		ctrl:       ctrl,
		sink:       sink,
		notifier:   notifier,
	}

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)

	for {
		select {
		case _, ok := <-hotkeys.Taps():
			if !ok {
				log.Error("hotkey watch ended")
				gracefulShutdown(ctrl, 1)
			}
			ctrl.Toggle()

		case s, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if err := reload.apply(s); errors.Is(err, errHotkeyLost) {
				gracefulShutdown(ctrl, 1)
			}

		case <-trayQuit:
			hotkeys.Stop()
			gracefulShutdown(ctrl, 0)

		case <-sigChan:
			hotkeys.Stop()
			gracefulShutdown(ctrl, 0)

		case <-tuiDone:
			hotkeys.Stop()
			gracefulShutdown(ctrl, 0)
		}
	}
}
