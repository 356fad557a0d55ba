package main

import (
	"errors"
	"fmt"
	"time"

	"myvoice/audio"
	"myvoice/config"
	"myvoice/hotkey"
	"myvoice/log"
)

// errHotkeyLost means neither the new nor the previous trigger key could
// be registered.
var errHotkeyLost = errors.New("hotkey lost")

// hotkeyBinding owns the registered trigger key.
type hotkeyBinding struct {
	monitorFor func(hotkey.Combo, time.Duration) *hotkey.Monitor
	mon        *hotkey.Monitor
	watch      *hotkey.Watch
}

func bindHotkey(monitorFor func(hotkey.Combo, time.Duration) *hotkey.Monitor, c hotkey.Combo, threshold time.Duration) (*hotkeyBinding, error) {
	mon := monitorFor(c, threshold)
	w, err := mon.Start()
	if err != nil {
		return nil, err
	}
	return &hotkeyBinding{monitorFor: monitorFor, mon: mon, watch: w}, nil
}

// Taps must be re-read after rebind.
func (b *hotkeyBinding) Taps() <-chan struct{} { return b.watch.Taps() }

func (b *hotkeyBinding) Stop() { b.watch.Stop() }

// rebind swaps to c. The previous binding is restored if c cannot be
// registered.
func (b *hotkeyBinding) rebind(c hotkey.Combo, threshold time.Duration) error {
	b.watch.Stop()
	next := b.monitorFor(c, threshold)
	w, err := next.Start()
	if err != nil {
		old, rerr := b.mon.Start()
		if rerr != nil {
			return fmt.Errorf("%w: %s: %v; restore: %v", errHotkeyLost, c, err, rerr)
		}
		b.watch = old
		return fmt.Errorf("register %s: %w", c, err)
	}
	b.mon, b.watch = next, w
	return nil
}

type deviceSetter interface {
	SetDevice(d *audio.DeviceInfo)
}

type optionsSetter interface {
	SetOptions(o dictationOptions)
}

type infoNotifier interface {
	Info(msg string)
}

// reloader applies a changed settings file to the running daemon.
type reloader struct {
	flags    *config.Flags
	env      config.Env
	dir      string
	provider string
	cfg      config.Config

	hotkeys    *hotkeyBinding
	findDevice func(name string) (*audio.DeviceInfo, error)
	rec        deviceSetter
	ctrl       optionsSetter
	sink       EventSink
	notifier   infoNotifier
}

// apply resolves s against the command line and environment and pushes
// every change. Rejected settings leave the running config untouched; a
// failed hotkey change keeps the old key and still applies the rest.
// Only errHotkeyLost is fatal.
func (r *reloader) apply(s config.Settings) error {
	next, err := config.Resolve(r.flags, r.env, s)
	if err != nil {
		log.Errorf("settings reload rejected: %v", err)
		r.sink.Error(err)
		return err
	}
	next.Dir = r.dir

	if next.Key != r.cfg.Key || next.TapThreshold != r.cfg.TapThreshold {
		combo, err := hotkey.ParseCombo(next.Key)
		if err == nil {
			err = r.hotkeys.rebind(combo, next.TapThreshold)
		}
		switch {
		case errors.Is(err, errHotkeyLost):
			log.Errorf("hotkey: %v", err)
			return err
		case err != nil:
			log.Errorf("hotkey rebind: %v", err)
			r.sink.Error(fmt.Errorf("hotkey unchanged: %w", err))
			next.Key, next.TapThreshold = r.cfg.Key, r.cfg.TapThreshold
		default:
			log.Infof("hotkey rebound to %s (tap %v)", combo, next.TapThreshold)
			r.notifier.Info("Trigger key is now " + combo.String())
		}
	}

	if next.Device != r.cfg.Device {
		d, err := r.findDevice(next.Device)
		if err != nil {
			log.Warnf("%v, using system default", err)
		}
		r.rec.SetDevice(d)
		line := deviceLineText(d)
		log.Info("device_switch: " + line)
		r.sink.DeviceLine(line)
		name := "system default"
		if d != nil {
			name = d.Name
		}
		r.notifier.Info("Microphone: " + name)
	}

	r.cfg = next
	opts := optionsFrom(next)
	r.ctrl.SetOptions(opts)
	r.sink.ModeLine(modeLineText(r.provider, opts))
	log.Info("settings reloaded")
	return nil
}
