// Package doctor runs interactive checks of the three things dictation
// needs: the trigger key, speech recognition and synthetic typing.
package doctor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"myvoice/audio"
	"myvoice/config"
	"myvoice/hotkey"
	"myvoice/keyboard"
	"myvoice/notify"
	"myvoice/shutdown"
	"myvoice/speech"
)

const (
	hotkeyTimeout  = 15 * time.Second
	recordDuration = 3 * time.Second
	focusCountdown = 5
	testString     = "myvoice doctor test"
)

type Options struct {
	Config  config.Config
	Version string
}

// session is the console the checks talk through.
type session struct {
	in  *bufio.Reader
	out io.Writer
}

func (s *session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *session) println(args ...any) {
	fmt.Fprintln(s.out, args...)
}

// confirm asks a yes/no question. Anything other than y/yes is no.
func (s *session) confirm(question string) bool {
	s.printf("%s [y/n]: ", question)
	answer, _ := s.in.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

func (s *session) countdown(n int, sleep time.Duration) {
	for i := n; i > 0; i-- {
		s.printf("  %d...\n", i)
		time.Sleep(sleep)
	}
}

type check struct {
	name string
	run  func(s *session) bool
}

// runChecks stops at the first failure; later checks depend on earlier ones.
func runChecks(s *session, checks []check) int {
	for i, c := range checks {
		s.println()
		s.printf("[%d/%d] %s\n", i+1, len(checks), c.name)
		if !c.run(s) {
			s.println()
			s.println("Some checks failed. See details above.")
			return 1
		}
	}
	s.println()
	s.println("All checks passed!")
	return 0
}

// Run executes interactive diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(opts Options) int {
	resetTerminal()
	setupInterruptHandler()

	s := &session{in: bufio.NewReader(os.Stdin), out: os.Stdout}
	s.printf("myvoice %s doctor - interactive system diagnostics\n", opts.Version)
	s.println("===================================================")

	cfg := opts.Config
	combo, err := hotkey.ParseCombo(cfg.Key)
	if err != nil {
		s.printf("  FAIL: %v\n", err)
		return 1
	}

	kb := keyboard.New(notify.New(true))
	defer kb.Close()

	return runChecks(s, []check{
		{"Trigger key", func(s *session) bool {
			info, err := hotkey.Diagnose(combo)
			if err != nil {
				s.printf("  FAIL: %v\n", err)
				return false
			}
			s.printf("  %s\n", info)
			ok := checkHotkey(s, hotkey.NewComboMonitor(combo, cfg.TapThreshold), combo.String(), hotkeyTimeout)
			resetTerminal()
			return ok
		}},
		{"Speech recognition", func(s *session) bool {
			return checkSpeechLive(s, cfg)
		}},
		{"Keyboard", func(s *session) bool {
			return checkKeyboard(s, kb, cfg.Delay, time.Second) &&
				checkPaste(s, kb, systemClipboard{}, clipboardTimeout)
		}},
	})
}

func setupInterruptHandler() {
	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		resetTerminal()
		fmt.Println("\nInterrupted")
		os.Exit(1)
	}()
}

func checkHotkey(s *session, mon *hotkey.Monitor, label string, timeout time.Duration) bool {
	s.printf("Double-tap %s...\n", label)

	w, err := mon.Start()
	if err != nil {
		s.printf("  FAIL: could not register key: %v\n", err)
		return false
	}
	defer w.Stop()

	select {
	case <-w.Taps():
		s.println("  PASS: double-tap detected")
		return true
	case <-time.After(timeout):
		s.println("  FAIL: timeout waiting for double-tap")
		return false
	}
}

func checkSpeechLive(s *session, cfg config.Config) bool {
	provider, err := speech.NewProvider(cfg.Provider, cfg.Credentials)
	if err != nil {
		s.printf("  FAIL: %v\n", err)
		return false
	}
	actx, err := audio.NewContext()
	if err != nil {
		s.printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer actx.Close()

	rec := speech.NewRecognizer(provider, actx)
	dev, err := audio.FindDevice(actx, cfg.Device)
	if err != nil {
		s.printf("  Warning: %v, using system default\n", err)
	}
	rec.SetDevice(dev)
	return checkSpeech(s, rec, cfg.Locale, recordDuration)
}

func checkSpeech(s *session, rec *speech.Recognizer, locale string, dur time.Duration) bool {
	s.printf("Provider: %s, locale: %s\n", rec.Provider().Name(), locale)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	granted := <-rec.RequestAuthorization(ctx)
	cancel()
	if !granted {
		s.println("  FAIL: speech recognition not authorized (API key or microphone missing)")
		return false
	}
	s.println("  PASS: authorized")

	s.printf("Press Enter and speak for %.0f seconds...", dur.Seconds())
	s.in.ReadString('\n')

	sess, err := rec.Start(context.Background(), locale)
	if err != nil {
		s.printf("  FAIL: %v\n", err)
		return false
	}
	s.printf("  Recording from %s", sess.DeviceName())
	stop := time.AfterFunc(dur, sess.Stop)
	defer stop.Stop()

	var finals []string
	var peak float64
	dots := time.NewTicker(500 * time.Millisecond)
	defer dots.Stop()
	for done := false; !done; {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				done = true
				break
			}
			switch ev.Kind {
			case speech.EventLevel:
				peak = max(peak, ev.Level)
			case speech.EventFinal:
				finals = append(finals, ev.Text)
			case speech.EventError:
				s.printf("\n  FAIL: recognition error: %v\n", ev.Err)
				return false
			}
		case <-dots.C:
			s.printf(".")
		}
	}
	s.println(" done")

	st := sess.Stats()
	s.printf("  peak level %.3f, %.1fs audio sent", peak, st.AudioS)
	if st.ConnectMs > 0 {
		s.printf(", connect %.0fms, finalize %.0fms", st.ConnectMs, st.FinalizeMs)
	}
	s.println()

	text := strings.TrimSpace(strings.Join(finals, " "))
	if text == "" {
		text = "(no speech detected)"
	}
	s.printf("\n  Recognized: %s\n\n", text)
	if s.confirm("Is this correct?") {
		s.println("  PASS: recognition verified by user")
		return true
	}
	s.println("  FAIL: recognition not confirmed")
	return false
}

func checkKeyboard(s *session, kb *keyboard.Keyboard, delay, tick time.Duration) bool {
	if !kb.CheckPermission() {
		s.println("  Input permission missing, requesting it...")
		kb.RequestPermission()
		s.printf("Grant the permission, then press Enter...")
		s.in.ReadString('\n')
		if !kb.CheckPermission() {
			s.println("  FAIL: keyboard permission denied")
			return false
		}
	}
	s.println("  PASS: keyboard permission granted")

	s.println("Focus on a text editor window...")
	s.countdown(focusCountdown, tick)

	if err := kb.Type(context.Background(), testString, delay); err != nil {
		s.printf("  FAIL: typing failed: %v\n", err)
		return false
	}
	resetTerminal()
	s.println()
	if !s.confirm(fmt.Sprintf("Did the text %q appear?", testString)) {
		s.println("  FAIL: typing not confirmed")
		return false
	}
	s.println("  PASS: typing verified by user")
	return true
}
