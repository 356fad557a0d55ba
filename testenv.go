package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"myvoice/audio"
	"myvoice/beep"
	"myvoice/config"
	"myvoice/hotkey"
	"myvoice/keyboard"
	"myvoice/log"
	"myvoice/speech"
)

// fakeTranscriptEnv makes test mode run without a cloud provider: the value
// is returned as the final transcript of every session.
const fakeTranscriptEnv = "MYVOICE_FAKE_TRANSCRIPT"

// testSink prints controller events to stdout, one per line, and signals
// each return to idle.
type testSink struct {
	mu   sync.Mutex
	idle chan struct{}
}

func (s *testSink) println(format string, args ...any) {
	s.mu.Lock()
	fmt.Printf(format+"\n", args...)
	s.mu.Unlock()
}

func (s *testSink) StateChanged(st dictationState) {
	s.println("STATE %s", st)
	if st == stateIdle {
		select {
		case s.idle <- struct{}{}:
		default:
		}
	}
}
func (s *testSink) RecordingTick(time.Duration)  {}
func (s *testSink) AudioLevel(float64)           {}
func (s *testSink) Partial(text string)          { s.println("PARTIAL %s", text) }
func (s *testSink) Committed(text string)        { s.println("FINAL %s", text) }
func (s *testSink) Error(err error)              { s.println("ERROR %v", err) }
func (s *testSink) PermissionWarning(msg string) { s.println("PERMISSION %s", msg) }
func (s *testSink) ModeLine(text string)         { s.println("MODE %s", text) }
func (s *testSink) DeviceLine(text string)       { s.println("DEVICE %s", text) }

func testProvider(cfg config.Config) (speech.Provider, error) {
	if text, ok := os.LookupEnv(fakeTranscriptEnv); ok {
		return &speech.FakeProvider{Tail: []speech.Result{{Text: text, Final: true}}}, nil
	}
	return speech.NewProvider(cfg.Provider, cfg.Credentials)
}

func runTestMode(wavPath string, cfg config.Config) {
	beep.Disable()
	defer log.Close()

	provider, err := testProvider(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log.AppStart(provider.Name(), cfg.Locale, cfg.Key)

	_, streaming := provider.(*speech.Deepgram)
	fakeCtx, err := audio.NewFakeContext(wavPath, streaming)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}

	rec := speech.NewRecognizer(provider, fakeCtx)
	em := &keyboard.FakeEmitter{}
	perm := &keyboard.FakePermission{}
	perm.Set(true)
	kb := keyboard.NewFake(em, &keyboard.FakeClipboard{}, perm)

	sink := &testSink{idle: make(chan struct{}, 1)}
	opts := optionsFrom(cfg)
	ctrl := newController(rec, kb, sink, nil, opts)
	sink.ModeLine(modeLineText(provider.Name(), opts))

	hk := hotkey.NewFake()
	mon := hotkey.NewMonitor(func() hotkey.Hotkey { return hk }, cfg.TapThreshold)
	watch, err := mon.Start()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer watch.Stop()

	quit := func() {
		ctrl.Close()
		fmt.Printf("TYPED %s\n", em.Typed())
		log.AppEnd(ctrl.Committed())
		log.Close()
		os.Exit(0)
	}

	// Stdin driver in background: hotkey gestures, waits, quit
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			cmd := strings.TrimSpace(scanner.Text())
			switch cmd {
			case "TAP":
				hk.SimTap()
				hk.SimTap()
			case "KEYDOWN":
				hk.SimKeydown()
			case "KEYUP":
				hk.SimKeyup()
			case "CANCEL":
				ctrl.Cancel()
			case "WAIT":
				select {
				case <-sink.idle:
				case <-time.After(30 * time.Second):
					fmt.Fprintln(os.Stderr, "WAIT timed out")
				}
			case "WAIT_AUDIO_DONE":
				if c := fakeCtx.Last(); c != nil {
					<-c.AudioDone()
				}
			case "QUIT":
				quit()
			default:
				if ms, ok := strings.CutPrefix(cmd, "SLEEP "); ok {
					if n, err := strconv.Atoi(ms); err == nil {
						time.Sleep(time.Duration(n) * time.Millisecond)
					}
				}
			}
		}
		quit()
	}()

	// Event loop, same shape as run()
	for range watch.Taps() {
		ctrl.Toggle()
	}
}
