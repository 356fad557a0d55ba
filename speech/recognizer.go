package speech

import (
	"context"
	"fmt"
	"sync"

	"myvoice/audio"
	"myvoice/encoder"
)

const (
	eventBuffer = 64
	levelBuffer = 16
)

// Recognizer owns at most one recognition session at a time.
type Recognizer struct {
	provider Provider
	audio    audio.Context

	mu     sync.Mutex
	device *audio.DeviceInfo
	active *Session
}

func NewRecognizer(p Provider, ac audio.Context) *Recognizer {
	return &Recognizer{provider: p, audio: ac}
}

// SetDevice selects the capture device for subsequent sessions. nil means
// the system default.
func (r *Recognizer) SetDevice(d *audio.DeviceInfo) {
	r.mu.Lock()
	r.device = d
	r.mu.Unlock()
}

func (r *Recognizer) Provider() Provider {
	return r.provider
}

func (r *Recognizer) authorized() error {
	if r.provider == nil {
		return ErrNoProvider
	}
	if err := r.provider.Ready(); err != nil {
		return err
	}
	if r.audio == nil {
		return ErrNoCaptureInput
	}
	devices, err := r.audio.Devices()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoCaptureInput, err)
	}
	if len(devices) == 0 {
		return ErrNoCaptureInput
	}
	return nil
}

// RequestAuthorization delivers exactly one value and then closes. A
// cancelled ctx delivers false.
func (r *Recognizer) RequestAuthorization(ctx context.Context) <-chan bool {
	out := make(chan bool, 1)
	go func() {
		defer close(out)
		res := make(chan bool, 1)
		go func() { res <- r.authorized() == nil }()
		select {
		case <-ctx.Done():
			out <- false
		case ok := <-res:
			out <- ok
		}
	}()
	return out
}

// IsAvailable reports whether a session could start right now.
func (r *Recognizer) IsAvailable() bool {
	if r.provider == nil || r.provider.Ready() != nil || r.audio == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active == nil
}

func (r *Recognizer) Start(ctx context.Context, locale string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return nil, ErrSessionActive
	}
	if err := r.authorized(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotAuthorized, err)
	}

	stream, err := r.provider.Open(ctx, defaultStreamConfig(locale))
	if err != nil {
		return nil, fmt.Errorf("opening %s stream: %w", r.provider.Name(), err)
	}

	capture, err := r.audio.NewCapture(r.device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("opening capture: %w", err)
	}

	s := &Session{
		r:       r,
		locale:  locale,
		stream:  stream,
		capture: capture,
		events:  make(chan Event, eventBuffer),
		levels:  make(chan float64, levelBuffer),
		done:    make(chan struct{}),
	}
	capture.SetCallback(func(data []byte, _ uint32) {
		stream.Feed(data)
		select {
		case s.levels <- audio.Level(data):
		default:
		}
	})
	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		stream.Close()
		return nil, fmt.Errorf("starting capture: %w", err)
	}

	r.active = s
	go s.run()
	return s, nil
}

// Stop ends the active session, if any, without waiting for it to drain.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	s := r.active
	r.mu.Unlock()
	if s != nil {
		s.Stop()
	}
}

func (r *Recognizer) release(s *Session) {
	r.mu.Lock()
	if r.active == s {
		r.active = nil
	}
	r.mu.Unlock()
}

// Session is one recognition run. Events is closed exactly once when the
// session ends; Done closes right after.
type Session struct {
	r       *Recognizer
	locale  string
	stream  Stream
	capture audio.CaptureDevice

	events chan Event
	levels chan float64
	done   chan struct{}

	stopOnce sync.Once
	closeErr error
	err      error
}

func (s *Session) Events() <-chan Event  { return s.events }
func (s *Session) Done() <-chan struct{} { return s.done }
func (s *Session) Locale() string        { return s.locale }

func (s *Session) DeviceName() string {
	return s.capture.DeviceName()
}

// Err is the terminal error, valid after Done is closed.
func (s *Session) Err() error {
	<-s.done
	return s.err
}

// Stats reports transfer metrics, valid after Done is closed.
func (s *Session) Stats() Stats {
	<-s.done
	if st, ok := s.stream.(statser); ok {
		return st.Stats()
	}
	return Stats{}
}

// Stop flushes audio to the provider in the background. Remaining results
// are delivered before Events closes. The recognizer is free for a new
// session as soon as Stop returns; this one drains detached.
func (s *Session) Stop() {
	s.r.release(s)
	go s.stopOnce.Do(s.shutdown)
}

func (s *Session) shutdown() {
	s.capture.ClearCallback()
	s.capture.Stop()
	s.capture.Close()
	s.closeErr = s.stream.Close()
}

func (s *Session) run() {
	defer close(s.done)
	defer close(s.events)
	defer s.r.release(s)

	results := s.stream.Results()
	for results != nil {
		select {
		case lvl := <-s.levels:
			select {
			case s.events <- Event{Kind: EventLevel, Level: lvl}:
			default:
			}
		case res, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			s.deliver(res)
		}
	}

	// Results closed: either shutdown drove the stream closed or the
	// provider ended it. Both paths converge here.
	s.stopOnce.Do(s.shutdown)
	if s.closeErr != nil {
		s.err = s.closeErr
		s.events <- Event{Kind: EventError, Err: s.closeErr}
	}
}

func (s *Session) deliver(res Result) {
	if res.Text == "" {
		return
	}
	kind := EventPartial
	if res.Final {
		kind = EventFinal
	}
	s.events <- Event{Kind: kind, Text: res.Text}
}
