package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"myvoice/beep"
	"myvoice/keyboard"
	"myvoice/log"
	"myvoice/notify"
	"myvoice/speech"
)

type dictationState int

const (
	stateIdle dictationState = iota
	stateRecording
	stateStopping
)

func (s dictationState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateRecording:
		return "recording"
	case stateStopping:
		return "stopping"
	}
	return "unknown"
}

// Time allowed between stop and the session draining before the
// controller gives up and returns to idle.
const stoppingTimeout = 2 * time.Second

// typist is the part of keyboard.Keyboard the controller drives.
type typist interface {
	CheckPermission() bool
	RequestPermission()
	CanType(text string) bool
	Type(ctx context.Context, text string, delay time.Duration) error
	Paste(text string) error
}

type dictationOptions struct {
	Locale string
	Delay  time.Duration
	Paste  bool
}

// controller turns double-taps into recognition sessions and types each
// final transcript into the focused application.
type controller struct {
	rec      *speech.Recognizer
	kb       typist
	sink     EventSink
	notifier *notify.Notifier
	play     func(beep.Cue)
	safety   time.Duration

	mu        sync.Mutex
	opts      dictationOptions
	state     dictationState
	cur       *dictation
	committed int

	wg sync.WaitGroup
}

// dictation is one recording from start until its session drains.
type dictation struct {
	sess   *speech.Session
	ctx    context.Context
	cancel context.CancelFunc
	start  time.Time
	safety *time.Timer

	// touched only by the watch goroutine
	typed int
}

func newController(rec *speech.Recognizer, kb typist, sink EventSink, n *notify.Notifier, opts dictationOptions) *controller {
	if sink == nil {
		sink = logSink{}
	}
	return &controller{
		rec:      rec,
		kb:       kb,
		sink:     sink,
		notifier: n,
		play:     beep.Play,
		safety:   stoppingTimeout,
		opts:     opts,
	}
}

func (c *controller) SetOptions(o dictationOptions) {
	c.mu.Lock()
	c.opts = o
	c.mu.Unlock()
}

func (c *controller) Options() dictationOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

func (c *controller) State() dictationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Committed counts transcripts inserted since startup.
func (c *controller) Committed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed
}

// Toggle is bound to the double-tap gesture. Taps while stopping are
// ignored.
func (c *controller) Toggle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case stateIdle:
		c.startLocked()
	case stateRecording:
		c.stopLocked("toggle")
	}
}

// Cancel drops the current dictation. Nothing further is typed.
func (c *controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.cur
	if d == nil {
		return
	}
	if c.state == stateRecording {
		c.play(beep.CueEnd)
	}
	d.cancel()
	d.sess.Stop()
	c.finishLocked(d, "cancelled")
}

// Close cancels any dictation and waits briefly for its session to drain.
func (c *controller) Close() {
	c.Cancel()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(c.safety + time.Second):
		log.Warn("dictation session did not drain before exit")
	}
}

func (c *controller) startLocked() {
	if !c.kb.CheckPermission() {
		log.Permission("keyboard", false)
		c.kb.RequestPermission()
		c.sink.PermissionWarning("keyboard permission required; grant it and double-tap again")
		return
	}

	sess, err := c.rec.Start(context.Background(), c.opts.Locale)
	if err != nil {
		log.Errorf("dictation start: %v", err)
		c.sink.Error(err)
		c.notifier.Error(err.Error())
		c.play(beep.CueError)
		return
	}
	log.Info("recording_device: " + sess.DeviceName())

	ctx, cancel := context.WithCancel(context.Background())
	d := &dictation{sess: sess, ctx: ctx, cancel: cancel, start: time.Now()}
	c.cur = d
	c.setStateLocked(stateRecording, "toggle")
	c.play(beep.CueStart)

	c.wg.Add(1)
	go c.watch(d)
}

func (c *controller) stopLocked(reason string) {
	if c.state != stateRecording {
		return
	}
	d := c.cur
	c.setStateLocked(stateStopping, reason)
	c.play(beep.CueEnd)
	d.sess.Stop()
	d.safety = time.AfterFunc(c.safety, func() { c.expire(d) })
}

func (c *controller) expire(d *dictation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != d || c.state != stateStopping {
		return
	}
	log.Warnf("no final result within %v", c.safety)
	c.finishLocked(d, "timeout")
}

func (c *controller) finishLocked(d *dictation, reason string) {
	if d.safety != nil {
		d.safety.Stop()
	}
	c.cur = nil
	c.setStateLocked(stateIdle, reason)
}

func (c *controller) setStateLocked(to dictationState, reason string) {
	if c.state == to {
		return
	}
	log.StateChange(c.state.String(), to.String(), reason)
	c.state = to
	c.sink.StateChanged(to)
}

func (c *controller) owns(d *dictation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur == d
}

func (c *controller) watch(d *dictation) {
	defer c.wg.Done()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	mon := newSilenceMonitor(d.start)

	events := d.sess.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				c.ended(d)
				return
			}
			switch ev.Kind {
			case speech.EventLevel:
				mon.Level(time.Now(), ev.Level)
				if c.owns(d) {
					c.sink.AudioLevel(ev.Level)
				}
			case speech.EventPartial:
				if c.owns(d) {
					c.sink.Partial(ev.Text)
				}
			case speech.EventFinal:
				c.commit(d, ev.Text)
			case speech.EventError:
				c.fail(d, ev.Err)
			}

		case now := <-ticker.C:
			c.mu.Lock()
			if c.cur == d && c.state == stateRecording {
				c.sink.RecordingTick(now.Sub(d.start))
				if mon.Expired(now) {
					log.Infof("silence for %v, stopping", mon.Quiet(now).Round(time.Millisecond))
					c.stopLocked("silence")
				}
			}
			c.mu.Unlock()
		}
	}
}

// commit inserts one final transcript. Consecutive finals of a dictation
// are separated by a space. Finals from a dictation that hit the stopping
// timeout are still typed; cancelled ones are dropped.
func (c *controller) commit(d *dictation, text string) {
	text = strings.TrimSpace(text)
	if text == "" || d.ctx.Err() != nil {
		return
	}
	out := text
	if d.typed > 0 {
		out = " " + text
	}

	opts := c.Options()
	if err := c.insert(d.ctx, out, opts); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Errorf("inserting transcript: %v", err)
		c.sink.Error(err)
		c.play(beep.CueError)
		if errors.Is(err, keyboard.ErrPermissionDenied) {
			c.kb.RequestPermission()
		}
		return
	}
	d.typed++
	log.TranscriptionText(text)

	c.mu.Lock()
	c.committed++
	c.mu.Unlock()
	c.sink.Committed(text)
}

func (c *controller) insert(ctx context.Context, text string, opts dictationOptions) error {
	if opts.Paste || !c.kb.CanType(text) {
		return c.kb.Paste(text)
	}
	err := c.kb.Type(ctx, text, opts.Delay)
	if errors.Is(err, keyboard.ErrUnsupportedChars) {
		log.Warnf("typing skipped characters: %v", err)
		return nil
	}
	return err
}

func (c *controller) fail(d *dictation, err error) {
	log.Errorf("recognition error: %v", err)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != d {
		return
	}
	c.sink.Error(err)
	c.notifier.Error(err.Error())
	c.play(beep.CueError)
	d.sess.Stop()
	c.finishLocked(d, "error")
}

func (c *controller) ended(d *dictation) {
	d.cancel()
	log.SessionMetrics(c.rec.Provider().Name(), d.sess.Locale(), log.SessionStats(d.sess.Stats()))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != d {
		return
	}
	if c.state == stateRecording {
		c.play(beep.CueEnd)
	}
	c.finishLocked(d, "session ended")
}
