package main

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myvoice/audio"
	"myvoice/beep"
	"myvoice/keyboard"
	"myvoice/speech"
)

type recordingSink struct {
	mu        sync.Mutex
	states    []dictationState
	partials  []string
	committed []string
	errs      []error
	warnings  []string
	idle      chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{idle: make(chan struct{}, 16)}
}

func (s *recordingSink) StateChanged(st dictationState) {
	s.mu.Lock()
	s.states = append(s.states, st)
	s.mu.Unlock()
	if st == stateIdle {
		s.idle <- struct{}{}
	}
}
func (s *recordingSink) RecordingTick(time.Duration) {}
func (s *recordingSink) AudioLevel(float64)          {}
func (s *recordingSink) ModeLine(string)             {}
func (s *recordingSink) DeviceLine(string)           {}

func (s *recordingSink) Partial(text string) {
	s.mu.Lock()
	s.partials = append(s.partials, text)
	s.mu.Unlock()
}

func (s *recordingSink) Committed(text string) {
	s.mu.Lock()
	s.committed = append(s.committed, text)
	s.mu.Unlock()
}

func (s *recordingSink) Error(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

func (s *recordingSink) PermissionWarning(msg string) {
	s.mu.Lock()
	s.warnings = append(s.warnings, msg)
	s.mu.Unlock()
}

func (s *recordingSink) snapshot() (states []dictationState, committed []string, errs []error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dictationState(nil), s.states...),
		append([]string(nil), s.committed...),
		append([]error(nil), s.errs...)
}

func (s *recordingSink) waitIdle(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case <-s.idle:
	case <-time.After(within):
		t.Fatal("controller did not return to idle")
	}
}

func loudPCM(samples int) []byte {
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(12000)
		if i%2 == 0 {
			v = -12000
		}
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

type harness struct {
	ctrl *controller
	sink *recordingSink
	em   *keyboard.FakeEmitter
	clip *keyboard.FakeClipboard
	perm *keyboard.FakePermission
	cues *cueLog
}

type cueLog struct {
	mu   sync.Mutex
	cues []beep.Cue
}

func (l *cueLog) play(c beep.Cue) {
	l.mu.Lock()
	l.cues = append(l.cues, c)
	l.mu.Unlock()
}

func (l *cueLog) list() []beep.Cue {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]beep.Cue(nil), l.cues...)
}

func newHarness(t *testing.T, p *speech.FakeProvider, opts dictationOptions) *harness {
	t.Helper()
	rec := speech.NewRecognizer(p, audio.NewFakeContextPCM(loudPCM(8000), false))
	em := &keyboard.FakeEmitter{}
	clip := &keyboard.FakeClipboard{}
	perm := &keyboard.FakePermission{}
	perm.Set(true)
	kb := keyboard.NewFake(em, clip, perm)

	h := &harness{sink: newRecordingSink(), em: em, clip: clip, perm: perm, cues: &cueLog{}}
	if opts.Locale == "" {
		opts.Locale = speech.DefaultLocale
	}
	h.ctrl = newController(rec, kb, h.sink, nil, opts)
	h.ctrl.play = h.cues.play
	h.ctrl.safety = 300 * time.Millisecond
	t.Cleanup(h.ctrl.Close)
	return h
}

func TestTypesFinalsDuringAndAfterRecording(t *testing.T) {
	p := &speech.FakeProvider{
		Live: []speech.Result{{Text: "hel"}, {Text: "hello world", Final: true}},
		Tail: []speech.Result{{Text: "again", Final: true}},
	}
	h := newHarness(t, p, dictationOptions{})

	h.ctrl.Toggle()
	require.Equal(t, stateRecording, h.ctrl.State())

	require.Eventually(t, func() bool { return h.em.Typed() == "hello world" }, 2*time.Second, 5*time.Millisecond)

	h.ctrl.Toggle()
	h.sink.waitIdle(t, 2*time.Second)

	assert.Equal(t, "hello world again", h.em.Typed())
	states, committed, errs := h.sink.snapshot()
	assert.Equal(t, []dictationState{stateRecording, stateStopping, stateIdle}, states)
	assert.Equal(t, []string{"hello world", "again"}, committed)
	assert.Empty(t, errs)
	assert.Equal(t, 2, h.ctrl.Committed())
	assert.Equal(t, []beep.Cue{beep.CueStart, beep.CueEnd}, h.cues.list())
	assert.Equal(t, []speech.StreamConfig{{Locale: speech.DefaultLocale, SampleRate: 16000, Channels: 1}}, p.Opened())
}

func TestPasteModeUsesClipboard(t *testing.T) {
	p := &speech.FakeProvider{Tail: []speech.Result{{Text: "pasted text", Final: true}}}
	h := newHarness(t, p, dictationOptions{Paste: true})

	h.ctrl.Toggle()
	h.ctrl.Toggle()
	h.sink.waitIdle(t, 2*time.Second)

	assert.Empty(t, h.em.Typed())
	assert.Equal(t, []string{"ctrl+v"}, h.em.Chords())
	text, _ := h.clip.Read()
	assert.Equal(t, "pasted text", text)
}

func TestUntypeableTextFallsBackToPaste(t *testing.T) {
	p := &speech.FakeProvider{Tail: []speech.Result{{Text: "naïve", Final: true}}}
	h := newHarness(t, p, dictationOptions{})
	h.em.Unmapped = "ï"

	h.ctrl.Toggle()
	h.ctrl.Toggle()
	h.sink.waitIdle(t, 2*time.Second)

	assert.Empty(t, h.em.Typed(), "nothing typed key by key")
	assert.Equal(t, []string{"ctrl+v"}, h.em.Chords())
}

func TestMissingPermissionStaysIdle(t *testing.T) {
	p := &speech.FakeProvider{}
	h := newHarness(t, p, dictationOptions{})
	h.perm.Set(false)

	h.ctrl.Toggle()

	assert.Equal(t, stateIdle, h.ctrl.State())
	assert.Empty(t, p.Opened(), "no session without permission")
	require.Eventually(t, func() bool { return h.perm.Requests() == 1 }, time.Second, 5*time.Millisecond)
	h.sink.mu.Lock()
	assert.Len(t, h.sink.warnings, 1)
	h.sink.mu.Unlock()
}

func TestStartFailureReportsError(t *testing.T) {
	p := &speech.FakeProvider{ReadyErr: speech.ErrNoCredentials}
	h := newHarness(t, p, dictationOptions{})

	h.ctrl.Toggle()

	assert.Equal(t, stateIdle, h.ctrl.State())
	_, _, errs := h.sink.snapshot()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], speech.ErrNotAuthorized)
	assert.Equal(t, []beep.Cue{beep.CueError}, h.cues.list())
}

func TestProviderErrorResetsToIdle(t *testing.T) {
	boom := errors.New("socket closed")
	p := &speech.FakeProvider{Live: []speech.Result{{Text: "partial"}}, Err: boom}
	h := newHarness(t, p, dictationOptions{})

	h.ctrl.Toggle()
	h.sink.waitIdle(t, 2*time.Second)

	_, committed, errs := h.sink.snapshot()
	assert.Empty(t, committed)
	require.NotEmpty(t, errs)
	assert.ErrorIs(t, errs[0], boom)
	assert.Contains(t, h.cues.list(), beep.CueError)
}

func TestCancelDropsTranscript(t *testing.T) {
	p := &speech.FakeProvider{Tail: []speech.Result{{Text: "never typed", Final: true}}}
	h := newHarness(t, p, dictationOptions{})

	h.ctrl.Toggle()
	h.ctrl.Cancel()
	h.sink.waitIdle(t, time.Second)

	h.ctrl.Close()
	assert.Empty(t, h.em.Typed())
	_, committed, _ := h.sink.snapshot()
	assert.Empty(t, committed)
}

func TestTapWhileStoppingIgnored(t *testing.T) {
	p := &speech.FakeProvider{}
	h := newHarness(t, p, dictationOptions{})

	h.ctrl.mu.Lock()
	h.ctrl.state = stateStopping
	h.ctrl.mu.Unlock()

	h.ctrl.Toggle()
	assert.Equal(t, stateStopping, h.ctrl.State())
	assert.Empty(t, p.Opened())
}

func TestSilenceStopsRecording(t *testing.T) {
	p := &speech.FakeProvider{Tail: []speech.Result{{Text: "done", Final: true}}}
	h := newHarness(t, p, dictationOptions{})

	// The fake capture plays a short tone, then silence.
	h.ctrl.Toggle()
	h.sink.waitIdle(t, silenceTimeout+2*time.Second)

	states, committed, _ := h.sink.snapshot()
	assert.Equal(t, []dictationState{stateRecording, stateStopping, stateIdle}, states)
	assert.Equal(t, []string{"done"}, committed)
}

func TestStoppingTimeoutAllowsRestart(t *testing.T) {
	p := &speech.FakeProvider{
		Tail:       []speech.Result{{Text: "late", Final: true}},
		CloseDelay: time.Second,
	}
	h := newHarness(t, p, dictationOptions{})

	h.ctrl.Toggle()
	h.ctrl.Toggle()
	require.Equal(t, stateStopping, h.ctrl.State())
	h.sink.waitIdle(t, time.Second)

	// The provider is still finalizing the first recording.
	h.ctrl.Toggle()
	assert.Equal(t, stateRecording, h.ctrl.State())
	_, _, errs := h.sink.snapshot()
	assert.Empty(t, errs)
	assert.Equal(t, []beep.Cue{beep.CueStart, beep.CueEnd, beep.CueStart}, h.cues.list())
	assert.Len(t, p.Opened(), 2)

	require.Eventually(t, func() bool { return h.em.Typed() == "late" }, 2*time.Second, 10*time.Millisecond)
}

func TestDictationStateString(t *testing.T) {
	assert.Equal(t, "idle", stateIdle.String())
	assert.Equal(t, "recording", stateRecording.String())
	assert.Equal(t, "stopping", stateStopping.String())
}
