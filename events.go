package main

import (
	"time"

	"myvoice/log"
	"myvoice/tray"
)

// EventSink abstracts the display layer so the TUI and headless mode
// receive the same dictation events.
type EventSink interface {
	StateChanged(s dictationState)
	RecordingTick(elapsed time.Duration)
	AudioLevel(level float64)
	Partial(text string)
	Committed(text string)
	Error(err error)
	PermissionWarning(msg string)
	ModeLine(text string)
	DeviceLine(text string)
}

// logSink is used without a TUI. Most events are already logged by the
// controller, so only text is recorded here.
type logSink struct{}

func (logSink) StateChanged(dictationState)  {}
func (logSink) RecordingTick(time.Duration)  {}
func (logSink) AudioLevel(float64)           {}
func (logSink) Partial(string)               {}
func (logSink) Committed(string)             {}
func (logSink) Error(error)                  {}
func (logSink) PermissionWarning(msg string) { log.Warn(msg) }
func (logSink) ModeLine(text string)         { log.Info("mode: " + text) }
func (logSink) DeviceLine(text string)       { log.Info(text) }

// traySink mirrors status into the menu bar icon.
type traySink struct{ t *tray.Tray }

func (s traySink) StateChanged(st dictationState) {
	switch st {
	case stateRecording:
		s.t.SetState(tray.StateRecording)
	case stateStopping:
		s.t.SetState(tray.StateStopping)
	default:
		s.t.SetState(tray.StateIdle)
	}
}
func (traySink) RecordingTick(time.Duration)    {}
func (traySink) AudioLevel(float64)             {}
func (traySink) Partial(string)                 {}
func (traySink) Committed(string)               {}
func (s traySink) Error(err error)              { s.t.SetError(err.Error()) }
func (s traySink) PermissionWarning(msg string) { s.t.SetError(msg) }
func (s traySink) ModeLine(text string)         { s.t.SetModeLine(text) }
func (s traySink) DeviceLine(text string)       { s.t.SetDeviceLine(text) }

// multiSink fans every event out in order.
type multiSink []EventSink

func (m multiSink) StateChanged(st dictationState) {
	for _, s := range m {
		s.StateChanged(st)
	}
}

func (m multiSink) RecordingTick(elapsed time.Duration) {
	for _, s := range m {
		s.RecordingTick(elapsed)
	}
}

func (m multiSink) AudioLevel(level float64) {
	for _, s := range m {
		s.AudioLevel(level)
	}
}

func (m multiSink) Partial(text string) {
	for _, s := range m {
		s.Partial(text)
	}
}

func (m multiSink) Committed(text string) {
	for _, s := range m {
		s.Committed(text)
	}
}

func (m multiSink) Error(err error) {
	for _, s := range m {
		s.Error(err)
	}
}

func (m multiSink) PermissionWarning(msg string) {
	for _, s := range m {
		s.PermissionWarning(msg)
	}
}

func (m multiSink) ModeLine(text string) {
	for _, s := range m {
		s.ModeLine(text)
	}
}

func (m multiSink) DeviceLine(text string) {
	for _, s := range m {
		s.DeviceLine(text)
	}
}
