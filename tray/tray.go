// Package tray mirrors dictation status in the menu bar and offers
// start/stop, launch at login and quit.
package tray

import (
	"errors"
	"sync"
	"time"
)

var ErrUnsupported = errors.New("menu bar icon not supported on this platform")

type State int

const (
	StateIdle State = iota
	StateRecording
	StateStopping
)

// errorDisplay is how long an error replaces the tooltip.
const errorDisplay = 10 * time.Second

type Callbacks struct {
	OnToggle func()
	OnLogin  func(on bool) error
	OnQuit   func()
}

// menu is the platform menu bar. Calls arrive with Tray.mu held.
type menu interface {
	setIcon(s State)
	setTooltip(text string)
	setStatus(text string)
	setInfo(mode, device string)
	setToggle(title string)
	setLogin(on bool)
}

type Tray struct {
	cb Callbacks

	mu       sync.Mutex
	m        menu
	state    State
	mode     string
	device   string
	errText  string
	errTimer *time.Timer
	login    bool
}

func New(cb Callbacks, loginOn bool) *Tray {
	return &Tray{cb: cb, login: loginOn}
}

func (t *Tray) attach(m menu) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m = m
	t.m.setLogin(t.login)
	t.renderLocked()
}

func (t *Tray) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tray) SetState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
	if s == StateRecording {
		t.clearErrorLocked()
	}
	t.renderLocked()
}

func (t *Tray) SetModeLine(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mode = text
	t.renderLocked()
}

func (t *Tray) SetDeviceLine(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.device = text
	t.renderLocked()
}

// SetError shows msg in the tooltip for a while.
func (t *Tray) SetError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearErrorLocked()
	t.errText = msg
	t.errTimer = time.AfterFunc(errorDisplay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.errText == msg {
			t.errText = ""
			t.renderLocked()
		}
	})
	t.renderLocked()
}

func (t *Tray) clearErrorLocked() {
	if t.errTimer != nil {
		t.errTimer.Stop()
		t.errTimer = nil
	}
	t.errText = ""
}

func (t *Tray) Tooltip() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tooltipLocked()
}

func (t *Tray) tooltipLocked() string {
	if t.errText != "" {
		return "myvoice: " + t.errText
	}
	return "myvoice: " + statusText(t.state)
}

func (t *Tray) renderLocked() {
	if t.m == nil {
		return
	}
	t.m.setIcon(t.state)
	t.m.setTooltip(t.tooltipLocked())
	t.m.setStatus(statusText(t.state))
	t.m.setInfo(t.mode, t.device)
	t.m.setToggle(toggleTitle(t.state))
}

func (t *Tray) toggle() {
	if t.cb.OnToggle != nil {
		t.cb.OnToggle()
	}
}

// toggleLogin flips launch at login. The checkbox only moves when the
// change took effect.
func (t *Tray) toggleLogin() {
	t.mu.Lock()
	want := !t.login
	t.mu.Unlock()

	if t.cb.OnLogin != nil {
		if err := t.cb.OnLogin(want); err != nil {
			t.SetError(err.Error())
			return
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.login = want
	if t.m != nil {
		t.m.setLogin(want)
	}
}

func (t *Tray) quit() {
	if t.cb.OnQuit != nil {
		t.cb.OnQuit()
	}
}

func statusText(s State) string {
	switch s {
	case StateRecording:
		return "Recording"
	case StateStopping:
		return "Finishing transcript"
	}
	return "Ready, double-tap to dictate"
}

func toggleTitle(s State) string {
	if s == StateIdle {
		return "Start Dictation"
	}
	return "Stop Dictation"
}
