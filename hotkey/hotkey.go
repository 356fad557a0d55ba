package hotkey

import "errors"

var (
	ErrAlreadyMonitoring = errors.New("hotkey monitor already active")
	ErrUnknownKey        = errors.New("unknown key")
)

// Hotkey is a low-level source of press/release edges for one key combo.
type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}
