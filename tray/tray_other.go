//go:build !darwin

package tray

func Available() bool { return false }

func (t *Tray) Start() error { return ErrUnsupported }

func (t *Tray) Quit() {}
