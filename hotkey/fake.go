package hotkey

import "sync/atomic"

type FakeHotkey struct {
	keydown    chan struct{}
	keyup      chan struct{}
	registered atomic.Bool
	RegErr     error
}

// NewFake returns a key source with unbuffered channels, so each Sim call
// returns only once the consumer has taken the edge and ordering holds.
func NewFake() *FakeHotkey {
	return &FakeHotkey{
		keydown: make(chan struct{}),
		keyup:   make(chan struct{}),
	}
}

func (f *FakeHotkey) Register() error {
	if f.RegErr != nil {
		return f.RegErr
	}
	f.registered.Store(true)
	return nil
}

func (f *FakeHotkey) Unregister()              { f.registered.Store(false) }
func (f *FakeHotkey) Keydown() <-chan struct{} { return f.keydown }
func (f *FakeHotkey) Keyup() <-chan struct{}   { return f.keyup }
func (f *FakeHotkey) Registered() bool         { return f.registered.Load() }

func (f *FakeHotkey) SimKeydown() { f.keydown <- struct{}{} }
func (f *FakeHotkey) SimKeyup()   { f.keyup <- struct{}{} }

func (f *FakeHotkey) SimTap() {
	f.SimKeydown()
	f.SimKeyup()
}
