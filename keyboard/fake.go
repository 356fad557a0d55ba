package keyboard

import (
	"strings"
	"sync"
	"time"

	"myvoice/notify"
)

// FakeEmitter records taps. Runes listed in Unmapped report ErrNoMapping.
type FakeEmitter struct {
	Unmapped string
	ChordErr error

	mu     sync.Mutex
	taps   []rune
	chords []string
	closed bool
}

func (f *FakeEmitter) mapped(r rune) bool {
	return !strings.ContainsRune(f.Unmapped, r)
}

func (f *FakeEmitter) Tap(r rune) error {
	if !f.mapped(r) {
		return ErrNoMapping
	}
	f.mu.Lock()
	f.taps = append(f.taps, r)
	f.mu.Unlock()
	return nil
}

func (f *FakeEmitter) Chord(mod Modifier, r rune) error {
	name := "ctrl+"
	if mod == ModSuper {
		name = "super+"
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ChordErr != nil {
		return f.ChordErr
	}
	f.chords = append(f.chords, name+string(r))
	return nil
}

func (f *FakeEmitter) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *FakeEmitter) Typed() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.taps)
}

func (f *FakeEmitter) Chords() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.chords...)
}

type FakeClipboard struct {
	mu   sync.Mutex
	text string
}

func (c *FakeClipboard) Read() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, nil
}

func (c *FakeClipboard) Copy(text string) error {
	c.mu.Lock()
	c.text = text
	c.mu.Unlock()
	return nil
}

// FakePermission is a switchable permission state for tests.
type FakePermission struct {
	mu        sync.Mutex
	granted   bool
	requested int
}

func (p *FakePermission) Set(granted bool) {
	p.mu.Lock()
	p.granted = granted
	p.mu.Unlock()
}

func (p *FakePermission) Requests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requested
}

// NewFake wires a Keyboard to in-memory fakes.
func NewFake(em *FakeEmitter, clip *FakeClipboard, perm *FakePermission) *Keyboard {
	return &Keyboard{
		open: func() (Emitter, error) { return em, nil },
		probe: func() bool {
			perm.mu.Lock()
			defer perm.mu.Unlock()
			return perm.granted
		},
		request: func(*notify.Notifier) {
			perm.mu.Lock()
			perm.requested++
			perm.mu.Unlock()
		},
		mapped:       em.mapped,
		clip:         clip,
		pasteMod:     ModCtrl,
		RestoreDelay: 10 * time.Millisecond,
	}
}
