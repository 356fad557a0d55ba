// Package keyboard types text into the focused application by
// synthesising key presses.
package keyboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"myvoice/clipboard"
	"myvoice/notify"
)

var (
	ErrPermissionDenied = errors.New("keyboard input permission denied")
	ErrUnsupportedChars = errors.New("unsupported characters skipped")
	// ErrNoMapping is returned by an Emitter for a rune it has no key for.
	ErrNoMapping = errors.New("no key mapping")
)

const (
	DefaultDelay        = 20 * time.Millisecond
	DefaultRestoreDelay = 600 * time.Millisecond
)

type Modifier int

const (
	ModCtrl Modifier = iota
	ModSuper
)

// Emitter sends synthetic key events to the OS.
type Emitter interface {
	Tap(r rune) error
	Chord(mod Modifier, r rune) error
	Close() error
}

type Clipboard interface {
	Read() (string, error)
	Copy(text string) error
}

type systemClipboard struct{}

func (systemClipboard) Read() (string, error)  { return clipboard.Read() }
func (systemClipboard) Copy(text string) error { return clipboard.Copy(text) }

type Keyboard struct {
	open         func() (Emitter, error)
	probe        func() bool
	request      func(n *notify.Notifier)
	mapped       func(r rune) bool
	clip         Clipboard
	notifier     *notify.Notifier
	pasteMod     Modifier
	RestoreDelay time.Duration

	mu sync.Mutex
	em Emitter

	// Pastes are serialized and share one pending restore of the
	// clipboard as it was before the first of them.
	pasteMu  sync.Mutex
	restore  *time.Timer
	restoreN int
	saved    string
}

// New returns a Keyboard backed by the platform emitter and the system
// clipboard. The emitter is created on first use.
func New(n *notify.Notifier) *Keyboard {
	return &Keyboard{
		open:         newEmitter,
		probe:        checkPermission,
		request:      requestPermission,
		mapped:       canType,
		clip:         systemClipboard{},
		notifier:     n,
		pasteMod:     pasteModifier,
		RestoreDelay: DefaultRestoreDelay,
	}
}

// CheckPermission probes the platform on every call.
func (k *Keyboard) CheckPermission() bool {
	return k.probe()
}

// RequestPermission asks the user to grant input permission and returns
// immediately. Callers re-probe with CheckPermission.
func (k *Keyboard) RequestPermission() {
	go k.request(k.notifier)
}

func (k *Keyboard) emitter() (Emitter, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.em != nil {
		return k.em, nil
	}
	em, err := k.open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	k.em = em
	return em, nil
}

// CanType reports whether every rune in text has a key on this platform.
func (k *Keyboard) CanType(text string) bool {
	for _, r := range text {
		if !k.mapped(r) {
			return false
		}
	}
	return true
}

// Type taps one key per rune, pausing delay between taps. Runes with no
// key are skipped and reported as ErrUnsupportedChars after the rest of
// the text is typed.
func (k *Keyboard) Type(ctx context.Context, text string, delay time.Duration) error {
	if text == "" {
		return nil
	}
	if !k.CheckPermission() {
		return ErrPermissionDenied
	}
	em, err := k.emitter()
	if err != nil {
		return err
	}

	skipped := 0
	first := true
	for _, r := range text {
		if !first && delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		first = false

		if err := em.Tap(r); err != nil {
			if errors.Is(err, ErrNoMapping) {
				skipped++
				continue
			}
			return fmt.Errorf("typing %q: %w", r, err)
		}
	}
	if skipped > 0 {
		return fmt.Errorf("%w: %d", ErrUnsupportedChars, skipped)
	}
	return nil
}

// Paste puts text on the clipboard, sends the paste chord and restores the
// previous clipboard contents after RestoreDelay. A paste inside another's
// restore window extends it; the user's original contents come back once.
func (k *Keyboard) Paste(text string) error {
	if text == "" {
		return nil
	}
	if !k.CheckPermission() {
		return ErrPermissionDenied
	}
	em, err := k.emitter()
	if err != nil {
		return err
	}

	k.pasteMu.Lock()
	defer k.pasteMu.Unlock()

	if k.restore != nil {
		k.restore.Stop()
	} else if prev, err := k.clip.Read(); err == nil {
		k.saved = prev
	} else {
		k.saved = ""
	}
	// A restore that already fired but is waiting on pasteMu sees a newer
	// generation and does nothing.
	k.restoreN++
	k.restore = nil

	var pasteErr error
	if err := k.clip.Copy(text); err != nil {
		pasteErr = fmt.Errorf("copying to clipboard: %w", err)
	} else if err := em.Chord(k.pasteMod, 'v'); err != nil {
		pasteErr = fmt.Errorf("sending paste chord: %w", err)
	}
	// the saved clipboard comes back even when this paste failed
	if k.saved != "" {
		gen := k.restoreN
		k.restore = time.AfterFunc(k.RestoreDelay, func() { k.restoreClipboard(gen) })
	}
	return pasteErr
}

func (k *Keyboard) restoreClipboard(gen int) {
	k.pasteMu.Lock()
	defer k.pasteMu.Unlock()
	if gen != k.restoreN || k.restore == nil {
		return
	}
	k.clip.Copy(k.saved)
	k.restore = nil
	k.saved = ""
}

// Close puts back any clipboard contents still waiting on a restore and
// releases the emitter.
func (k *Keyboard) Close() error {
	k.pasteMu.Lock()
	if k.restore != nil && k.restore.Stop() {
		k.clip.Copy(k.saved)
	}
	k.restoreN++
	k.restore = nil
	k.pasteMu.Unlock()

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.em == nil {
		return nil
	}
	err := k.em.Close()
	k.em = nil
	return err
}
