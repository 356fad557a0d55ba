//go:build !linux

package keyboard

import (
	"runtime"
	"sync"

	"github.com/micmonay/keybd_event"
)

var pasteModifier = func() Modifier {
	if runtime.GOOS == "darwin" {
		return ModSuper
	}
	return ModCtrl
}()

type keybdEmitter struct {
	mu sync.Mutex
	kb keybd_event.KeyBonding
}

func newEmitter() (Emitter, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, err
	}
	return &keybdEmitter{kb: kb}, nil
}

var digitKeys = [10]int{
	keybd_event.VK_0, keybd_event.VK_1, keybd_event.VK_2, keybd_event.VK_3, keybd_event.VK_4,
	keybd_event.VK_5, keybd_event.VK_6, keybd_event.VK_7, keybd_event.VK_8, keybd_event.VK_9,
}

var letterKeys = [26]int{
	keybd_event.VK_A, keybd_event.VK_B, keybd_event.VK_C, keybd_event.VK_D, keybd_event.VK_E,
	keybd_event.VK_F, keybd_event.VK_G, keybd_event.VK_H, keybd_event.VK_I, keybd_event.VK_J,
	keybd_event.VK_K, keybd_event.VK_L, keybd_event.VK_M, keybd_event.VK_N, keybd_event.VK_O,
	keybd_event.VK_P, keybd_event.VK_Q, keybd_event.VK_R, keybd_event.VK_S, keybd_event.VK_T,
	keybd_event.VK_U, keybd_event.VK_V, keybd_event.VK_W, keybd_event.VK_X, keybd_event.VK_Y,
	keybd_event.VK_Z,
}

// Punctuation codes differ across layouts and platforms; those runes go
// through the clipboard instead.
func runeToVK(r rune) (vk int, shift bool, ok bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return letterKeys[r-'a'], false, true
	case r >= 'A' && r <= 'Z':
		return letterKeys[r-'A'], true, true
	case r >= '0' && r <= '9':
		return digitKeys[r-'0'], false, true
	case r == ' ':
		return keybd_event.VK_SPACE, false, true
	case r == '\t':
		return keybd_event.VK_TAB, false, true
	}
	return 0, false, false
}

func (e *keybdEmitter) launch(vk int, shift, ctrl, super bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kb.Clear()
	e.kb.SetKeys(vk)
	e.kb.HasSHIFT(shift)
	e.kb.HasCTRL(ctrl)
	e.kb.HasSuper(super)
	return e.kb.Launching()
}

func (e *keybdEmitter) Tap(r rune) error {
	vk, shift, ok := runeToVK(r)
	if !ok {
		return ErrNoMapping
	}
	return e.launch(vk, shift, false, false)
}

func (e *keybdEmitter) Chord(mod Modifier, r rune) error {
	vk, _, ok := runeToVK(r)
	if !ok {
		return ErrNoMapping
	}
	return e.launch(vk, false, mod == ModCtrl, mod == ModSuper)
}

func (e *keybdEmitter) Close() error { return nil }

func canType(r rune) bool {
	_, _, ok := runeToVK(r)
	return ok
}
