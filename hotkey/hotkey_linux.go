//go:build linux

package hotkey

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// struct input_event on 64-bit kernels: timeval, type, code, value.
const (
	eventSize = 24
	evKey     = 1
)

var errNoKeyboards = errors.New("no keyboard devices found (is user in 'input' group?)")

type inputEvent struct {
	typ   uint16
	code  uint16
	value int32
}

func decodeEvents(buf []byte) []inputEvent {
	evs := make([]inputEvent, 0, len(buf)/eventSize)
	for off := 0; off+eventSize <= len(buf); off += eventSize {
		evs = append(evs, inputEvent{
			typ:   binary.LittleEndian.Uint16(buf[off+16:]),
			code:  binary.LittleEndian.Uint16(buf[off+18:]),
			value: int32(binary.LittleEndian.Uint32(buf[off+20:])),
		})
	}
	return evs
}

type edge int

const (
	noEdge edge = iota
	pressEdge
	releaseEdge
)

// comboState follows one keyboard's modifier state and reports trigger
// edges. A press only counts while every required modifier is held.
type comboState struct {
	code uint16
	mods [][2]uint16
	held map[uint16]bool
	down bool
}

func newComboState(c Combo) *comboState {
	s := &comboState{code: keyTable[c.Key], held: map[uint16]bool{}}
	for _, m := range c.Mods {
		s.mods = append(s.mods, modifierCodes[m])
	}
	return s
}

func (s *comboState) apply(ev inputEvent) edge {
	// value 2 is autorepeat
	if ev.typ != evKey || ev.value > 1 {
		return noEdge
	}
	pressed := ev.value == 1
	if ev.code != s.code {
		s.held[ev.code] = pressed
		return noEdge
	}
	switch {
	case pressed && !s.down && s.modsHeld():
		s.down = true
		return pressEdge
	case !pressed && s.down:
		s.down = false
		return releaseEdge
	}
	return noEdge
}

func (s *comboState) modsHeld() bool {
	for _, alt := range s.mods {
		if !s.held[alt[0]] && !s.held[alt[1]] {
			return false
		}
	}
	return true
}

// evdevHotkey reads every keyboard under /dev/input directly, so it works
// on Wayland and without a display server.
type evdevHotkey struct {
	combo   Combo
	keydown chan struct{}
	keyup   chan struct{}
	files   []*os.File
	stop    chan struct{}
	once    sync.Once
}

func New(c Combo) Hotkey {
	return &evdevHotkey{
		combo:   c,
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
}

func (h *evdevHotkey) Register() error {
	files, _, err := openKeyboards()
	if err != nil {
		return err
	}
	h.files = files
	for _, f := range files {
		go h.read(f)
	}
	return nil
}

func (h *evdevHotkey) read(f *os.File) {
	state := newComboState(h.combo)
	buf := make([]byte, eventSize*16)
	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}
		for _, ev := range decodeEvents(buf[:n]) {
			switch state.apply(ev) {
			case pressEdge:
				h.signal(h.keydown)
			case releaseEdge:
				h.signal(h.keyup)
			}
		}
	}
}

func (h *evdevHotkey) signal(ch chan struct{}) {
	select {
	case <-h.stop:
	case ch <- struct{}{}:
	default:
	}
}

// Unregister closes the devices, which unblocks the readers.
func (h *evdevHotkey) Unregister() {
	h.once.Do(func() {
		close(h.stop)
		for _, f := range h.files {
			f.Close()
		}
	})
}

func (h *evdevHotkey) Keydown() <-chan struct{} { return h.keydown }
func (h *evdevHotkey) Keyup() <-chan struct{}   { return h.keyup }

// openKeyboards opens every readable keyboard and reports how many were
// found in total.
func openKeyboards() ([]*os.File, int, error) {
	paths, err := keyboardPaths("/dev/input", "/sys/class/input")
	if err != nil {
		return nil, 0, fmt.Errorf("finding keyboards: %w", err)
	}
	if len(paths) == 0 {
		return nil, 0, errNoKeyboards
	}
	var files []*os.File
	for _, p := range paths {
		if f, err := os.Open(p); err == nil {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return nil, len(paths), fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER, then re-login)", len(paths))
	}
	return files, len(paths), nil
}

// keyboardPaths lists event devices whose key capability mask is long
// enough to be a keyboard; mice and power buttons report only a few bits.
func keyboardPaths(devDir, sysDir string) ([]string, error) {
	entries, err := os.ReadDir(devDir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		caps, err := os.ReadFile(filepath.Join(sysDir, e.Name(), "device", "capabilities", "key"))
		if err == nil && len(strings.TrimSpace(string(caps))) > 10 {
			paths = append(paths, filepath.Join(devDir, e.Name()))
		}
	}
	return paths, nil
}

func Diagnose(c Combo) (string, error) {
	files, found, err := openKeyboards()
	if err != nil {
		return "", err
	}
	for _, f := range files {
		f.Close()
	}
	return fmt.Sprintf("%d keyboard(s) found, %d readable, watching %s", found, len(files), c), nil
}
