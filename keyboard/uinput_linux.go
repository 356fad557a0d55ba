//go:build linux

package keyboard

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"
)

// ioctl constants from linux/uinput.h
const (
	uiSetEvbit   = 0x40045564 // UI_SET_EVBIT
	uiSetKeybit  = 0x40045565 // UI_SET_KEYBIT
	uiDevCreate  = 0x5501     // UI_DEV_CREATE
	uiDevDestroy = 0x5502     // UI_DEV_DESTROY
)

// input event types from linux/input-event-codes.h
const (
	evSyn = 0x00
	evKey = 0x01
)

const (
	busUSB     = 0x03
	keyLCtrl   = 29
	keyLShift  = 42
	keyLMeta   = 125
	deviceName = "myvoice-keyboard"
)

var uinputPaths = []string{"/dev/uinput", "/dev/input/uinput"}

type inputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputUserDev struct {
	Name         [80]byte
	ID           inputID
	FfEffectsMax uint32
	Absmax       [64]int32
	Absmin       [64]int32
	Absfuzz      [64]int32
	Absflat      [64]int32
}

// uinputEmitter is a virtual keyboard registered with the kernel.
type uinputEmitter struct {
	mu sync.Mutex
	f  *os.File
}

func uinputPath() (string, error) {
	for _, p := range uinputPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errors.New("uinput device not found, try: sudo modprobe uinput")
}

func ioctl(f *os.File, req, arg uintptr) error {
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), req, arg); errno != 0 {
		return errno
	}
	return nil
}

func newEmitter() (Emitter, error) {
	path, err := uinputPath()
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, os.ModeDevice)
	if err != nil {
		return nil, err
	}
	if err := setupDevice(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("creating uinput device: %w", err)
	}
	// Give the compositor time to pick up the new input device
	time.Sleep(200 * time.Millisecond)
	return &uinputEmitter{f: f}, nil
}

func setupDevice(f *os.File) error {
	if err := ioctl(f, uiSetEvbit, evKey); err != nil {
		return err
	}
	if err := ioctl(f, uiSetEvbit, evSyn); err != nil {
		return err
	}
	// Register all standard keys so udev classifies this as a keyboard
	for i := uintptr(0); i < 256; i++ {
		if err := ioctl(f, uiSetKeybit, i); err != nil {
			return err
		}
	}
	dev := uinputUserDev{}
	copy(dev.Name[:], deviceName)
	dev.ID.Bustype = busUSB
	dev.ID.Vendor = 0x1234
	dev.ID.Product = 0x5679
	dev.ID.Version = 1
	if err := binary.Write(f, binary.LittleEndian, &dev); err != nil {
		return err
	}
	return ioctl(f, uiDevCreate, 0)
}

func (e *uinputEmitter) write(code uint16, value int32) error {
	if err := binary.Write(e.f, binary.LittleEndian, &inputEvent{Type: evKey, Code: code, Value: value}); err != nil {
		return err
	}
	return binary.Write(e.f, binary.LittleEndian, &inputEvent{Type: evSyn})
}

func (e *uinputEmitter) press(codes ...uint16) error {
	for _, c := range codes {
		if err := e.write(c, 1); err != nil {
			return err
		}
	}
	for i := len(codes) - 1; i >= 0; i-- {
		if err := e.write(codes[i], 0); err != nil {
			return err
		}
	}
	return nil
}

func (e *uinputEmitter) Tap(r rune) error {
	code, shift, ok := runeToKey(r)
	if !ok {
		return ErrNoMapping
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if shift {
		return e.press(keyLShift, code)
	}
	return e.press(code)
}

func (e *uinputEmitter) Chord(mod Modifier, r rune) error {
	code, _, ok := runeToKey(r)
	if !ok {
		return ErrNoMapping
	}
	modCode := uint16(keyLCtrl)
	if mod == ModSuper {
		modCode = keyLMeta
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.write(modCode, 1); err != nil {
		return err
	}
	// Let the compositor register modifier state
	time.Sleep(5 * time.Millisecond)
	if err := e.press(code); err != nil {
		return err
	}
	time.Sleep(5 * time.Millisecond)
	return e.write(modCode, 0)
}

func (e *uinputEmitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ioctl(e.f, uiDevDestroy, 0)
	return e.f.Close()
}
