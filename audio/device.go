package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

var (
	ErrNoDevices       = errors.New("no capture devices found")
	ErrPickerCancelled = errors.New("device selection cancelled")
)

// SelectDevice shows an arrow-key picker on the terminal. current, if it
// names a device, is preselected.
func SelectDevice(ctx Context, current string) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}
	if len(devices) == 1 {
		fmt.Printf("Using device: %s\n", devices[0].Name)
		return &devices[0], nil
	}

	// Raw mode for arrow key input
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	i, err := Pick(os.Stdin, os.Stdout, devices, current)
	if err != nil {
		return nil, err
	}
	return &devices[i], nil
}

// Pick runs the picker loop over in/out and returns the chosen index.
func Pick(in io.Reader, out io.Writer, devices []DeviceInfo, current string) (int, error) {
	cursor := 0
	for i, d := range devices {
		if d.Name == current || (current == "" && d.Default) {
			cursor = i
		}
	}

	render := func() {
		fmt.Fprint(out, "\r\x1b[J")
		fmt.Fprint(out, "Select input device (↑/↓, Enter to confirm, q to cancel):\r\n\r\n")
		for i, d := range devices {
			name := d.Name
			if d.Default {
				name += " (default)"
			}
			if IsBluetooth(name) {
				name += " \x1b[33m[⚠ Lower audio quality]\x1b[0m"
			}
			if i == cursor {
				fmt.Fprintf(out, "  \x1b[1;36m▶ %s\x1b[0m\r\n", name)
			} else {
				fmt.Fprintf(out, "    %s\r\n", name)
			}
		}
	}
	render()

	buf := make([]byte, 3)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return 0, fmt.Errorf("reading input: %w", err)
		}

		if n == 1 {
			switch buf[0] {
			case 13: // Enter
				fmt.Fprint(out, "\r\n")
				return cursor, nil
			case 3, 'q', 0x1b: // Ctrl+C, q, bare Esc
				fmt.Fprint(out, "\r\n")
				return 0, ErrPickerCancelled
			case 'j':
				if cursor < len(devices)-1 {
					cursor++
				}
			case 'k':
				if cursor > 0 {
					cursor--
				}
			}
		} else if n == 3 && buf[0] == 0x1b && buf[1] == '[' {
			switch buf[2] {
			case 'A':
				if cursor > 0 {
					cursor--
				}
			case 'B':
				if cursor < len(devices)-1 {
					cursor++
				}
			}
		}

		// Move up to overwrite the list
		fmt.Fprintf(out, "\x1b[%dA", len(devices)+2)
		render()
	}
}
