package doctor

import (
	"fmt"
	"time"

	"myvoice/clipboard"
	"myvoice/keyboard"
)

const clipboardTimeout = 2 * time.Second

type systemClipboard struct{}

func (systemClipboard) Read() (string, error)  { return clipboard.Read() }
func (systemClipboard) Copy(text string) error { return clipboard.Copy(text) }

// withTimeout runs fn on its own goroutine; clipboard helpers like xclip
// can hang when no selection owner answers.
func withTimeout(timeout time.Duration, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("timed out after %v", timeout)
	}
}

// checkPaste verifies the clipboard round trip, then pastes a line and
// checks that the user's clipboard comes back afterwards.
func checkPaste(s *session, kb *keyboard.Keyboard, clip keyboard.Clipboard, timeout time.Duration) bool {
	if _, ok := clip.(systemClipboard); ok && !clipboard.Available() {
		s.println("  FAIL: no clipboard tool found (install xclip, xsel or wl-clipboard)")
		return false
	}

	const probe = "myvoice-clipboard-probe"
	var saved string
	err := withTimeout(timeout, func() error {
		var err error
		if saved, err = clip.Read(); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if err := clip.Copy(probe); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		got, err := clip.Read()
		if err != nil {
			return fmt.Errorf("readback: %w", err)
		}
		if got != probe {
			return fmt.Errorf("readback mismatch: got %q", got)
		}
		return clip.Copy(saved)
	})
	if err != nil {
		s.printf("  FAIL: clipboard: %v\n", err)
		return false
	}
	s.println("  PASS: clipboard read/write")

	if saved == "" {
		saved = "myvoice-clipboard-saved"
		clip.Copy(saved)
	}
	if err := kb.Paste(testString + " (pasted)"); err != nil {
		s.printf("  FAIL: paste failed: %v\n", err)
		return false
	}
	time.Sleep(kb.RestoreDelay + 200*time.Millisecond)
	var after string
	if err := withTimeout(timeout, func() error {
		var err error
		after, err = clip.Read()
		return err
	}); err != nil {
		s.printf("  FAIL: clipboard: %v\n", err)
		return false
	}
	if after != saved {
		s.printf("  FAIL: clipboard not restored after paste (got %q)\n", after)
		return false
	}
	s.println("  PASS: clipboard restored after paste")

	s.println()
	if !s.confirm("Did the pasted text appear?") {
		s.println("  FAIL: paste not confirmed")
		return false
	}
	s.println("  PASS: paste verified by user")
	return true
}
