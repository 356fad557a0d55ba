//go:build linux

package login

import (
	"fmt"
	"os"
	"path/filepath"
)

// autostartPath is the XDG autostart entry read by the session manager.
func autostartPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("autostart dir: %w", err)
	}
	return filepath.Join(dir, "autostart", "myvoice.desktop"), nil
}

func Enabled() bool {
	path, err := autostartPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func Enable() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	path, err := autostartPath()
	if err != nil {
		return err
	}
	return install(path, renderDesktop(exe, currentEnv()))
}

func Disable() error {
	path, err := autostartPath()
	if err != nil {
		return err
	}
	return uninstall(path)
}
