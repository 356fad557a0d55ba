//go:build darwin

package login

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// agentPath is the per-user LaunchAgent; launchd reads it at login.
func agentPath() string {
	return filepath.Join(os.Getenv("HOME"), "Library", "LaunchAgents", label+".plist")
}

func guiDomain() string { return fmt.Sprintf("gui/%d", os.Getuid()) }

func Enabled() bool {
	_, err := os.Stat(agentPath())
	return err == nil
}

func Enable() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	path := agentPath()
	if err := install(path, renderPlist(exe, currentEnv())); err != nil {
		return err
	}
	// bootstrap fails if a previous version of the agent is still loaded
	_ = exec.Command("launchctl", "bootout", guiDomain(), path).Run()
	if out, err := exec.Command("launchctl", "bootstrap", guiDomain(), path).CombinedOutput(); err != nil {
		return fmt.Errorf("launchctl bootstrap: %w (%s)", err, out)
	}
	return nil
}

func Disable() error {
	if !Enabled() {
		return nil
	}
	path := agentPath()
	_ = exec.Command("launchctl", "bootout", guiDomain(), path).Run()
	return uninstall(path)
}
