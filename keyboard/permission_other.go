//go:build !linux

package keyboard

import (
	"os/exec"
	"runtime"

	"github.com/micmonay/keybd_event"

	"myvoice/log"
	"myvoice/notify"
)

const accessibilityPane = "x-apple.systempreferences:com.apple.preference.security?Privacy_Accessibility"

func checkPermission() bool {
	_, err := keybd_event.NewKeyBonding()
	ok := err == nil
	log.Permission("keyboard", ok)
	return ok
}

func requestPermission(n *notify.Notifier) {
	if runtime.GOOS == "darwin" {
		if err := exec.Command("open", accessibilityPane).Run(); err != nil {
			log.Warnf("opening accessibility settings: %v", err)
		}
	}
	n.Permission("keyboard", "allow this terminal to control the computer in Accessibility settings")
}
