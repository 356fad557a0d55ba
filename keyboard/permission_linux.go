//go:build linux

package keyboard

import (
	"syscall"

	"myvoice/log"
	"myvoice/notify"
)

const pasteModifier = ModCtrl

const permissionHint = "run: sudo usermod -aG input $USER (or add a udev rule for /dev/uinput), then re-login"

// checkPermission reports whether /dev/uinput is writable right now.
func checkPermission() bool {
	path, err := uinputPath()
	if err != nil {
		log.Permission("keyboard", false)
		return false
	}
	ok := syscall.Access(path, 0x2) == nil // W_OK
	log.Permission("keyboard", ok)
	return ok
}

func requestPermission(n *notify.Notifier) {
	log.Warn("keyboard permission missing: " + permissionHint)
	n.Permission("keyboard", permissionHint)
}
