//go:build !linux

package hotkey

import "golang.design/x/hotkey"

// Modifier-only keys cannot be registered as global hotkeys here.
const DefaultKey = "f12"

var keyTable = map[string]hotkey.Key{
	"escape": hotkey.KeyEscape,
	"tab":    hotkey.KeyTab,
	"space":  hotkey.KeySpace,
	"f1":     hotkey.KeyF1,
	"f2":     hotkey.KeyF2,
	"f3":     hotkey.KeyF3,
	"f4":     hotkey.KeyF4,
	"f5":     hotkey.KeyF5,
	"f6":     hotkey.KeyF6,
	"f7":     hotkey.KeyF7,
	"f8":     hotkey.KeyF8,
	"f9":     hotkey.KeyF9,
	"f10":    hotkey.KeyF10,
	"f11":    hotkey.KeyF11,
	"f12":    hotkey.KeyF12,
}
