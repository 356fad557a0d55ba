//go:build linux

package hotkey

const DefaultKey = "rightctrl"

// evdev key codes from linux/input-event-codes.h
var keyTable = map[string]uint16{
	"escape":     1,
	"tab":        15,
	"capslock":   58,
	"space":      57,
	"leftctrl":   29,
	"rightctrl":  97,
	"leftshift":  42,
	"rightshift": 54,
	"leftalt":    56,
	"rightalt":   100,
	"leftsuper":  125,
	"rightsuper": 126,
	"scrolllock": 70,
	"pause":      119,
	"insert":     110,
	"f1":         59,
	"f2":         60,
	"f3":         61,
	"f4":         62,
	"f5":         63,
	"f6":         64,
	"f7":         65,
	"f8":         66,
	"f9":         67,
	"f10":        68,
	"f11":        87,
	"f12":        88,
}

var modifierCodes = map[string][2]uint16{
	"ctrl":  {29, 97},
	"shift": {42, 54},
	"alt":   {56, 100},
	"super": {125, 126},
}
