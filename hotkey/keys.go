package hotkey

import (
	"fmt"
	"sort"
	"strings"
)

// Combo is a trigger key with optional held modifiers, written as
// "ctrl+shift+space" or a bare key name such as "rightctrl".
type Combo struct {
	Mods []string
	Key  string
}

var modifierNames = map[string]bool{
	"ctrl":  true,
	"shift": true,
	"alt":   true,
	"super": true,
}

func ParseCombo(s string) (Combo, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Combo{}, fmt.Errorf("%w: empty key", ErrUnknownKey)
	}
	parts := strings.Split(s, "+")
	c := Combo{Key: strings.TrimSpace(parts[len(parts)-1])}
	seen := map[string]bool{}
	for _, m := range parts[:len(parts)-1] {
		m = strings.TrimSpace(m)
		if !modifierNames[m] {
			return Combo{}, fmt.Errorf("%w: modifier %q", ErrUnknownKey, m)
		}
		if !seen[m] {
			seen[m] = true
			c.Mods = append(c.Mods, m)
		}
	}
	if !supportedKey(c.Key) {
		return Combo{}, fmt.Errorf("%w: %q (available: %s)", ErrUnknownKey, c.Key, strings.Join(KeyNames(), ", "))
	}
	sort.Strings(c.Mods)
	return c, nil
}

func (c Combo) String() string {
	if len(c.Mods) == 0 {
		return c.Key
	}
	return strings.Join(c.Mods, "+") + "+" + c.Key
}

func KeyNames() []string {
	names := make([]string, 0, len(keyTable))
	for name := range keyTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func supportedKey(name string) bool {
	_, ok := keyTable[name]
	return ok
}
