// Package clipboard reads and writes the system clipboard.
package clipboard

import cb "github.com/atotto/clipboard"

func Read() (string, error) {
	if cb.Unsupported {
		return "", nil
	}
	return cb.ReadAll()
}

func Copy(text string) error {
	return cb.WriteAll(text)
}

// Available reports whether a clipboard backend (xclip, xsel,
// wl-clipboard, pbcopy) was found.
func Available() bool {
	return !cb.Unsupported
}
