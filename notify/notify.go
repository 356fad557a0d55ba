// Package notify raises desktop notifications.
package notify

import (
	"unicode/utf8"

	"github.com/gen2brain/beeep"
)

const appName = "myvoice"

// maxBody keeps long transcripts from overflowing notification bubbles.
const maxBody = 100

type Notifier struct {
	enabled bool
	send    func(title, message, icon string) error
}

func New(enabled bool) *Notifier {
	return &Notifier{enabled: enabled, send: beeep.Notify}
}

func (n *Notifier) Permission(what, hint string) {
	n.notify(what+" permission needed", hint)
}

func (n *Notifier) Error(msg string) {
	n.notify("error", msg)
}

func (n *Notifier) Info(msg string) {
	n.notify("", msg)
}

func (n *Notifier) notify(title, message string) {
	if n == nil || !n.enabled {
		return
	}
	message = truncate(message, maxBody)
	if title != "" {
		title = appName + ": " + title
	} else {
		title = appName
	}
	// notification failures are not actionable
	_ = n.send(title, message, "")
}

// truncate cuts s to at most max bytes on a rune boundary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
