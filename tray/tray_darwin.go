//go:build darwin

package tray

import (
	"github.com/getlantern/systray"
	"golang.design/x/hotkey/mainthread"
)

func Available() bool { return true }

type systrayMenu struct {
	status *systray.MenuItem
	mode   *systray.MenuItem
	device *systray.MenuItem
	toggle *systray.MenuItem
	login  *systray.MenuItem
	quit   *systray.MenuItem
}

// Start registers the menu bar icon on the main thread. The menu is built
// once the Cocoa loop driven by mainthread.Init reports ready; state set
// before then is rendered on attach.
func (t *Tray) Start() error {
	mainthread.Call(func() {
		systray.Register(func() {
			m := &systrayMenu{}
			m.status = systray.AddMenuItem("", "")
			m.status.Disable()
			m.mode = systray.AddMenuItem("", "")
			m.mode.Disable()
			m.device = systray.AddMenuItem("", "")
			m.device.Disable()
			systray.AddSeparator()
			m.toggle = systray.AddMenuItem("Start Dictation", "Same as double-tapping the trigger key")
			m.login = systray.AddMenuItemCheckbox("Launch at Login", "Start myvoice when you log in", false)
			systray.AddSeparator()
			m.quit = systray.AddMenuItem("Quit myvoice", "")

			t.attach(m)
			go t.handleClicks(m)
		}, func() {})
	})
	return nil
}

func (t *Tray) handleClicks(m *systrayMenu) {
	for {
		select {
		case <-m.toggle.ClickedCh:
			t.toggle()
		case <-m.login.ClickedCh:
			t.toggleLogin()
		case <-m.quit.ClickedCh:
			t.quit()
			return
		}
	}
}

// Quit removes the icon.
func (t *Tray) Quit() {
	systray.Quit()
}

func (m *systrayMenu) setIcon(s State) {
	if s == StateIdle {
		systray.SetTemplateIcon(icons[s], icons[s])
		return
	}
	systray.SetIcon(icons[s])
}

func (m *systrayMenu) setTooltip(text string) { systray.SetTooltip(text) }
func (m *systrayMenu) setStatus(text string)  { m.status.SetTitle(text) }
func (m *systrayMenu) setToggle(title string) { m.toggle.SetTitle(title) }

func (m *systrayMenu) setInfo(mode, device string) {
	m.mode.SetTitle(mode)
	m.device.SetTitle(device)
}

func (m *systrayMenu) setLogin(on bool) {
	if on {
		m.login.Check()
	} else {
		m.login.Uncheck()
	}
}
