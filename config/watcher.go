package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"myvoice/log"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher reloads settings.toml whenever it changes on disk and publishes
// the new Settings on Changes.
type Watcher struct {
	dir      string
	debounce time.Duration
	fsw      *fsnotify.Watcher
	changes  chan Settings
	stopCh   chan struct{}
	done     chan struct{}
	once     sync.Once
}

// Watch starts watching dir. The directory is created if needed; watching
// the directory rather than the file survives editors that replace files
// by rename.
func Watch(dir string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{
		dir:      dir,
		debounce: debounce,
		fsw:      fsw,
		changes:  make(chan Settings, 1),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Changes delivers reloaded settings. Only the latest pending value is kept.
// The channel is closed after Stop.
func (w *Watcher) Changes() <-chan Settings { return w.changes }

func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stopCh)
		w.fsw.Close()
		<-w.done
	})
}

func (w *Watcher) run() {
	defer close(w.done)
	defer close(w.changes)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != SettingsFile {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			log.Infof("settings file changed: %s", ev.Op)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			s, err := LoadSettings(w.dir)
			if err != nil {
				continue
			}
			w.publish(s)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warnf("settings watcher error: %v", err)
		}
	}
}

func (w *Watcher) publish(s Settings) {
	for {
		select {
		case w.changes <- s:
			return
		default:
		}
		// Replace the stale pending value.
		select {
		case <-w.changes:
		default:
		}
	}
}
