package hotkey

import (
	"fmt"
	"sync"
	"time"
)

// Monitor watches one key source for double-tap gestures. At most one
// Watch is active at a time.
type Monitor struct {
	source    func() Hotkey
	threshold time.Duration
	now       func() time.Time

	mu     sync.Mutex
	active *Watch
}

func NewMonitor(source func() Hotkey, threshold time.Duration) *Monitor {
	return &Monitor{
		source:    source,
		threshold: threshold,
		now:       time.Now,
	}
}

// NewComboMonitor builds a Monitor over the platform key source for c.
func NewComboMonitor(c Combo, threshold time.Duration) *Monitor {
	return NewMonitor(func() Hotkey { return New(c) }, threshold)
}

type Watch struct {
	m    *Monitor
	hk   Hotkey
	taps chan struct{}
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (m *Monitor) Start() (*Watch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, ErrAlreadyMonitoring
	}

	hk := m.source()
	if err := hk.Register(); err != nil {
		return nil, fmt.Errorf("registering hotkey: %w", err)
	}

	w := &Watch{
		m:    m,
		hk:   hk,
		taps: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	m.active = w
	go w.run(newDoubleTap(m.threshold))
	return w, nil
}

// Stop ends the active watch, if any.
func (m *Monitor) Stop() {
	m.mu.Lock()
	w := m.active
	m.mu.Unlock()
	if w != nil {
		w.Stop()
	}
}

func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

func (w *Watch) run(dt *doubleTap) {
	defer close(w.done)
	defer close(w.taps)
	for {
		select {
		case <-w.stop:
			return
		case <-w.hk.Keydown():
			dt.press(w.m.now())
		case <-w.hk.Keyup():
			if dt.release(w.m.now()) {
				select {
				case w.taps <- struct{}{}:
				default:
				}
			}
		}
	}
}

// Taps fires once per detected double-tap and is closed after Stop.
func (w *Watch) Taps() <-chan struct{} {
	return w.taps
}

func (w *Watch) Stop() {
	w.once.Do(func() {
		close(w.stop)
		w.hk.Unregister()
		<-w.done

		w.m.mu.Lock()
		if w.m.active == w {
			w.m.active = nil
		}
		w.m.mu.Unlock()
	})
}
