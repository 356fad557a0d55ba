package main

import "time"

const (
	tickInterval     = 100 * time.Millisecond
	silenceTimeout   = 1500 * time.Millisecond
	silenceThreshold = 0.02
)

// silenceMonitor tracks the last moment the input level rose above the
// threshold. The clock starts at recording start, so a session that never
// hears a voice also times out.
type silenceMonitor struct {
	timeout   time.Duration
	threshold float64
	lastVoice time.Time
	peak      float64
}

func newSilenceMonitor(start time.Time) *silenceMonitor {
	return &silenceMonitor{
		timeout:   silenceTimeout,
		threshold: silenceThreshold,
		lastVoice: start,
	}
}

func (m *silenceMonitor) Level(now time.Time, level float64) {
	if level > m.peak {
		m.peak = level
	}
	if level > m.threshold {
		m.lastVoice = now
	}
}

func (m *silenceMonitor) Quiet(now time.Time) time.Duration {
	return now.Sub(m.lastVoice)
}

func (m *silenceMonitor) Expired(now time.Time) bool {
	return m.Quiet(now) >= m.timeout
}

// HeardVoice reports whether any level so far crossed the threshold.
func (m *silenceMonitor) HeardVoice() bool {
	return m.peak > m.threshold
}
