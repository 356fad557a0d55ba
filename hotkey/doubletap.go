package hotkey

import "time"

const DefaultTapThreshold = 400 * time.Millisecond

type tapPhase int

const (
	tapIdle tapPhase = iota
	tapFirstDown
	tapFirstUp
	tapSecondDown
)

// doubleTap recognises press/release/press/release where each press is
// released within threshold and the second press starts within threshold
// of the first release. Times are passed in so tests can drive it.
type doubleTap struct {
	threshold time.Duration
	phase     tapPhase
	mark      time.Time
}

func newDoubleTap(threshold time.Duration) *doubleTap {
	if threshold <= 0 {
		threshold = DefaultTapThreshold
	}
	return &doubleTap{threshold: threshold}
}

func (d *doubleTap) press(now time.Time) {
	switch d.phase {
	case tapIdle:
		d.phase, d.mark = tapFirstDown, now
	case tapFirstUp:
		if now.Sub(d.mark) <= d.threshold {
			d.phase = tapSecondDown
		} else {
			d.phase = tapFirstDown
		}
		d.mark = now
	}
}

// release reports whether this release completed a gesture.
func (d *doubleTap) release(now time.Time) bool {
	held := now.Sub(d.mark)
	switch d.phase {
	case tapFirstDown:
		if held <= d.threshold {
			d.phase, d.mark = tapFirstUp, now
		} else {
			d.phase = tapIdle
		}
	case tapSecondDown:
		d.phase = tapIdle
		if held <= d.threshold {
			return true
		}
	}
	return false
}
