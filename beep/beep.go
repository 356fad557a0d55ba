package beep

import (
	"math"
	"sync"
	"sync/atomic"
)

var (
	disabled  atomic.Bool
	soundOnce sync.Once
)

// Disable silences every cue. Used by test mode and when no audio output
// is available.
func Disable() { disabled.Store(true) }

func Enabled() bool { return !disabled.Load() }

const (
	sampleRate = 44100

	// Start beep: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End beep: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Error beep: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

// Cue identifies one of the dictation sounds.
type Cue int

const (
	CueStart Cue = iota
	CueEnd
	CueError
)

func (c Cue) String() string {
	switch c {
	case CueStart:
		return "start"
	case CueEnd:
		return "end"
	case CueError:
		return "error"
	}
	return "unknown"
}

// Init prepares the sounds and the output device. Play calls it lazily;
// calling it early moves the device setup off the first cue.
func Init() {
	soundOnce.Do(initSound)
}

// Play sounds c without blocking on playback.
func Play(c Cue) {
	if disabled.Load() {
		return
	}
	Init()
	playCue(c)
}

// render returns the mono samples for c. Ticks are stretched to at least
// minDur for backends that drain a longer buffer.
func render(c Cue, minDur float64) []int16 {
	switch c {
	case CueStart:
		return tick(startFreq, max(0.03, minDur), startVolume, startDecay)
	case CueEnd:
		return tick(endFreq, max(0.05, minDur), endVolume, endDecay)
	case CueError:
		return doubleBeep(errorFreq, 0.08, 0.05, errorVolume, errorDecay)
	}
	return nil
}

// clip is a one-shot S16 buffer drained from an audio callback.
type clip struct {
	mu  sync.Mutex
	buf []byte
	pos int
}

// load replaces whatever is still playing.
func (c *clip) load(b []byte) {
	c.mu.Lock()
	c.buf, c.pos = b, 0
	c.mu.Unlock()
}

// fill copies the next part of the clip into out and zeroes the rest.
// It reports whether any clip data was written.
func (c *clip) fill(out []byte) bool {
	c.mu.Lock()
	n := copy(out, c.buf[c.pos:])
	c.pos += n
	c.mu.Unlock()
	clear(out[n:])
	return n > 0
}

// tick renders a decaying sine as mono samples.
func tick(freq, duration, volume, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	out := make([]int16, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		out[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return out
}

func doubleBeep(freq, beepDur, gapDur, volume, decay float64) []int16 {
	b := tick(freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(sampleRate)*gapDur))
	out := make([]int16, 0, len(b)*2+len(gap))
	out = append(out, b...)
	out = append(out, gap...)
	out = append(out, b...)
	return out
}

// interleave duplicates each mono sample into an L/R pair.
func interleave(mono []int16) []int16 {
	out := make([]int16, len(mono)*2)
	for i, s := range mono {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}

// le16 packs samples as little-endian S16 bytes.
func le16(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}
