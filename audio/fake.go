package audio

import (
	"fmt"
	"os"
	"sync"
	"time"

	"myvoice/encoder"
)

// fakeChunkFrames matches the period size of the real backends.
const fakeChunkFrames = 1024

// FakeContext replays a fixed 16 kHz mono PCM clip through every capture
// it opens. Paced replay feeds chunks at the real sample rate; otherwise
// the whole clip is delivered inside Start.
type FakeContext struct {
	clip  []byte
	paced bool

	mu     sync.Mutex
	latest *FakeCapture
}

// NewFakeContext loads a 16-bit mono WAV file.
func NewFakeContext(wavPath string, paced bool) (*FakeContext, error) {
	b, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("read clip: %w", err)
	}
	if len(b) > WAVHeaderSize && string(b[:4]) == "RIFF" {
		b = b[WAVHeaderSize:]
	}
	return NewFakeContextPCM(b, paced), nil
}

func NewFakeContextPCM(pcm []byte, paced bool) *FakeContext {
	return &FakeContext{clip: pcm, paced: paced}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake", Default: true}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(*DeviceInfo, CaptureConfig) (CaptureDevice, error) {
	c := &FakeCapture{clip: f.clip, paced: f.paced, drained: make(chan struct{})}
	f.mu.Lock()
	f.latest = c
	f.mu.Unlock()
	return c, nil
}

// Last returns the most recently opened capture, or nil.
func (f *FakeContext) Last() *FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest
}

// FakeCapture keeps delivering silence once the clip is exhausted, like a
// live microphone.
type FakeCapture struct {
	clip  []byte
	paced bool

	mu      sync.Mutex
	cb      DataCallback
	drained chan struct{}
	halt    chan struct{}
	stopped chan struct{}
}

// AudioDone is closed once the whole clip has been handed to the callback.
func (c *FakeCapture) AudioDone() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drained
}

func (c *FakeCapture) SetCallback(cb DataCallback) {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
}

func (c *FakeCapture) ClearCallback() { c.SetCallback(nil) }

func (c *FakeCapture) callback() DataCallback {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cb
}

func (c *FakeCapture) DeviceName() string { return "fake" }

// emit hands the chunk starting at pos to cb and returns the next offset.
func (c *FakeCapture) emit(cb DataCallback, pos int) int {
	end := min(pos+fakeChunkFrames*2, len(c.clip))
	chunk := append([]byte(nil), c.clip[pos:end]...)
	cb(chunk, uint32(len(chunk)/2))
	return end
}

func (c *FakeCapture) Start() error {
	c.mu.Lock()
	if c.halt != nil {
		c.mu.Unlock()
		return nil
	}
	halt, stopped, drained := make(chan struct{}), make(chan struct{}), c.drained
	c.halt, c.stopped = halt, stopped
	c.mu.Unlock()

	pos, tick := 0, time.Millisecond
	if c.paced {
		tick = time.Duration(fakeChunkFrames) * time.Second / encoder.SampleRate
	} else {
		if cb := c.callback(); cb != nil {
			for pos < len(c.clip) {
				pos = c.emit(cb, pos)
			}
		}
		pos = len(c.clip)
	}
	if pos >= len(c.clip) {
		close(drained)
	}

	go c.feed(pos, tick, halt, stopped, drained)
	return nil
}

func (c *FakeCapture) feed(pos int, tick time.Duration, halt, stopped, drained chan struct{}) {
	defer close(stopped)
	silence := make([]byte, fakeChunkFrames*2)
	for {
		select {
		case <-halt:
			return
		case <-time.After(tick):
		}
		cb := c.callback()
		if cb == nil {
			continue
		}
		if pos >= len(c.clip) {
			cb(silence, fakeChunkFrames)
			continue
		}
		if pos = c.emit(cb, pos); pos >= len(c.clip) {
			close(drained)
		}
	}
}

// Stop halts delivery and rearms AudioDone so the capture can replay.
func (c *FakeCapture) Stop() {
	c.mu.Lock()
	halt, stopped := c.halt, c.stopped
	if halt != nil {
		c.halt, c.stopped = nil, nil
		c.drained = make(chan struct{})
	}
	c.mu.Unlock()
	if halt == nil {
		return
	}
	close(halt)
	<-stopped
}

func (c *FakeCapture) Close() {}
