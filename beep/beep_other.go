//go:build !linux

package beep

import (
	"sync"

	"github.com/gen2brain/malgo"

	"myvoice/log"
)

// speaker keeps one playback device open for the life of the process and
// feeds it from a clip. A cue replaces the one still playing.
type speaker struct {
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	dev    *malgo.Device
	clip   clip
	sounds map[Cue][]byte
}

var out speaker

func initSound() {
	out.sounds = make(map[Cue][]byte)
	for _, c := range []Cue{CueStart, CueEnd, CueError} {
		out.sounds[c] = le16(render(c, 0))
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Warnf("beep: malgo context: %v", err)
		return
	}
	out.ctx = ctx
	if err := out.openDevice(); err != nil {
		log.Warnf("beep: playback device: %v", err)
		_ = ctx.Uninit()
		out.ctx = nil
	}
}

func (s *speaker) openDevice() error {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = sampleRate

	dev, err := malgo.InitDevice(s.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(output, _ []byte, frames uint32) {
			s.clip.fill(output[:frames*2])
		},
	})
	if err != nil {
		return err
	}
	s.dev = dev
	return nil
}

func playCue(c Cue) {
	out.play(out.sounds[c])
}

func (s *speaker) play(samples []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil || len(samples) == 0 {
		return
	}

	_ = s.dev.Stop()
	s.clip.load(samples)
	if err := s.dev.Start(); err == nil {
		return
	}
	// the device goes stale across sleep/wake; recreate it once
	s.dev.Uninit()
	s.dev = nil
	if err := s.openDevice(); err != nil {
		log.Warnf("beep: reopen playback device: %v", err)
		return
	}
	if err := s.dev.Start(); err != nil {
		log.Warnf("beep: start playback: %v", err)
	}
}
