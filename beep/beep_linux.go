//go:build linux

package beep

import (
	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"myvoice/log"
)

// sounds holds interleaved stereo samples per cue.
var sounds map[Cue][]int16

// Ticks are padded to 200ms so PulseAudio fills its buffer before drain.
func initSound() {
	sounds = make(map[Cue][]int16)
	for _, c := range []Cue{CueStart, CueEnd, CueError} {
		sounds[c] = interleave(render(c, 0.2))
	}
}

func playCue(c Cue) {
	go playSamples(sounds[c])
}

// playSamples opens a short-lived client per cue; cues are rare and a
// persistent stream would hold the sink awake.
func playSamples(samples []int16) {
	if len(samples) == 0 {
		return
	}
	client, err := pulse.NewClient(pulse.ClientApplicationName("myvoice"))
	if err != nil {
		log.Warnf("beep: pulse client: %v", err)
		return
	}
	defer client.Close()

	pos := 0
	stream, err := client.NewPlayback(pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	}),
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm), uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		log.Warnf("beep: pulse playback: %v", err)
		return
	}
	defer stream.Close()
	stream.Start()
	stream.Drain()
	stream.Stop()
}
