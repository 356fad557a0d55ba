// Package encoder compresses captured PCM for upload to batch
// transcription endpoints.
package encoder

import "time"

// Capture format shared by the audio backends and every provider.
const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	// Filename and ContentType describe Bytes for a multipart upload.
	Filename() string
	ContentType() string
}

// PCMBytes is the raw size of n mono 16-bit frames.
func PCMBytes(frames uint64) uint64 {
	return frames * BitsPerSample / 8 * Channels
}

// Duration converts a frame count at SampleRate into wall time.
func Duration(frames uint64) time.Duration {
	return time.Duration(frames) * time.Second / SampleRate
}
