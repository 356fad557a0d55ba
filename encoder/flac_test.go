package encoder

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/mewkiz/flac"
)

func tone(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(math.Sin(2*math.Pi*440*float64(i)/SampleRate) * 8000)
	}
	return out
}

func encodeAll(t *testing.T, samples []int16) *FlacEncoder {
	t.Helper()
	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	for i := 0; i < len(samples); i += BlockSize {
		if err := enc.EncodeBlock(samples[i:min(i+BlockSize, len(samples))]); err != nil {
			t.Fatalf("EncodeBlock at %d: %v", i, err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return enc
}

func TestFlacDecodesToInput(t *testing.T) {
	in := tone(BlockSize*3 + 123)
	enc := encodeAll(t, in)

	if enc.TotalFrames() != uint64(len(in)) {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), len(in))
	}

	stream, err := flac.New(bytes.NewReader(enc.Bytes()))
	if err != nil {
		t.Fatalf("parsing output: %v", err)
	}
	if stream.Info.SampleRate != SampleRate || stream.Info.NChannels != Channels {
		t.Errorf("stream info = %d Hz, %d ch", stream.Info.SampleRate, stream.Info.NChannels)
	}

	var out []int16
	for {
		f, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ParseNext: %v", err)
		}
		for _, s := range f.Subframes[0].Samples {
			out = append(out, int16(s))
		}
	}
	if len(out) != len(in) {
		t.Fatalf("decoded %d samples, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d = %d, want %d", i, out[i], in[i])
		}
	}
}

func TestFlacEmptyHasHeader(t *testing.T) {
	enc := encodeAll(t, nil)
	if enc.TotalFrames() != 0 {
		t.Errorf("TotalFrames = %d, want 0", enc.TotalFrames())
	}
	if data := enc.Bytes(); len(data) < 4 || string(data[:4]) != "fLaC" {
		t.Error("missing FLAC magic")
	}
}

func TestFlacRejectsAfterClose(t *testing.T) {
	enc := encodeAll(t, tone(10))
	if err := enc.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := enc.EncodeBlock(tone(10)); !errors.Is(err, ErrEncoderClosed) {
		t.Errorf("err = %v, want ErrEncoderClosed", err)
	}
}

func TestFlacRejectsOversizedBlock(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.EncodeBlock(make([]int16, BlockSize+1)); err == nil {
		t.Error("oversized block accepted")
	}
}
