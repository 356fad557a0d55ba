package encoder

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func samplesToPCM(n int) []byte {
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(i%2000-1000)))
	}
	return buf
}

func TestPipelineFlushesTail(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatal(err)
	}
	p := NewPipeline(enc)

	total := BlockSize*2 + 100
	pcm := samplesToPCM(total)
	// Feed in uneven slices to exercise block reassembly.
	for off := 0; off < len(pcm); off += 1001 {
		end := min(off+1001, len(pcm))
		if err := p.Write(pcm[off:end]); err != nil {
			t.Fatal(err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	if got := enc.TotalFrames(); got != uint64(total) {
		t.Errorf("TotalFrames = %d, want %d", got, total)
	}
	if data := enc.Bytes(); len(data) < 4 || string(data[:4]) != "fLaC" {
		t.Error("output does not start with FLAC magic")
	}
}

func TestPipelineClosedTwice(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatal(err)
	}
	p := NewPipeline(enc)
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); !errors.Is(err, ErrPipelineClosed) {
		t.Errorf("second Close = %v, want ErrPipelineClosed", err)
	}
	if err := p.Write([]byte{0, 0}); !errors.Is(err, ErrPipelineClosed) {
		t.Errorf("Write after Close = %v, want ErrPipelineClosed", err)
	}
}

func TestDuration(t *testing.T) {
	if got := Duration(SampleRate); got != time.Second {
		t.Errorf("Duration(%d) = %v, want 1s", SampleRate, got)
	}
	if got := PCMBytes(10); got != 20 {
		t.Errorf("PCMBytes(10) = %d, want 20", got)
	}
}
