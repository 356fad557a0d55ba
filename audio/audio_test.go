package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"
)

func pcm16(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestLevelSilence(t *testing.T) {
	if got := Level(pcm16(0, 0, 0, 0)); got != 0 {
		t.Errorf("silence level = %v, want 0", got)
	}
	if got := Level(nil); got != 0 {
		t.Errorf("empty level = %v, want 0", got)
	}
}

func TestLevelFullScale(t *testing.T) {
	got := Level(pcm16(-32768, -32768))
	if math.Abs(got-1) > 1e-9 {
		t.Errorf("full scale level = %v, want 1", got)
	}
}

func TestLevelHalfScale(t *testing.T) {
	got := Level(pcm16(16384, -16384, 16384, -16384))
	if math.Abs(got-0.5) > 1e-6 {
		t.Errorf("half scale level = %v, want 0.5", got)
	}
}

func TestLevelIgnoresOddByte(t *testing.T) {
	buf := append(pcm16(0, 0), 0xFF)
	if got := Level(buf); got != 0 {
		t.Errorf("level = %v, want 0", got)
	}
}

func TestFindDevice(t *testing.T) {
	ctx := NewFakeContextPCM(nil, false)

	d, err := FindDevice(ctx, "")
	if err != nil || d != nil {
		t.Fatalf("empty name: got %v, %v; want nil, nil", d, err)
	}

	d, err = FindDevice(ctx, "fake")
	if err != nil {
		t.Fatal(err)
	}
	if d.ID != "fake" {
		t.Errorf("got device %+v", d)
	}

	if _, err := FindDevice(ctx, "missing"); err == nil {
		t.Error("expected error for unknown device")
	}
}

func TestIsBluetooth(t *testing.T) {
	if !IsBluetooth("AirPods Pro") {
		t.Error("AirPods should be bluetooth")
	}
	if IsBluetooth("Built-in Microphone") {
		t.Error("built-in mic should not be bluetooth")
	}
}

func TestFakeCaptureStopBeforeStart(t *testing.T) {
	ctx := NewFakeContextPCM(pcm16(1, 2, 3), false)
	c, err := ctx.NewCapture(nil, CaptureConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	c.Stop() // should not panic
}

func TestFakeCapturePacedReplay(t *testing.T) {
	clip := make([]byte, fakeChunkFrames*2*2+10)
	for i := range clip {
		clip[i] = byte(i)
	}
	ctx := NewFakeContextPCM(clip, true)
	dev, err := ctx.NewCapture(nil, CaptureConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	c := ctx.Last()

	var mu sync.Mutex
	var got []byte
	dev.SetCallback(func(data []byte, _ uint32) {
		mu.Lock()
		if len(got) < len(clip) {
			got = append(got, data...)
		}
		mu.Unlock()
	})
	if err := dev.Start(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-c.AudioDone():
	case <-time.After(2 * time.Second):
		t.Fatal("clip never drained")
	}
	dev.Stop()

	mu.Lock()
	defer mu.Unlock()
	if !bytes.Equal(got, clip) {
		t.Errorf("replayed %d bytes, want the %d byte clip", len(got), len(clip))
	}
}

func TestPickArrowKeys(t *testing.T) {
	devices := []DeviceInfo{{Name: "A"}, {Name: "B"}, {Name: "C"}}
	in := keys("\x1b[B", "\x1b[B", "\x1b[A", "\r")
	var out bytes.Buffer
	i, err := Pick(in, &out, devices, "")
	if err != nil {
		t.Fatal(err)
	}
	if i != 1 {
		t.Errorf("picked %d, want 1", i)
	}
	if !strings.Contains(out.String(), "Select input device") {
		t.Error("prompt not rendered")
	}
}

func TestPickPreselectsCurrent(t *testing.T) {
	devices := []DeviceInfo{{Name: "A"}, {Name: "B"}, {Name: "C"}}
	i, err := Pick(keys("j", "\r"), io.Discard, devices, "B")
	if err != nil {
		t.Fatal(err)
	}
	if i != 2 {
		t.Errorf("picked %d, want 2", i)
	}
}

func TestPickPreselectsDefault(t *testing.T) {
	devices := []DeviceInfo{{Name: "A"}, {Name: "B", Default: true}, {Name: "C"}}
	var out bytes.Buffer
	i, err := Pick(keys("\r"), &out, devices, "")
	if err != nil {
		t.Fatal(err)
	}
	if i != 1 {
		t.Errorf("picked %d, want 1", i)
	}
	if !strings.Contains(out.String(), "B (default)") {
		t.Errorf("default not labelled:\n%s", out.String())
	}
}

func TestAmplifyClips(t *testing.T) {
	got := amplify([]int16{100, -100, 20000, -20000}, 8)
	want := []int16{800, -800, 32767, -32768}
	for i, w := range want {
		if v := int16(binary.LittleEndian.Uint16(got[i*2:])); v != w {
			t.Errorf("sample %d = %d, want %d", i, v, w)
		}
	}
}

func TestPickCancel(t *testing.T) {
	devices := []DeviceInfo{{Name: "A"}, {Name: "B"}}
	_, err := Pick(keys("q"), io.Discard, devices, "")
	if !errors.Is(err, ErrPickerCancelled) {
		t.Fatalf("err = %v, want ErrPickerCancelled", err)
	}
	_, err = Pick(keys(), io.Discard, devices, "")
	if err == nil {
		t.Fatal("EOF should fail")
	}
}

// keyReader returns one terminal key sequence per Read, like a raw tty.
type keyReader struct{ keys []string }

func keys(k ...string) io.Reader { return &keyReader{keys: k} }

func (r *keyReader) Read(p []byte) (int, error) {
	if len(r.keys) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.keys[0])
	r.keys = r.keys[1:]
	return n, nil
}
