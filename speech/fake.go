package speech

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// FakeProvider replays scripted results. Live results arrive as soon as the
// stream opens; Tail results arrive while it is being closed. A non-nil Err
// ends the stream right after the live results and is returned by Close.
type FakeProvider struct {
	Live     []Result
	Tail     []Result
	Err      error
	ReadyErr error
	OpenErr  error
	// CloseDelay holds Close back before the tail results, like a slow
	// finalize or upload.
	CloseDelay time.Duration

	fed    atomic.Int64
	mu     sync.Mutex
	opened []StreamConfig
}

func (f *FakeProvider) Name() string { return "fake" }
func (f *FakeProvider) Ready() error { return f.ReadyErr }

func (f *FakeProvider) Open(_ context.Context, cfg StreamConfig) (Stream, error) {
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	f.mu.Lock()
	f.opened = append(f.opened, cfg)
	f.mu.Unlock()

	s := &fakeStream{
		p:       f,
		results: make(chan Result, len(f.Live)+len(f.Tail)),
	}
	for _, r := range f.Live {
		s.results <- r
	}
	if f.Err != nil {
		s.ended = true
		close(s.results)
	}
	return s, nil
}

// FedBytes is the total PCM fed to all streams.
func (f *FakeProvider) FedBytes() int64 { return f.fed.Load() }

func (f *FakeProvider) Opened() []StreamConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]StreamConfig(nil), f.opened...)
}

type fakeStream struct {
	p       *FakeProvider
	results chan Result
	ended   bool
	once    sync.Once
}

func (s *fakeStream) Feed(pcm []byte)        { s.p.fed.Add(int64(len(pcm))) }
func (s *fakeStream) Results() <-chan Result { return s.results }

func (s *fakeStream) Close() error {
	if s.p.Err != nil {
		return s.p.Err
	}
	s.once.Do(func() {
		if s.ended {
			return
		}
		time.Sleep(s.p.CloseDelay)
		for _, r := range s.p.Tail {
			s.results <- r
		}
		close(s.results)
	})
	return nil
}
