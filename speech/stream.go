package speech

import (
	"strings"
	"sync"
	"time"

	"myvoice/encoder"
	"myvoice/log"
)

const (
	streamChunkMs      = 200
	streamChunkBytes   = encoder.SampleRate * encoder.Channels * (encoder.BitsPerSample / 8) * streamChunkMs / 1000
	streamFinalizeIdle = 200 * time.Millisecond
	streamFinalizeMax  = 1000 * time.Millisecond
	streamDrainMax     = 2 * time.Second
)

// conn is a provider websocket: PCM goes out, hypotheses come back.
type conn interface {
	Send(pcm []byte) error
	Finalize() error
	Recv() (update, error)
	Close() error
}

type update struct {
	Transcript   string
	IsFinal      bool
	SpeechFinal  bool
	FromFinalize bool
}

// chunkedStream batches fed PCM into fixed-size chunks and pumps them over
// a conn dialled in the background, so Feed never waits on the network.
type chunkedStream struct {
	c         conn
	audioCh   chan []byte
	results   chan Result
	startedAt time.Time
	connected chan struct{} // closed when the conn is ready (or failed)

	sendDone      chan struct{}
	recvDone      chan struct{}
	finalized     chan struct{}
	finalizedOnce sync.Once
	closeOnce     sync.Once

	feedMu  sync.Mutex
	feedBuf []byte
	feedEnd bool

	mu      sync.Mutex
	err     error
	closing bool
	stats   streamStats
}

type streamStats struct {
	ConnectDur   time.Duration
	SentChunks   int
	SentBytes    uint64
	Partials     int
	Finals       int
	FinalizeWait time.Duration
	SessionDur   time.Duration
}

func (s streamStats) audioDuration() float64 {
	return float64(s.SentBytes) / float64(encoder.SampleRate*encoder.Channels*(encoder.BitsPerSample/8))
}

func newChunkedStream(dial func() (conn, error)) *chunkedStream {
	s := &chunkedStream{
		audioCh:   make(chan []byte, 128),
		results:   make(chan Result, 32),
		startedAt: time.Now(),
		sendDone:  make(chan struct{}),
		recvDone:  make(chan struct{}),
		finalized: make(chan struct{}),
		connected: make(chan struct{}),
	}

	go func() {
		connectStart := time.Now()
		c, err := dial()
		s.mu.Lock()
		s.stats.ConnectDur = time.Since(connectStart)
		s.mu.Unlock()

		if err != nil {
			s.setErr(err)
			close(s.connected)
			go s.discardAudio()
			close(s.recvDone)
			close(s.results)
			return
		}

		s.mu.Lock()
		s.c = c
		s.mu.Unlock()
		close(s.connected)
		go s.runSender()
		go s.runReceiver()
	}()

	return s
}

func (s *chunkedStream) Feed(pcm []byte) {
	s.mu.Lock()
	failed := s.err != nil
	s.mu.Unlock()
	if failed {
		return
	}

	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	if s.feedEnd {
		return
	}
	s.feedBuf = append(s.feedBuf, pcm...)
	for len(s.feedBuf) >= streamChunkBytes {
		chunk := make([]byte, streamChunkBytes)
		copy(chunk, s.feedBuf[:streamChunkBytes])
		s.feedBuf = s.feedBuf[streamChunkBytes:]
		s.audioCh <- chunk
	}
}

func (s *chunkedStream) Results() <-chan Result {
	return s.results
}

// Close flushes buffered audio, asks the provider to finalize, waits a
// bounded time for the last results and tears the connection down.
func (s *chunkedStream) Close() error {
	s.closeOnce.Do(s.close)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *chunkedStream) close() {
	s.feedMu.Lock()
	if len(s.feedBuf) > 0 {
		tail := make([]byte, len(s.feedBuf))
		copy(tail, s.feedBuf)
		s.feedBuf = nil
		s.audioCh <- tail
	}
	s.feedEnd = true
	close(s.audioCh)
	s.feedMu.Unlock()

	<-s.connected
	finalizeStart := time.Now()

	if s.c != nil {
		<-s.sendDone

		select {
		case <-s.finalized:
			time.Sleep(streamFinalizeIdle)
		case <-s.recvDone:
		case <-time.After(streamFinalizeMax):
		}

		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()
		s.c.Close()
	}

	select {
	case <-s.recvDone:
	case <-time.After(streamDrainMax):
		log.Warn("stream receiver drain timeout")
	}

	s.mu.Lock()
	s.stats.FinalizeWait = time.Since(finalizeStart)
	s.stats.SessionDur = time.Since(s.startedAt)
	s.mu.Unlock()
}

func (s *chunkedStream) discardAudio() {
	for range s.audioCh {
	}
}

func (s *chunkedStream) runSender() {
	defer close(s.sendDone)
	for chunk := range s.audioCh {
		if err := s.c.Send(chunk); err != nil {
			s.setErr(err)
			s.discardAudio()
			return
		}
		s.mu.Lock()
		s.stats.SentChunks++
		s.stats.SentBytes += uint64(len(chunk))
		s.mu.Unlock()
	}
	if err := s.c.Finalize(); err != nil {
		s.setErr(err)
	}
}

func (s *chunkedStream) runReceiver() {
	defer close(s.recvDone)
	defer close(s.results)
	for {
		u, err := s.c.Recv()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if !closing {
				s.setErr(err)
			}
			return
		}

		if u.FromFinalize {
			s.finalizedOnce.Do(func() { close(s.finalized) })
		}

		text := strings.TrimSpace(u.Transcript)
		if text == "" {
			continue
		}
		final := u.IsFinal || u.SpeechFinal || u.FromFinalize

		s.mu.Lock()
		if final {
			s.stats.Finals++
		} else {
			s.stats.Partials++
		}
		s.mu.Unlock()

		s.results <- Result{Text: text, Final: final}
	}
}

func (s *chunkedStream) setErr(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	first := s.err == nil
	if first {
		s.err = err
	}
	c := s.c
	s.mu.Unlock()
	if first && c != nil {
		c.Close()
	}
}

func (s *chunkedStream) Stats() Stats {
	s.mu.Lock()
	st := s.stats
	s.mu.Unlock()
	return Stats{
		ConnectMs:  float64(st.ConnectDur.Milliseconds()),
		FinalizeMs: float64(st.FinalizeWait.Milliseconds()),
		TotalMs:    float64(st.SessionDur.Milliseconds()),
		AudioS:     st.audioDuration(),
		SentChunks: st.SentChunks,
		SentKB:     float64(st.SentBytes) / 1024,
		Partials:   st.Partials,
		Finals:     st.Finals,
	}
}
