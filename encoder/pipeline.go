package encoder

import (
	"encoding/binary"
	"errors"
	"sync"
)

var ErrPipelineClosed = errors.New("encoder pipeline closed")

// Pipeline slices little-endian PCM into BlockSize blocks and encodes them
// on a background goroutine so Write never waits on the codec.
type Pipeline struct {
	enc    Encoder
	blocks chan []int16
	done   chan struct{}

	mu        sync.Mutex
	sampleBuf []int16
	closed    bool
	encErr    error
}

func NewPipeline(enc Encoder) *Pipeline {
	p := &Pipeline{
		enc:    enc,
		blocks: make(chan []int16, 64),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Pipeline) run() {
	defer close(p.done)
	for block := range p.blocks {
		if err := p.enc.EncodeBlock(block); err != nil {
			p.mu.Lock()
			if p.encErr == nil {
				p.encErr = err
			}
			p.mu.Unlock()
		}
	}
}

func (p *Pipeline) Write(pcm []byte) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPipelineClosed
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		p.sampleBuf = append(p.sampleBuf, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	var ready [][]int16
	for len(p.sampleBuf) >= BlockSize {
		block := make([]int16, BlockSize)
		copy(block, p.sampleBuf[:BlockSize])
		p.sampleBuf = p.sampleBuf[BlockSize:]
		ready = append(ready, block)
	}
	// Sends happen under the lock so Close cannot close the channel mid-send.
	for _, block := range ready {
		p.blocks <- block
	}
	p.mu.Unlock()
	return nil
}

// Close flushes the partial tail block, waits for the encoder goroutine and
// finalizes the stream. Calling it twice returns ErrPipelineClosed.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPipelineClosed
	}
	p.closed = true
	if len(p.sampleBuf) > 0 {
		tail := make([]int16, len(p.sampleBuf))
		copy(tail, p.sampleBuf)
		p.sampleBuf = nil
		p.blocks <- tail
	}
	close(p.blocks)
	p.mu.Unlock()

	<-p.done

	p.mu.Lock()
	encErr := p.encErr
	p.mu.Unlock()
	if encErr != nil {
		return encErr
	}
	return p.enc.Close()
}

func (p *Pipeline) Encoder() Encoder {
	return p.enc
}
