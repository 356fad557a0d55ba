// Package speech runs streaming recognition sessions against a cloud
// provider, fed from an audio capture device.
package speech

import (
	"context"
	"errors"

	"myvoice/encoder"
)

var (
	ErrNotAuthorized  = errors.New("speech recognition not authorized")
	ErrSessionActive  = errors.New("recognition session already active")
	ErrNoProvider     = errors.New("no speech provider configured")
	ErrNoCredentials  = errors.New("provider credentials missing")
	ErrNoCaptureInput = errors.New("no capture device available")
)

const DefaultLocale = "en-US"

// Result is one provider hypothesis. Final results commit an utterance.
type Result struct {
	Text  string
	Final bool
}

type StreamConfig struct {
	Locale     string
	SampleRate int
	Channels   int
}

func defaultStreamConfig(locale string) StreamConfig {
	return StreamConfig{
		Locale:     locale,
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	}
}

// Stream is one provider connection. Results is closed when the stream
// ends, either after Close or because the provider failed; Close then
// reports the failure.
type Stream interface {
	Feed(pcm []byte)
	Results() <-chan Result
	Close() error
}

type Provider interface {
	Name() string
	Ready() error
	Open(ctx context.Context, cfg StreamConfig) (Stream, error)
}

// Stats is implemented by streams that record transfer metrics.
type Stats struct {
	ConnectMs  float64
	FinalizeMs float64
	TotalMs    float64
	AudioS     float64
	SentChunks int
	SentKB     float64
	Partials   int
	Finals     int
}

type statser interface {
	Stats() Stats
}

type EventKind int

const (
	EventPartial EventKind = iota
	EventFinal
	EventLevel
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventPartial:
		return "partial"
	case EventFinal:
		return "final"
	case EventLevel:
		return "level"
	case EventError:
		return "error"
	}
	return "unknown"
}

type Event struct {
	Kind  EventKind
	Text  string
	Level float64
	Err   error
}
