package speech

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"myvoice/encoder"
)

const openaiTimeout = 30 * time.Second

// OpenAI transcribes a whole recording in one request when the stream is
// closed. It yields no partials and at most one final.
type OpenAI struct {
	apiKey string
	model  openai.AudioModel
	client openai.Client
}

func NewOpenAI(apiKey string, opts ...option.RequestOption) *OpenAI {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(1)}, opts...)
	return &OpenAI{
		apiKey: apiKey,
		model:  openai.AudioModelWhisper1,
		client: openai.NewClient(opts...),
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Ready() error {
	if o.apiKey == "" {
		return fmt.Errorf("openai: %w (set OPENAI_API_KEY)", ErrNoCredentials)
	}
	return nil
}

func (o *OpenAI) Open(ctx context.Context, cfg StreamConfig) (Stream, error) {
	if err := o.Ready(); err != nil {
		return nil, err
	}
	enc, err := encoder.NewFlac()
	if err != nil {
		return nil, err
	}
	return &batchStream{
		ctx:      context.WithoutCancel(ctx),
		pipeline: encoder.NewPipeline(enc),
		results:  make(chan Result, 1),
		language: isoLanguage(cfg.Locale),
		started:  time.Now(),
		transcribe: func(ctx context.Context, audio []byte, language string) (string, error) {
			params := openai.AudioTranscriptionNewParams{
				File:  openai.File(bytes.NewReader(audio), enc.Filename(), enc.ContentType()),
				Model: o.model,
			}
			if language != "" {
				params.Language = openai.String(language)
			}
			resp, err := o.client.Audio.Transcriptions.New(ctx, params)
			if err != nil {
				return "", err
			}
			return resp.Text, nil
		},
	}, nil
}

// isoLanguage reduces a BCP 47 locale such as en-US to its ISO-639-1 code.
func isoLanguage(locale string) string {
	if i := strings.IndexAny(locale, "-_"); i >= 0 {
		locale = locale[:i]
	}
	return strings.ToLower(locale)
}

type batchStream struct {
	ctx        context.Context
	pipeline   *encoder.Pipeline
	results    chan Result
	language   string
	transcribe func(ctx context.Context, audio []byte, language string) (string, error)
	started    time.Time

	once  sync.Once
	err   error
	stats streamStats
}

func (b *batchStream) Feed(pcm []byte) {
	// Writes after Close are dropped.
	b.pipeline.Write(pcm)
}

func (b *batchStream) Results() <-chan Result {
	return b.results
}

func (b *batchStream) Close() error {
	b.once.Do(func() {
		defer close(b.results)

		if err := b.pipeline.Close(); err != nil {
			b.err = fmt.Errorf("encoding audio: %w", err)
			return
		}
		enc := b.pipeline.Encoder()
		frames := enc.TotalFrames()
		b.stats.SentBytes = encoder.PCMBytes(frames)
		if frames == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(b.ctx, openaiTimeout)
		defer cancel()

		start := time.Now()
		text, err := b.transcribe(ctx, enc.Bytes(), b.language)
		b.stats.FinalizeWait = time.Since(start)
		b.stats.SessionDur = time.Since(b.started)
		b.stats.SentChunks = 1
		if err != nil {
			b.err = fmt.Errorf("openai transcription: %w", err)
			return
		}
		if text = strings.TrimSpace(text); text != "" {
			b.stats.Finals = 1
			b.results <- Result{Text: text, Final: true}
		}
	})
	return b.err
}

func (b *batchStream) Stats() Stats {
	st := b.stats
	return Stats{
		FinalizeMs: float64(st.FinalizeWait.Milliseconds()),
		TotalMs:    float64(st.SessionDur.Milliseconds()),
		AudioS:     st.audioDuration(),
		SentChunks: st.SentChunks,
		SentKB:     float64(st.SentBytes) / 1024,
		Finals:     st.Finals,
	}
}
