package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	deepgramModel    = "nova-3"
)

type Deepgram struct {
	apiKey   string
	model    string
	endpoint string
	dialer   *websocket.Dialer
}

func NewDeepgram(apiKey string) *Deepgram {
	return &Deepgram{
		apiKey:   apiKey,
		model:    deepgramModel,
		endpoint: deepgramEndpoint,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

func (d *Deepgram) Name() string { return "deepgram" }

func (d *Deepgram) Ready() error {
	if d.apiKey == "" {
		return fmt.Errorf("deepgram: %w (set DEEPGRAM_API_KEY)", ErrNoCredentials)
	}
	return nil
}

func (d *Deepgram) Open(ctx context.Context, cfg StreamConfig) (Stream, error) {
	if err := d.Ready(); err != nil {
		return nil, err
	}
	u, err := d.listenURL(cfg)
	if err != nil {
		return nil, err
	}
	return newChunkedStream(func() (conn, error) {
		return d.dial(ctx, u)
	}), nil
}

func (d *Deepgram) listenURL(cfg StreamConfig) (string, error) {
	endpoint, err := url.Parse(d.endpoint)
	if err != nil {
		return "", fmt.Errorf("deepgram endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("model", d.model)
	q.Set("encoding", "linear16")
	q.Set("interim_results", "true")
	q.Set("smart_format", "true")
	if cfg.SampleRate > 0 {
		q.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	}
	if cfg.Channels > 0 {
		q.Set("channels", strconv.Itoa(cfg.Channels))
	}
	if cfg.Locale != "" {
		q.Set("language", cfg.Locale)
	}
	endpoint.RawQuery = q.Encode()
	return endpoint.String(), nil
}

func (d *Deepgram) dial(ctx context.Context, u string) (conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Token "+d.apiKey)

	ws, resp, err := d.dialer.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("deepgram connect: HTTP %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("deepgram connect: %w", err)
	}
	return &deepgramConn{ws: ws}, nil
}

type deepgramResponse struct {
	Type         string `json:"type"`
	IsFinal      bool   `json:"is_final"`
	SpeechFinal  bool   `json:"speech_final"`
	FromFinalize bool   `json:"from_finalize"`
	Channel      struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// deepgramConn has one writer (the stream sender) and one reader.
type deepgramConn struct {
	ws        *websocket.Conn
	closeOnce sync.Once
}

func (c *deepgramConn) Send(pcm []byte) error {
	return c.ws.WriteMessage(websocket.BinaryMessage, pcm)
}

func (c *deepgramConn) Finalize() error {
	return c.ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"Finalize"}`))
}

func (c *deepgramConn) Recv() (update, error) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return update{}, err
		}

		var resp deepgramResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return update{}, fmt.Errorf("deepgram response: %w", err)
		}
		// Metadata, SpeechStarted and UtteranceEnd carry no transcript
		if resp.Type != "" && resp.Type != "Results" {
			continue
		}

		transcript := ""
		if len(resp.Channel.Alternatives) > 0 {
			transcript = resp.Channel.Alternatives[0].Transcript
		}
		return update{
			Transcript:   transcript,
			IsFinal:      resp.IsFinal,
			SpeechFinal:  resp.SpeechFinal,
			FromFinalize: resp.FromFinalize,
		}, nil
	}
}

func (c *deepgramConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = c.ws.Close()
	})
	return err
}
