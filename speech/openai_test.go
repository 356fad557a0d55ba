package speech

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/openai/openai-go/v3/option"
)

type fakeWhisper struct {
	mu       sync.Mutex
	calls    int
	model    string
	language string
	fileHead string
	status   int
	text     string
}

func (f *fakeWhisper) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.model = r.FormValue("model")
	f.language = r.FormValue("language")
	if file, _, err := r.FormFile("file"); err == nil {
		head := make([]byte, 4)
		io.ReadFull(file, head)
		f.fileHead = string(head)
		file.Close()
	}

	if f.status != 0 {
		w.WriteHeader(f.status)
		io.WriteString(w, `{"error":{"message":"bad request"}}`)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, `{"text":"`+f.text+`"}`)
}

func newTestOpenAI(t *testing.T, fw *fakeWhisper) *OpenAI {
	srv := httptest.NewServer(fw)
	t.Cleanup(srv.Close)
	return NewOpenAI("test-key", option.WithBaseURL(srv.URL+"/v1/"), option.WithMaxRetries(0))
}

func TestOpenAIReady(t *testing.T) {
	if err := NewOpenAI("").Ready(); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Ready() = %v, want ErrNoCredentials", err)
	}
}

func TestOpenAITranscribe(t *testing.T) {
	fw := &fakeWhisper{text: " hello from whisper "}
	o := newTestOpenAI(t, fw)

	s, err := o.Open(context.Background(), defaultStreamConfig("en-US"))
	if err != nil {
		t.Fatal(err)
	}
	results := gather(s)
	s.Feed(tonePCM(8000))
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	got := await(t, results)

	if len(got) != 1 || got[0] != (Result{Text: "hello from whisper", Final: true}) {
		t.Errorf("results = %+v", got)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.model != "whisper-1" {
		t.Errorf("model = %q", fw.model)
	}
	if fw.language != "en" {
		t.Errorf("language = %q, want en", fw.language)
	}
	if fw.fileHead != "fLaC" {
		t.Errorf("uploaded file starts %q, want fLaC", fw.fileHead)
	}
}

func TestOpenAINoAudioSkipsRequest(t *testing.T) {
	fw := &fakeWhisper{text: "unused"}
	o := newTestOpenAI(t, fw)

	s, err := o.Open(context.Background(), defaultStreamConfig(""))
	if err != nil {
		t.Fatal(err)
	}
	results := gather(s)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if got := await(t, results); len(got) != 0 {
		t.Errorf("results = %+v, want none", got)
	}
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.calls != 0 {
		t.Errorf("made %d API calls, want 0", fw.calls)
	}
}

func TestOpenAIAPIError(t *testing.T) {
	fw := &fakeWhisper{status: http.StatusBadRequest}
	o := newTestOpenAI(t, fw)

	s, err := o.Open(context.Background(), defaultStreamConfig(""))
	if err != nil {
		t.Fatal(err)
	}
	results := gather(s)
	s.Feed(tonePCM(4000))
	if err := s.Close(); err == nil {
		t.Fatal("expected API error")
	}
	if got := await(t, results); len(got) != 0 {
		t.Errorf("results = %+v, want none", got)
	}
}

func TestISOLanguage(t *testing.T) {
	for in, want := range map[string]string{
		"en-US": "en",
		"pt_BR": "pt",
		"DE":    "de",
		"":      "",
	} {
		if got := isoLanguage(in); got != want {
			t.Errorf("isoLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider("", Credentials{OpenAIKey: "o"})
	if err != nil || p.Name() != "openai" {
		t.Errorf("auto with openai key = %v, %v", p, err)
	}
	p, err = NewProvider("", Credentials{DeepgramKey: "d", OpenAIKey: "o"})
	if err != nil || p.Name() != "deepgram" {
		t.Errorf("auto prefers deepgram, got %v, %v", p, err)
	}
	if _, err := NewProvider("", Credentials{}); !errors.Is(err, ErrNoProvider) {
		t.Errorf("no keys = %v, want ErrNoProvider", err)
	}
	if _, err := NewProvider("azure", Credentials{}); !errors.Is(err, ErrNoProvider) {
		t.Errorf("unknown = %v, want ErrNoProvider", err)
	}
	p, err = NewProvider("Deepgram", Credentials{})
	if err != nil || p.Ready() == nil {
		t.Errorf("explicit provider without key should build but not be ready")
	}
}
