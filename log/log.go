// Package log writes the diagnostics and transcript logs. Every call is a
// no-op until Init succeeds, so library code can log unconditionally.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DiagnosticsFile = "diagnostics_log.txt"
	TranscribeFile  = "transcribe_log.txt"
	CrashFile       = "crash_log.txt"
)

var (
	mu         sync.Mutex
	dir        string
	diag       *zerolog.Logger
	diagFile   *os.File
	transcript *os.File
)

// ResolveDir picks the log directory: the -logpath flag, then
// MYVOICE_LOG_PATH, then the per-OS default. Relative paths are taken
// from the working directory.
func ResolveDir(flagPath string) (string, error) {
	p := flagPath
	if p == "" {
		p = os.Getenv("MYVOICE_LOG_PATH")
	}
	if p == "" {
		return defaultDir()
	}
	return filepath.Abs(p)
}

// defaultDir is ~/Library/Logs/myvoice on macOS and a logs directory under
// the user config dir elsewhere.
func defaultDir() (string, error) {
	if runtime.GOOS == "darwin" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Logs", "myvoice"), nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "myvoice", "logs"), nil
}

func SetDir(d string) {
	mu.Lock()
	dir = d
	mu.Unlock()
}

func openAppend(name string) (*os.File, error) {
	return os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

func Init() error {
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	df, err := openAppend(DiagnosticsFile)
	if err != nil {
		return err
	}
	tf, err := openAppend(TranscribeFile)
	if err != nil {
		df.Close()
		return err
	}

	l := zerolog.New(zerolog.ConsoleWriter{
		Out:        df,
		TimeFormat: time.DateTime,
		NoColor:    true,
	}).With().Timestamp().Int("pid", os.Getpid()).Logger()
	diag, diagFile, transcript = &l, df, tf
	return nil
}

// Close is safe to call more than once.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if diagFile != nil {
		diagFile.Close()
	}
	if transcript != nil {
		transcript.Close()
	}
	diag, diagFile, transcript = nil, nil, nil
}

// event starts a diagnostics entry, or returns nil before Init. zerolog
// treats a nil event as disabled.
func event(level zerolog.Level) *zerolog.Event {
	mu.Lock()
	defer mu.Unlock()
	if diag == nil {
		return nil
	}
	return diag.WithLevel(level)
}

func Info(msg string)                   { event(zerolog.InfoLevel).Msg(msg) }
func Infof(format string, args ...any)  { event(zerolog.InfoLevel).Msgf(format, args...) }
func Warn(msg string)                   { event(zerolog.WarnLevel).Msg(msg) }
func Warnf(format string, args ...any)  { event(zerolog.WarnLevel).Msgf(format, args...) }
func Error(msg string)                  { event(zerolog.ErrorLevel).Msg(msg) }
func Errorf(format string, args ...any) { event(zerolog.ErrorLevel).Msgf(format, args...) }

// TranscriptionText appends one committed transcript line:
// timestamp, pid and text separated by tabs.
func TranscriptionText(text string) {
	mu.Lock()
	defer mu.Unlock()
	if transcript == nil {
		return
	}
	fmt.Fprintf(transcript, "%s\t[%d]\t%s\n", time.Now().Format(time.DateTime), os.Getpid(), text)
}

// SessionStats mirrors speech.Stats so this package stays a leaf.
type SessionStats struct {
	ConnectMs  float64
	FinalizeMs float64
	TotalMs    float64
	AudioS     float64
	SentChunks int
	SentKB     float64
	Partials   int
	Finals     int
}

func SessionMetrics(provider, locale string, m SessionStats) {
	event(zerolog.InfoLevel).
		Str("provider", provider).
		Str("locale", locale).
		Float64("connect_ms", m.ConnectMs).
		Float64("finalize_ms", m.FinalizeMs).
		Float64("total_ms", m.TotalMs).
		Float64("audio_s", m.AudioS).
		Int("sent_chunks", m.SentChunks).
		Float64("sent_kb", m.SentKB).
		Int("partials", m.Partials).
		Int("finals", m.Finals).
		Msg("recognition_session")
}

func StateChange(from, to, reason string) {
	event(zerolog.InfoLevel).Str("from", from).Str("to", to).Str("reason", reason).Msg("dictation_state")
}

func Permission(name string, granted bool) {
	event(zerolog.InfoLevel).Str("permission", name).Bool("granted", granted).Msg("permission_probe")
}

func AppStart(provider, locale, key string) {
	event(zerolog.InfoLevel).Str("provider", provider).Str("locale", locale).Str("key", key).Msg("app_start")
}

func AppEnd(count int) {
	event(zerolog.InfoLevel).Int("count", count).Msg("app_end")
}
