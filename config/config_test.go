package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myvoice/hotkey"
	"myvoice/keyboard"
	"myvoice/speech"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DEEPGRAM_API_KEY", "OPENAI_API_KEY", "MYVOICE_PROVIDER", "MYVOICE_LOCALE", "MYVOICE_LOG_PATH", "MYVOICE_CONFIG_DIR"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadEnvFromDotenv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("DEEPGRAM_API_KEY=dg-file\nMYVOICE_LOCALE=de-DE\n"), 0644))
	t.Setenv("DEEPGRAM_API_KEY", "dg-env")

	e, err := LoadEnv(dotenv)
	require.NoError(t, err)
	assert.Equal(t, "dg-env", e.DeepgramKey, "process env wins over .env")
	assert.Equal(t, "de-DE", e.Locale)
	assert.Empty(t, e.OpenAIKey)
}

func TestLoadEnvMissingDotenv(t *testing.T) {
	clearEnv(t)
	_, err := LoadEnv(filepath.Join(t.TempDir(), ".env"))
	assert.NoError(t, err)
}

func TestLoadEnvMalformedDotenv(t *testing.T) {
	clearEnv(t)
	dotenv := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("DEEPGRAM_API_KEY=\"unterminated\n"), 0644))

	_, err := LoadEnv(dotenv)
	assert.ErrorContains(t, err, "load .env")
}

func TestEnvDir(t *testing.T) {
	e := Env{ConfigDir: "/tmp/custom"}
	d, err := e.Dir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom", d)

	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	t.Setenv("HOME", "/tmp/home")
	d, err = Env{}.Dir()
	require.NoError(t, err)
	assert.Equal(t, AppName, filepath.Base(d))
}

func TestParseFlagsTracksExplicit(t *testing.T) {
	f, err := ParseFlags("myvoice", []string{"-locale", "fr-FR", "-paste", "-test", "in.wav"}, io.Discard)
	require.NoError(t, err)
	assert.True(t, f.IsSet("locale"))
	assert.True(t, f.IsSet("paste"))
	assert.False(t, f.IsSet("key"))
	assert.Equal(t, "in.wav", f.Test)
	assert.Equal(t, hotkey.DefaultKey, f.Key)
	assert.True(t, f.TUI)
}

func TestParseFlagsRejectsUnknown(t *testing.T) {
	_, err := ParseFlags("myvoice", []string{"-nope"}, io.Discard)
	assert.Error(t, err)
}

func TestParseFlagsHelp(t *testing.T) {
	_, err := ParseFlags("myvoice", []string{"-h"}, io.Discard)
	assert.ErrorIs(t, err, ErrHelp)
}

func TestParseFlagsLogin(t *testing.T) {
	f, err := ParseFlags("myvoice", []string{"-login", "on", "-tray=false"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "on", f.Login)
	assert.False(t, f.Tray)

	_, err = ParseFlags("myvoice", []string{"-login", "yes"}, io.Discard)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestResolvePrecedence(t *testing.T) {
	s := DefaultSettings()
	s.Locale = "it-IT"
	s.Delay = Duration{50 * time.Millisecond}
	s.Device = "USB Mic"
	s.Provider = "openai"

	e := Env{Locale: "es-ES", Provider: "deepgram", DeepgramKey: "k"}

	f, err := ParseFlags("myvoice", []string{"-locale", "pt-BR"}, io.Discard)
	require.NoError(t, err)

	c, err := Resolve(f, e, s)
	require.NoError(t, err)
	assert.Equal(t, "pt-BR", c.Locale, "flag beats env and file")
	assert.Equal(t, "deepgram", c.Provider, "env beats file")
	assert.Equal(t, 50*time.Millisecond, c.Delay, "file beats default")
	assert.Equal(t, "USB Mic", c.Device)
	assert.Equal(t, hotkey.DefaultTapThreshold, c.TapThreshold, "default")
	assert.Equal(t, "k", c.Credentials.DeepgramKey)
}

func TestResolveDefaultFlagDoesNotOverrideFile(t *testing.T) {
	s := DefaultSettings()
	s.Paste = true
	f, err := ParseFlags("myvoice", nil, io.Discard)
	require.NoError(t, err)

	c, err := Resolve(f, Env{}, s)
	require.NoError(t, err)
	assert.True(t, c.Paste)
}

func TestResolveValidates(t *testing.T) {
	s := DefaultSettings()
	s.Key = "ctrl+nosuchkey"
	_, err := Resolve(nil, Env{}, s)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorIs(t, err, hotkey.ErrUnknownKey)

	s = DefaultSettings()
	s.TapThreshold = Duration{}
	_, err = Resolve(nil, Env{}, s)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSettingsDefaultsWhenMissing(t *testing.T) {
	s, err := LoadSettings(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
	assert.Equal(t, keyboard.DefaultDelay, s.Delay.Duration)
	assert.Equal(t, speech.DefaultLocale, s.Locale)
}

func TestSettingsCorruptFallsBack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(SettingsPath(dir), []byte("key = [unterminated"), 0644))
	s, err := LoadSettings(dir)
	assert.Error(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestSettingsPartialKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(SettingsPath(dir), []byte("locale = \"ja-JP\"\ntap_threshold = \"300ms\"\n"), 0644))
	s, err := LoadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, "ja-JP", s.Locale)
	assert.Equal(t, 300*time.Millisecond, s.TapThreshold.Duration)
	assert.Equal(t, hotkey.DefaultKey, s.Key)
}

func TestSaveCreatesDirAndRoundTrips(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "myvoice")
	want := DefaultSettings()
	want.Device = "Headset"
	want.Paste = true
	want.Delay = Duration{35 * time.Millisecond}

	require.NoError(t, SaveSettings(dir, want))
	got, err := LoadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	w, err := Watch(dir, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	s := DefaultSettings()
	s.Locale = "nl-NL"
	require.NoError(t, SaveSettings(dir, s))

	select {
	case got := <-w.Changes():
		assert.Equal(t, "nl-NL", got.Locale)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after save")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := Watch(dir, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	select {
	case <-w.Changes():
		t.Fatal("reloaded for unrelated file")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcherStopClosesChanges(t *testing.T) {
	w, err := Watch(t.TempDir(), 0)
	require.NoError(t, err)
	w.Stop()
	w.Stop()
	_, ok := <-w.Changes()
	assert.False(t, ok)
}
