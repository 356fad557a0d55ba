package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"myvoice/hotkey"
	"myvoice/keyboard"
	"myvoice/speech"
)

const (
	AppName      = "myvoice"
	SettingsFile = "settings.toml"
)

// Env holds settings that come from the process environment or a .env file.
type Env struct {
	DeepgramKey string `env:"DEEPGRAM_API_KEY"`
	OpenAIKey   string `env:"OPENAI_API_KEY"`
	Provider    string `env:"MYVOICE_PROVIDER"`
	Locale      string `env:"MYVOICE_LOCALE"`
	LogPath     string `env:"MYVOICE_LOG_PATH"`
	ConfigDir   string `env:"MYVOICE_CONFIG_DIR"`
}

// LoadEnv reads .env files (default ".env" in the working directory) and
// then parses the environment. Missing .env files are not an error; values
// already present in the environment win over the file.
func LoadEnv(files ...string) (Env, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Env{}, fmt.Errorf("load .env: %w", err)
	}
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse environment: %w", err)
	}
	return e, nil
}

// Dir returns the settings directory: MYVOICE_CONFIG_DIR or the OS config dir.
func (e Env) Dir() (string, error) {
	if e.ConfigDir != "" {
		return e.ConfigDir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, AppName), nil
}

// Flags is the parsed command line.
type Flags struct {
	Provider     string
	Locale       string
	Key          string
	TapThreshold time.Duration
	Delay        time.Duration
	Paste        bool
	Device       string
	Setup        bool
	LogPath      string
	Doctor       bool
	Test         string
	TUI          bool
	Tray         bool
	Login        string
	Version      bool

	set map[string]bool
}

// IsSet reports whether the named flag appeared on the command line.
func (f *Flags) IsSet(name string) bool { return f.set[name] }

// ErrHelp is returned by ParseFlags when -h or -help was given.
var ErrHelp = flag.ErrHelp

func ParseFlags(name string, args []string, output io.Writer) (*Flags, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)

	f := &Flags{}
	fs.StringVar(&f.Provider, "provider", "auto", "Speech provider: auto, deepgram or openai")
	fs.StringVar(&f.Locale, "locale", speech.DefaultLocale, "Recognition locale (e.g. en-US, de-DE)")
	fs.StringVar(&f.Key, "key", hotkey.DefaultKey, "Trigger key, optionally with modifiers (e.g. ctrl+shift+space)")
	fs.DurationVar(&f.TapThreshold, "tap", hotkey.DefaultTapThreshold, "Maximum gap between the two taps of a double-tap")
	fs.DurationVar(&f.Delay, "delay", keyboard.DefaultDelay, "Delay between synthesized keystrokes")
	fs.BoolVar(&f.Paste, "paste", false, "Insert transcripts through the clipboard instead of typing")
	fs.StringVar(&f.Device, "device", "", "Use named microphone device")
	fs.BoolVar(&f.Setup, "setup", false, "Select microphone device interactively and save it")
	fs.StringVar(&f.LogPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	fs.BoolVar(&f.Doctor, "doctor", false, "Run system diagnostics and exit")
	fs.StringVar(&f.Test, "test", "", "Test mode: headless, stdin-driven, audio from the given WAV file")
	fs.BoolVar(&f.TUI, "tui", true, "Run with terminal UI")
	fs.BoolVar(&f.Tray, "tray", true, "Show a menu bar icon (macOS)")
	fs.StringVar(&f.Login, "login", "", "Launch at login: on or off, then exit")
	fs.BoolVar(&f.Version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch f.Login {
	case "", "on", "off":
	default:
		return nil, fmt.Errorf("%w: -login %q, want on or off", ErrInvalid, f.Login)
	}
	f.set = make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// Config is the effective configuration after merging every source.
type Config struct {
	Provider     string
	Locale       string
	Key          string
	TapThreshold time.Duration
	Delay        time.Duration
	Paste        bool
	Device       string
	LogPath      string
	Credentials  speech.Credentials
	Dir          string
}

var ErrInvalid = errors.New("invalid configuration")

// Resolve merges sources with precedence flags > env > settings file > defaults.
// s must already carry defaults for keys absent from the file.
func Resolve(f *Flags, e Env, s Settings) (Config, error) {
	c := Config{
		Provider:     s.Provider,
		Locale:       s.Locale,
		Key:          s.Key,
		TapThreshold: s.TapThreshold.Duration,
		Delay:        s.Delay.Duration,
		Paste:        s.Paste,
		Device:       s.Device,
		LogPath:      e.LogPath,
		Credentials: speech.Credentials{
			DeepgramKey: e.DeepgramKey,
			OpenAIKey:   e.OpenAIKey,
		},
	}
	if e.Provider != "" {
		c.Provider = e.Provider
	}
	if e.Locale != "" {
		c.Locale = e.Locale
	}

	if f != nil {
		if f.IsSet("provider") {
			c.Provider = f.Provider
		}
		if f.IsSet("locale") {
			c.Locale = f.Locale
		}
		if f.IsSet("key") {
			c.Key = f.Key
		}
		if f.IsSet("tap") {
			c.TapThreshold = f.TapThreshold
		}
		if f.IsSet("delay") {
			c.Delay = f.Delay
		}
		if f.IsSet("paste") {
			c.Paste = f.Paste
		}
		if f.IsSet("device") {
			c.Device = f.Device
		}
		if f.IsSet("logpath") {
			c.LogPath = f.LogPath
		}
	}

	if c.TapThreshold <= 0 {
		return c, fmt.Errorf("%w: tap threshold %v", ErrInvalid, c.TapThreshold)
	}
	if c.Delay < 0 {
		return c, fmt.Errorf("%w: keystroke delay %v", ErrInvalid, c.Delay)
	}
	if _, err := hotkey.ParseCombo(c.Key); err != nil {
		return c, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return c, nil
}
