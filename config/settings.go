package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"myvoice/hotkey"
	"myvoice/keyboard"
	"myvoice/log"
	"myvoice/speech"
)

// Duration is a time.Duration stored as a Go duration string ("400ms").
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Settings is the persisted part of the configuration.
type Settings struct {
	Key          string   `toml:"key"`
	TapThreshold Duration `toml:"tap_threshold"`
	Delay        Duration `toml:"keystroke_delay"`
	Device       string   `toml:"device"`
	Paste        bool     `toml:"paste"`
	Locale       string   `toml:"locale"`
	Provider     string   `toml:"provider"`
}

func DefaultSettings() Settings {
	return Settings{
		Key:          hotkey.DefaultKey,
		TapThreshold: Duration{hotkey.DefaultTapThreshold},
		Delay:        Duration{keyboard.DefaultDelay},
		Locale:       speech.DefaultLocale,
		Provider:     "auto",
	}
}

func SettingsPath(dir string) string {
	return filepath.Join(dir, SettingsFile)
}

// LoadSettings reads dir/settings.toml. Keys absent from the file keep their
// defaults. A missing or unparsable file yields the defaults; the parse error
// is logged and returned so callers can surface it.
func LoadSettings(dir string) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(SettingsPath(dir))
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	if _, err := toml.Decode(string(data), &s); err != nil {
		log.Warnf("settings file is corrupt, using defaults: %v", err)
		return DefaultSettings(), fmt.Errorf("decode %s: %w", SettingsFile, err)
	}
	return s, nil
}

// SaveSettings writes s to dir/settings.toml, creating dir if needed. The
// file is replaced atomically so a watcher never sees a partial write.
func SaveSettings(dir string, s Settings) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	tmp, err := os.CreateTemp(dir, SettingsFile+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), SettingsPath(dir))
}
