package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.siskin/config.toml.
type Config struct {
	DefaultProfile string             `toml:"default_profile"`
	Account        string             `toml:"account"`
	Log            LogConfig          `toml:"log"`
	Conversation   ConversationConfig `toml:"conversation"`
	ReadTracker    ReadTrackerConfig  `toml:"read_tracker"`
	Roster         RosterConfig       `toml:"roster"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// ConversationConfig sizes the conversation log window.
type ConversationConfig struct {
	PageSize       int      `toml:"page_size"`
	WindowSize     int      `toml:"window_size"`
	UnreadOverhead int      `toml:"unread_overhead"`
	MergeWindow    Duration `toml:"merge_window"`
}

type ReadTrackerConfig struct {
	Debounce Duration `toml:"debounce"`
}

type RosterConfig struct {
	CacheSize int `toml:"cache_size"`
}

// Duration is a time.Duration written as a Go duration string ("500ms").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultProfile: "main",
		Log:            LogConfig{Level: "info"},
		Conversation: ConversationConfig{
			PageSize:       50,
			WindowSize:     200,
			UnreadOverhead: 10,
			MergeWindow:    Duration{60 * time.Second},
		},
		ReadTracker: ReadTrackerConfig{Debounce: Duration{500 * time.Millisecond}},
		Roster:      RosterConfig{CacheSize: 512},
	}
}

// Load reads config from the given path over Default(). Returns nil and an
// error if the file is missing or malformed.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load with missing files mapped to Default().
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
