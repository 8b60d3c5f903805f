package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigError flags one invalid or missing settings field. It is never
// fatal: the caller logs it and falls back to the built-in default for that
// field.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid setting %q: %s", e.Field, e.Msg)
}

// Settings is the plain key-value record persisted between runs.
type Settings struct {
	Remote    string `yaml:"remote"`
	RateMS    uint   `yaml:"rate_ms"`
	TimeoutMS uint   `yaml:"timeout_ms"`
	History   uint   `yaml:"history"`
	Running   bool   `yaml:"running"`
}

// DefaultSettings returns the built-in defaults used when no settings file
// exists or individual fields are invalid.
func DefaultSettings() Settings {
	return Settings{
		RateMS:    100,
		TimeoutMS: 1000,
		History:   600,
		Running:   true,
	}
}

// Rate returns the poll interval as a duration.
func (s Settings) Rate() time.Duration {
	return time.Duration(s.RateMS) * time.Millisecond
}

// Timeout returns the probe timeout as a duration.
func (s Settings) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// DefaultPath returns the default settings file location under the user
// config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "latgraph", "config.yaml"), nil
}

// LoadSettings reads the settings file. A missing file is not an error and
// returns the defaults unchanged. Invalid fields are replaced by their
// defaults and reported as ConfigErrors so the caller can log them; the
// program still starts.
func LoadSettings(path string) (Settings, []error, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return settings, nil, nil
	}
	if err != nil {
		return settings, nil, err
	}

	// Unmarshal over the defaults so fields absent from the file keep them.
	loaded := settings
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return settings, nil, fmt.Errorf("parse settings file %s: %w", path, err)
	}

	var fieldErrs []error
	if loaded.RateMS == 0 {
		fieldErrs = append(fieldErrs, &ConfigError{Field: "rate_ms", Msg: "must be positive"})
		loaded.RateMS = settings.RateMS
	}
	if loaded.TimeoutMS == 0 {
		fieldErrs = append(fieldErrs, &ConfigError{Field: "timeout_ms", Msg: "must be positive"})
		loaded.TimeoutMS = settings.TimeoutMS
	}
	if loaded.History == 0 {
		fieldErrs = append(fieldErrs, &ConfigError{Field: "history", Msg: "must be at least 1"})
		loaded.History = settings.History
	}
	if loaded.Remote != "" {
		loaded.Remote = EnsurePort(loaded.Remote)
	}

	return loaded, fieldErrs, nil
}

// SaveSettings writes the settings record, creating parent directories as
// needed.
func SaveSettings(path string, settings Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Merge applies explicitly given command-line flags on top of the loaded
// settings. Flags left at their defaults do not override the file.
func Merge(settings Settings, args Args) Settings {
	if args.Changed("remote") {
		settings.Remote = args.Remote
	}
	if args.Changed("rate") {
		settings.RateMS = uint(args.Rate.Milliseconds())
	}
	if args.Changed("timeout") {
		settings.TimeoutMS = uint(args.Timeout.Milliseconds())
	}
	if args.Changed("history") {
		settings.History = args.History
	}
	if args.Changed("paused") {
		settings.Running = !args.Paused
	}
	if args.Changed("running") {
		settings.Running = args.Running
	}
	// Can't poll without a target.
	if settings.Remote == "" {
		settings.Running = false
	}
	return settings
}
