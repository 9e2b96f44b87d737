package inference

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes the browser session a Client starts.
type Config struct {
	// Headless runs Firefox without a visible window.
	Headless bool `yaml:"headless"`

	// BinaryPath is the Firefox executable. When empty, the usual install
	// locations and $PATH are searched.
	BinaryPath string `yaml:"binary_path"`

	// VerboseLogging forwards the browser output and console messages to
	// the logger.
	VerboseLogging bool `yaml:"verbose_logging"`

	// Prefs are merged over firefoxdp.RequiredPrefs. Values must be
	// strings, booleans or numbers.
	Prefs map[string]interface{} `yaml:"prefs"`

	// RemoteURL attaches to an already running browser's WebDriver BiDi
	// endpoint instead of launching one. BinaryPath and Prefs are then
	// ignored.
	RemoteURL string `yaml:"remote_url"`

	// ReadyTimeout bounds how long a navigation waits for the page to
	// finish loading. Zero means 30 seconds.
	ReadyTimeout time.Duration `yaml:"ready_timeout"`
}

// DefaultConfig returns the configuration used by the command line tools
// when no file is given: a headless browser found on the system.
func DefaultConfig() Config {
	return Config{Headless: true}
}

// LoadConfig reads a YAML configuration file over DefaultConfig. Unknown
// keys are rejected.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that every pref can be written to a profile.
func (c Config) Validate() error {
	for name, value := range c.Prefs {
		switch value.(type) {
		case string, bool, int, int64, float64:
		default:
			return fmt.Errorf("pref %q: unsupported value %v (%T)", name, value, value)
		}
	}
	if c.ReadyTimeout < 0 {
		return fmt.Errorf("negative ready_timeout %v", c.ReadyTimeout)
	}
	return nil
}

// clone returns a copy of c that shares no state with it.
func (c Config) clone() Config {
	if c.Prefs != nil {
		prefs := make(map[string]interface{}, len(c.Prefs))
		for k, v := range c.Prefs {
			prefs[k] = v
		}
		c.Prefs = prefs
	}
	return c
}
