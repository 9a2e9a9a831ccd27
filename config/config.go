// Package config loads the mcuprobe run configuration from toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/speters/mcuprobe/mcu"
)

// Duration is a time.Duration written as "2s" in toml
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config holds everything a run needs besides the suites themselves
type Config struct {
	// Link is a serial device path or tcp://host:port
	Link    string   `toml:"link"`
	Baud    int      `toml:"baud"`
	Dialect string   `toml:"dialect"`
	Timeout Duration `toml:"timeout"`
	// Settle is waited after opening the link, boards reset when the port opens
	Settle Duration `toml:"settle"`
	// CSV is the result log path. Empty picks test_log_<time>.csv, "-" disables it.
	CSV       string   `toml:"csv"`
	SuiteFile string   `toml:"suite_file"`
	Suites    []string `toml:"suites"`
	Listen    string   `toml:"listen"`
	Verbose   bool     `toml:"verbose"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Baud:    mcu.DefaultBaud,
		Dialect: mcu.DialectB.Name,
		Timeout: Duration{mcu.DefaultTimeout},
		Settle:  Duration{2 * time.Second},
		Suites:  append([]string(nil), mcu.DefaultSuites...),
		Listen:  ":8000",
	}
}

// Load reads the toml file at path over the defaults and validates the result
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges. A missing link is not an error, commands ask for it when needed.
func (c Config) Validate() error {
	if c.Baud <= 0 {
		return fmt.Errorf("baud must be positive, got %d", c.Baud)
	}
	if _, err := mcu.ParseDialect(c.Dialect); err != nil {
		return err
	}
	if c.Timeout.Duration <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.Settle.Duration < 0 {
		return errors.New("settle must not be negative")
	}
	return nil
}

// DialectValue returns the parsed dialect, Validate must have passed
func (c Config) DialectValue() mcu.Dialect {
	d, _ := mcu.ParseDialect(c.Dialect)
	return d
}
