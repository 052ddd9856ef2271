// Package config loads ~/.mailcore/config.toml.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/matheus3301/mailcore/internal/errs"
)

// Duration is a time.Duration written as "10s" in TOML.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the global ~/.mailcore/config.toml.
type Config struct {
	DefaultAccount    string   `toml:"default_account"    validate:"omitempty,max=64"`
	LogLevel          string   `toml:"log_level"          validate:"oneof=debug info warn error"`
	HousekeepingDelay Duration `toml:"housekeeping_delay" validate:"gte=0"`
	JobPollInterval   Duration `toml:"job_poll_interval"  validate:"gte=0"`
	JobMaxTries       int      `toml:"job_max_tries"      validate:"gte=1,lte=100"`
	MetricsAddr       string   `toml:"metrics_addr"       validate:"omitempty,hostname_port"`
	StockStrings      string   `toml:"stock_strings"      validate:"omitempty,file"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		LogLevel:          "info",
		HousekeepingDelay: Duration(10 * time.Second),
		JobPollInterval:   Duration(time.Second),
		JobMaxTries:       5,
	}
}

// Load reads config from the given path on top of the defaults. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, errs.Config("decode "+path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errs.Config("invalid config", err)
	}
	return nil
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
