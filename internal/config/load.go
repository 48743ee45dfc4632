package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"tasksched/internal/storage"
	logx "tasksched/pkg/logx"
)

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "warn", Console: true},
		Storage: StorageConfig{Driver: "file", Path: storage.DefaultPath},
	}
}

// Load reads path, or returns Defaults when path is empty.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return Defaults(), nil
	}
	cfg, err := Parse(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes path strictly (unknown keys and trailing data are errors)
// without applying defaults.
func Parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if len(bytes.TrimSpace(jb)) == 0 || bytes.Equal(bytes.TrimSpace(jb), []byte("null")) {
		return &cfg, nil
	}
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills empty fields. Logging.Console is left as decoded.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "warn"
	}
	if strings.TrimSpace(c.Storage.Driver) == "" {
		c.Storage.Driver = "file"
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		if strings.HasPrefix(strings.ToLower(c.Storage.Driver), "sqlite") {
			c.Storage.Path = "./tasks.db"
		} else {
			c.Storage.Path = storage.DefaultPath
		}
	}
}

// Validate checks values that would otherwise fail later, mid-command.
func (c *Config) Validate() error {
	var errs []error
	if !logx.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	if !storage.KnownDriver(c.Storage.Driver) {
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("storage.lock_timeout", c.Storage.LockTimeout); err != nil {
		errs = append(errs, err)
	}
	minWork, err := ParseDurationField("scheduler.min_work", c.Scheduler.MinWork)
	if err != nil {
		errs = append(errs, err)
	}
	maxWork, err := ParseDurationField("scheduler.max_work", c.Scheduler.MaxWork)
	if err != nil {
		errs = append(errs, err)
	}
	if minWork > 0 && maxWork > 0 && maxWork < minWork {
		errs = append(errs, fmt.Errorf("scheduler.max_work (%s) must be >= scheduler.min_work (%s)", maxWork, minWork))
	}
	if c.Scheduler.CharsPerSecond < 0 {
		errs = append(errs, errors.New("scheduler.chars_per_second must be >= 0"))
	}
	if c.Scheduler.RatePerSec < 0 {
		errs = append(errs, errors.New("scheduler.rate_per_sec must be >= 0"))
	}
	if c.Scheduler.Burst < 0 {
		errs = append(errs, errors.New("scheduler.burst must be >= 0"))
	}
	return errors.Join(errs...)
}

// Summary returns safe structured attrs describing the effective config.
func (c *Config) Summary() []logx.Field {
	return []logx.Field{
		logx.String("logging.level", c.Logging.Level),
		logx.Bool("logging.file_enabled", c.Logging.File.Enabled),
		logx.String("storage.driver", c.Storage.Driver),
		logx.String("storage.path", c.Storage.Path),
		logx.Any("scheduler.rate_per_sec", c.Scheduler.RatePerSec),
	}
}
