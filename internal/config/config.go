// Package config loads writer settings from a YAML file and ISATAB_*
// environment variables. Environment values override the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"isatab/internal/blob"
	"isatab/internal/destination"
	"isatab/internal/exchange"
	"isatab/internal/ledger"
	"isatab/internal/pipeline"
	"isatab/internal/render"
)

// Config is the full writer configuration.
type Config struct {
	PoolSize               int           `yaml:"pool_size"`
	PipeChunks             int           `yaml:"pipe_chunks"`
	ChunkSize              int           `yaml:"chunk_size"`
	ExchangeMaxWait        time.Duration `yaml:"exchange_max_wait"`
	ExchangeInitialBackoff time.Duration `yaml:"exchange_initial_backoff"`
	ExchangeMaxInterval    time.Duration `yaml:"exchange_max_interval"`
	LockTimeout            time.Duration `yaml:"lock_timeout"`
	LineSeparator          string        `yaml:"line_separator"`
	LogLevel               string        `yaml:"log_level"`

	Blob   blob.Settings   `yaml:"blob"`
	Ledger ledger.Settings `yaml:"ledger"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		PoolSize:               pipeline.DefaultConfig.PoolSize,
		PipeChunks:             pipeline.DefaultConfig.PipeChunks,
		ChunkSize:              pipeline.DefaultConfig.ChunkSize,
		ExchangeMaxWait:        exchange.DefaultBackoff.MaxWait,
		ExchangeInitialBackoff: exchange.DefaultBackoff.Initial,
		ExchangeMaxInterval:    exchange.DefaultBackoff.MaxInterval,
		LockTimeout:            destination.DefaultLockTimeout,
		LineSeparator:          render.DefaultEOL,
		LogLevel:               "info",
		Blob:                   blob.Settings{Driver: blob.DriverFilesystem, FSRoot: "./isatab-out"},
		Ledger:                 ledger.Settings{Driver: ledger.DriverNone},
	}
}

// Load returns Default overlaid with the environment.
func Load() (Config, error) {
	cfg := Default()
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// LoadFile reads path over Default, then applies the environment. An empty
// path behaves like Load.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Load()
	}
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects values the scheduler cannot run with.
func (c Config) Validate() error {
	switch {
	case c.PoolSize < 1:
		return fmt.Errorf("pool_size must be positive, got %d", c.PoolSize)
	case c.PipeChunks < 1:
		return fmt.Errorf("pipe_chunks must be positive, got %d", c.PipeChunks)
	case c.ChunkSize < 1:
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	case c.ExchangeMaxWait <= 0:
		return fmt.Errorf("exchange_max_wait must be positive")
	case c.LineSeparator != "\n" && c.LineSeparator != "\r\n":
		return fmt.Errorf("line_separator must be \\n or \\r\\n")
	}
	return nil
}

// Pipeline returns the scheduler settings.
func (c Config) Pipeline() pipeline.Config {
	return pipeline.Config{PoolSize: c.PoolSize, PipeChunks: c.PipeChunks, ChunkSize: c.ChunkSize}
}

// Backoff returns the exchange wait budget.
func (c Config) Backoff() exchange.Backoff {
	return exchange.Backoff{Initial: c.ExchangeInitialBackoff, MaxInterval: c.ExchangeMaxInterval, MaxWait: c.ExchangeMaxWait}
}

const prefix = "ISATAB_"

func applyEnv(cfg *Config) error {
	ints := map[string]*int{
		"POOL_SIZE":   &cfg.PoolSize,
		"PIPE_CHUNKS": &cfg.PipeChunks,
		"CHUNK_SIZE":  &cfg.ChunkSize,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", prefix, key, err)
			}
			*dst = n
		}
	}
	durations := map[string]*time.Duration{
		"EXCHANGE_MAX_WAIT":        &cfg.ExchangeMaxWait,
		"EXCHANGE_INITIAL_BACKOFF": &cfg.ExchangeInitialBackoff,
		"EXCHANGE_MAX_INTERVAL":    &cfg.ExchangeMaxInterval,
		"LOCK_TIMEOUT":             &cfg.LockTimeout,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", prefix, key, err)
			}
			*dst = d
		}
	}
	if v, ok := lookup("LINE_SEPARATOR"); ok {
		sep, err := parseSeparator(v)
		if err != nil {
			return err
		}
		cfg.LineSeparator = sep
	}
	strs := map[string]*string{
		"LOG_LEVEL":                 &cfg.LogLevel,
		"BLOB_FS_ROOT":              &cfg.Blob.FSRoot,
		"BLOB_S3_REGION":            &cfg.Blob.S3.Region,
		"BLOB_S3_BUCKET":            &cfg.Blob.S3.Bucket,
		"BLOB_S3_ENDPOINT":          &cfg.Blob.S3.Endpoint,
		"BLOB_S3_ACCESS_KEY_ID":     &cfg.Blob.S3.AccessKeyID,
		"BLOB_S3_SECRET_ACCESS_KEY": &cfg.Blob.S3.SecretAccessKey,
		"BLOB_S3_SESSION_TOKEN":     &cfg.Blob.S3.SessionToken,
		"LEDGER_DSN":                &cfg.Ledger.DSN,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	if v, ok := lookup("BLOB_DRIVER"); ok {
		cfg.Blob.Driver = blob.Driver(strings.ToLower(v))
	}
	if v, ok := lookup("BLOB_S3_PATH_STYLE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sBLOB_S3_PATH_STYLE: %w", prefix, err)
		}
		cfg.Blob.S3.PathStyle = b
	}
	if v, ok := lookup("LEDGER_DRIVER"); ok {
		cfg.Ledger.Driver = ledger.Driver(strings.ToLower(v))
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(prefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// parseSeparator accepts the literal separators and their names.
func parseSeparator(v string) (string, error) {
	switch strings.ToLower(v) {
	case "lf", `\n`, "\n", "unix":
		return "\n", nil
	case "crlf", `\r\n`, "\r\n", "windows":
		return "\r\n", nil
	}
	return "", fmt.Errorf("%sLINE_SEPARATOR: unsupported value %q", prefix, v)
}
