package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	API         APIConfig         `toml:"api"`
	Dedupe      DedupeConfig      `toml:"dedupe"`
	Database    DatabaseConfig    `toml:"database"`
}

// CredentialsConfig contains the Deezer session settings.
type CredentialsConfig struct {
	SID      string `toml:"sid"`
	CurlFile string `toml:"curl_file"`
}

// APIConfig controls how the gateway client talks to Deezer.
type APIConfig struct {
	BaseURL     string   `toml:"base_url"`
	Timeout     Duration `toml:"timeout"`
	MaxAttempts int      `toml:"max_attempts"`
	BackoffBase Duration `toml:"backoff_base"`
	BackoffMax  Duration `toml:"backoff_max"` // 0 disables the cap
	RateLimit   float64  `toml:"rate_limit"`  // Requests per second
	PageSize    int      `toml:"page_size"`
}

// DedupeConfig contains deduplication defaults.
type DedupeConfig struct {
	Mode             string `toml:"mode"`
	Concurrency      int    `toml:"concurrency"`       // Concurrent removal calls per playlist
	FetchConcurrency int    `toml:"fetch_concurrency"` // Playlists processed at once
}

// DatabaseConfig contains run history database settings.
type DatabaseConfig struct {
	Enabled      bool   `toml:"enabled"`
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// Duration wraps [time.Duration] so it can be written as "15s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: bad duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate checks numeric settings that would otherwise stall or hammer the API.
func (c *Config) Validate() error {
	switch {
	case c.API.MaxAttempts < 1:
		return fmt.Errorf("%w: api.max_attempts must be at least 1", ErrInvalidConfig)
	case c.API.PageSize < 1:
		return fmt.Errorf("%w: api.page_size must be at least 1", ErrInvalidConfig)
	case c.API.RateLimit <= 0:
		return fmt.Errorf("%w: api.rate_limit must be positive", ErrInvalidConfig)
	case c.API.Timeout.Duration <= 0:
		return fmt.Errorf("%w: api.timeout must be positive", ErrInvalidConfig)
	case c.API.BackoffBase.Duration < 0 || c.API.BackoffMax.Duration < 0:
		return fmt.Errorf("%w: api.backoff_base and api.backoff_max must not be negative", ErrInvalidConfig)
	case c.API.BackoffMax.Duration > 0 && c.API.BackoffMax.Duration < c.API.BackoffBase.Duration:
		return fmt.Errorf("%w: api.backoff_max must not be below api.backoff_base", ErrInvalidConfig)
	case c.Dedupe.Concurrency < 1:
		return fmt.Errorf("%w: dedupe.concurrency must be at least 1", ErrInvalidConfig)
	case c.Dedupe.FetchConcurrency < 1:
		return fmt.Errorf("%w: dedupe.fetch_concurrency must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
