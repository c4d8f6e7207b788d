package shared

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Node      NodeConfig      `toml:"node"`
	Publish   PublishConfig   `toml:"publish"`
	Downloads DownloadsConfig `toml:"downloads"`
	Database  DatabaseConfig  `toml:"database"`
	Server    ServerConfig    `toml:"server"`
	Logging   LoggingConfig   `toml:"logging"`
}

// NodeConfig contains the content network node connection settings.
type NodeConfig struct {
	BaseURL           string  `toml:"base_url"`
	APIKey            string  `toml:"api_key"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// Timeout returns the per-request timeout.
func (n NodeConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// PublishConfig contains publisher identity and resource naming settings.
type PublishConfig struct {
	Name                  string  `toml:"name"`
	AudioPrefix           string  `toml:"audio_prefix"`
	PodcastPrefix         string  `toml:"podcast_prefix"`
	AudiobookPrefix       string  `toml:"audiobook_prefix"`
	PlaylistPrefix        string  `toml:"playlist_prefix"`
	ThumbnailMaxDimension int     `toml:"thumbnail_max_dimension"`
	ThumbnailQuality      float64 `toml:"thumbnail_quality"`
}

// DownloadsConfig contains status polling settings, in seconds.
type DownloadsConfig struct {
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	StallTimeoutSeconds int `toml:"stall_timeout_seconds"`
	RefetchDelaySeconds int `toml:"refetch_delay_seconds"`
}

// PollInterval returns the status poll tick interval.
func (d DownloadsConfig) PollInterval() time.Duration {
	return time.Duration(d.PollIntervalSeconds) * time.Second
}

// StallTimeout returns the initial stall countdown.
func (d DownloadsConfig) StallTimeout() time.Duration {
	return time.Duration(d.StallTimeoutSeconds) * time.Second
}

// RefetchDelay returns the delay before a stalled resource is nudged.
func (d DownloadsConfig) RefetchDelay() time.Duration {
	return time.Duration(d.RefetchDelaySeconds) * time.Second
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains local status API settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep their defaults.
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

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values that would otherwise fail deep inside the pollers or the node client.
func (c *Config) Validate() error {
	if c.Node.BaseURL == "" {
		return fmt.Errorf("%w: node.base_url is required", ErrInvalidConfig)
	}
	if _, err := url.ParseRequestURI(c.Node.BaseURL); err != nil {
		return fmt.Errorf("%w: node.base_url: %v", ErrInvalidConfig, err)
	}
	if c.Downloads.PollIntervalSeconds <= 0 {
		return fmt.Errorf("%w: downloads.poll_interval_seconds must be positive", ErrInvalidConfig)
	}
	if c.Downloads.StallTimeoutSeconds <= 0 {
		return fmt.Errorf("%w: downloads.stall_timeout_seconds must be positive", ErrInvalidConfig)
	}
	if c.Downloads.RefetchDelaySeconds < 0 {
		return fmt.Errorf("%w: downloads.refetch_delay_seconds must not be negative", ErrInvalidConfig)
	}
	if q := c.Publish.ThumbnailQuality; q <= 0 || q > 1 {
		return fmt.Errorf("%w: publish.thumbnail_quality must be in (0, 1]", ErrInvalidConfig)
	}
	return nil
}
