// Package common provides shared utilities for surveylens
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for surveylens
type Config struct {
	Environment string        `toml:"environment"`
	API         APIConfig     `toml:"api"`
	Auth        AuthConfig    `toml:"auth"`
	Poll        PollConfig    `toml:"poll"`
	Export      ExportConfig  `toml:"export"`
	Server      ServerConfig  `toml:"server"`
	Logging     LoggingConfig `toml:"logging"`
}

// APIConfig holds the analysis backend connection settings
type APIConfig struct {
	BaseURL   string `toml:"base_url"`
	RateLimit int    `toml:"rate_limit"` // requests per second
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *APIConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// AuthConfig holds where credentials are persisted between runs.
type AuthConfig struct {
	CredentialsPath string `toml:"credentials_path"`
}

// PollConfig holds the analysis status polling cadence.
type PollConfig struct {
	Interval   string `toml:"interval"`
	StartDelay string `toml:"start_delay"` // wait after starting analysis before the first reload
}

// GetInterval parses and returns the poll interval
func (c *PollConfig) GetInterval() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return 3 * time.Second
	}
	return d
}

// GetStartDelay parses and returns the post-start delay
func (c *PollConfig) GetStartDelay() time.Duration {
	d, err := time.ParseDuration(c.StartDelay)
	if err != nil || d < 0 {
		return 2 * time.Second
	}
	return d
}

// ExportConfig holds report export settings.
type ExportConfig struct {
	Dir           string   `toml:"dir"`
	Sink          string   `toml:"sink"`           // "file" or "s3"
	LegacyParsing bool     `toml:"legacy_parsing"` // recover JSON-encoded strings in old analyses
	TextWidth     int      `toml:"text_width"`
	LinesPerPage  int      `toml:"lines_per_page"`
	S3            S3Config `toml:"s3"`
}

// S3Config holds S3 (or S3-compatible) publishing configuration
type S3Config struct {
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`   // Optional key prefix within bucket
	Region    string `toml:"region"`   // AWS region (e.g., "us-east-1")
	Endpoint  string `toml:"endpoint"` // Custom endpoint for S3-compatible stores (MinIO, R2)
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
}

// ServerConfig holds the local dashboard server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		API: APIConfig{
			BaseURL:   "http://localhost:8000",
			RateLimit: 10,
			Timeout:   "60s",
		},
		Auth: AuthConfig{
			CredentialsPath: defaultCredentialsPath(),
		},
		Poll: PollConfig{
			Interval:   "3s",
			StartDelay: "2s",
		},
		Export: ExportConfig{
			Dir:          "exports",
			Sink:         "file",
			TextWidth:    80,
			LinesPerPage: 60,
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 4280,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// defaultCredentialsPath places the credential file under the user config dir.
func defaultCredentialsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".surveylens/credentials.json"
	}
	return filepath.Join(dir, "surveylens", "credentials.json")
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SURVEYLENS_ENV"); env != "" {
		config.Environment = env
	}

	if url := os.Getenv("SURVEYLENS_API_URL"); url != "" {
		config.API.BaseURL = url
	}

	if rl := os.Getenv("SURVEYLENS_API_RATE_LIMIT"); rl != "" {
		if n, err := strconv.Atoi(rl); err == nil {
			config.API.RateLimit = n
		}
	}

	if path := os.Getenv("SURVEYLENS_CREDENTIALS"); path != "" {
		config.Auth.CredentialsPath = path
	}

	if v := os.Getenv("SURVEYLENS_POLL_INTERVAL"); v != "" {
		config.Poll.Interval = v
	}

	if level := os.Getenv("SURVEYLENS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if dir := os.Getenv("SURVEYLENS_EXPORT_DIR"); dir != "" {
		config.Export.Dir = dir
	}

	if v := os.Getenv("SURVEYLENS_LEGACY_PARSING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Export.LegacyParsing = b
		}
	}

	// S3 overrides
	if v := os.Getenv("SURVEYLENS_S3_BUCKET"); v != "" {
		config.Export.S3.Bucket = v
	}
	if v := os.Getenv("SURVEYLENS_S3_ENDPOINT"); v != "" {
		config.Export.S3.Endpoint = v
	}
	if v := os.Getenv("SURVEYLENS_S3_ACCESS_KEY"); v != "" {
		config.Export.S3.AccessKey = v
	}
	if v := os.Getenv("SURVEYLENS_S3_SECRET_KEY"); v != "" {
		config.Export.S3.SecretKey = v
	}

	if port := os.Getenv("SURVEYLENS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
}

// Validate reports configuration that cannot work at all.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url is required")
	}
	switch c.Export.Sink {
	case "", "file":
	case "s3":
		if c.Export.S3.Bucket == "" {
			return fmt.Errorf("export.s3.bucket is required when export.sink is \"s3\"")
		}
	default:
		return fmt.Errorf("unknown export.sink %q", c.Export.Sink)
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
