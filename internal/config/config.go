// Package config provides configuration management for sitesearch.
// It defines configuration structures and default values for indexing,
// searching and health checking.
package config

import (
	"os"
	"strings"
	"time"
)

// BasicAuth contains HTTP Basic Authentication credentials
type BasicAuth struct {
	Username    string `mapstructure:"username" yaml:"username"`         // Username for basic auth
	Password    string `mapstructure:"password" yaml:"password"`         // Password for basic auth
	UsernameEnv string `mapstructure:"username_env" yaml:"username_env"` // Environment variable for username
	PasswordEnv string `mapstructure:"password_env" yaml:"password_env"` // Environment variable for password
}

// FetchConfig controls page downloads for `sitesearch index <url>`
type FetchConfig struct {
	Timeout time.Duration     `mapstructure:"timeout" yaml:"timeout"` // Download timeout
	Headers map[string]string `mapstructure:"headers" yaml:"headers"` // Extra request headers
	Basic   *BasicAuth        `mapstructure:"basic" yaml:"basic"`     // Basic authentication settings
}

// CheckConfig controls the URL health-check job
type CheckConfig struct {
	Concurrency   int           `mapstructure:"concurrency" yaml:"concurrency"`       // Probes in flight
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`               // Connect and total probe timeout
	BatchLimit    int           `mapstructure:"batch_limit" yaml:"batch_limit"`       // Max entries per run
	BatchFraction float64       `mapstructure:"batch_fraction" yaml:"batch_fraction"` // Share of all entries per run, 0 = off
	Interval      time.Duration `mapstructure:"interval" yaml:"interval"`             // Pause between runs in loop mode
	HostDelay     time.Duration `mapstructure:"host_delay" yaml:"host_delay"`         // Per-host pacing, 0 = off; waits are outside Timeout
}

// SearchConfig controls indexing and querying
type SearchConfig struct {
	ResultLimit        int      `mapstructure:"result_limit" yaml:"result_limit"`                 // Default hits per query
	AllowedQueryParams []string `mapstructure:"allowed_query_params" yaml:"allowed_query_params"` // Query params kept in entry URLs
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// LogConfig controls logging output
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`             // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"`           // json or text
	File       string `mapstructure:"file" yaml:"file"`               // Optional log file
	MaxSizeMB  int64  `mapstructure:"max_size_mb" yaml:"max_size_mb"` // Rotate after this size
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"` // Rotated files kept
	Console    bool   `mapstructure:"console" yaml:"console"`         // Also log to stderr
}

// Config holds the sitesearch configuration
type Config struct {
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"` // Path to SQLite database file
	UserAgent    string `mapstructure:"user_agent" yaml:"user_agent"`       // HTTP User-Agent header

	Fetch  FetchConfig  `mapstructure:"fetch" yaml:"fetch"`
	Check  CheckConfig  `mapstructure:"check" yaml:"check"`
	Search SearchConfig `mapstructure:"search" yaml:"search"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		DatabasePath: "./sitesearch.db",
		UserAgent:    "SiteSearchBot/1.0",
		Fetch: FetchConfig{
			Timeout: 30 * time.Second,
		},
		Check: CheckConfig{
			Concurrency: 15,
			Timeout:     2 * time.Second,
			BatchLimit:  200,
			Interval:    time.Hour,
		},
		Search: SearchConfig{
			ResultLimit: 10,
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 5,
			Console:    true,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return ErrEmptyDatabasePath
	}

	if c.Fetch.Timeout <= 0 {
		return ErrInvalidFetchTimeout
	}

	if c.Check.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.Check.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Check.BatchLimit <= 0 {
		return ErrInvalidBatchLimit
	}

	if c.Check.BatchFraction < 0 || c.Check.BatchFraction > 1 {
		return ErrInvalidBatchFraction
	}

	if c.Check.HostDelay < 0 {
		c.Check.HostDelay = 0
	}

	if c.Search.ResultLimit <= 0 {
		return ErrInvalidResultLimit
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return ErrInvalidLogFormat
	}

	return nil
}

// GetBasicAuthCredentials returns the basic auth username and password,
// resolving environment variables if specified
func (c *Config) GetBasicAuthCredentials() (username, password string) {
	if c.Fetch.Basic == nil {
		return "", ""
	}

	basic := c.Fetch.Basic

	// Get username
	if basic.UsernameEnv != "" {
		username = os.Getenv(basic.UsernameEnv)
	} else {
		username = basic.Username
	}

	// Get password
	if basic.PasswordEnv != "" {
		password = os.Getenv(basic.PasswordEnv)
	} else {
		password = basic.Password
	}

	return username, password
}
