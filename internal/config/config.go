// Package config loads revify's settings from a YAML file, an optional
// .env file and REVIFY_* environment variables, in that order of precedence
// from lowest to highest.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by Load.
const (
	EnvAPIURL    = "REVIFY_API_URL"
	EnvEventsURL = "REVIFY_EVENTS_URL"
	EnvWebURL    = "REVIFY_WEB_URL"
	EnvDataDir   = "REVIFY_DATA_DIR"
	EnvLogLevel  = "REVIFY_LOG_LEVEL"
	EnvTimeout   = "REVIFY_TIMEOUT"
	EnvEnvFile   = "REVIFY_ENV_FILE"
)

// Config holds client settings.
type Config struct {
	APIURL    string        `yaml:"api_url"`
	EventsURL string        `yaml:"events_url"` // defaults to APIURL
	WebURL    string        `yaml:"web_url"`    // defaults to the origin of APIURL
	DataDir   string        `yaml:"data_dir"`
	LogLevel  string        `yaml:"log_level"`
	LogFile   string        `yaml:"log_file"` // defaults to <data_dir>/revify.log
	Timeout   time.Duration `yaml:"timeout"`
	Serve     ServeConfig   `yaml:"serve"`
}

// ServeConfig configures the local development backend.
type ServeConfig struct {
	Addr        string `yaml:"addr"`
	MaxFileSize int64  `yaml:"max_file_size"` // bytes served by the file endpoint
	MaxUpload   int64  `yaml:"max_upload"`    // bytes accepted per archive
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		APIURL:   "http://localhost:3000",
		LogLevel: "info",
		Timeout:  30 * time.Second,
		Serve: ServeConfig{
			Addr:        "127.0.0.1:3000",
			MaxFileSize: 1 << 20,
			MaxUpload:   50 << 20,
		},
	}
}

// DefaultDataDir is where credentials and logs live unless overridden.
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "revify")
	}
	return ".revify"
}

// DefaultPath is the config file location under dataDir.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "config.yaml")
}

// Load reads configPath if it exists, then layers the .env file and the
// environment on top. A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	loadEnvFile()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// loadEnvFile populates the environment from a .env file when one exists.
// Variables already set in the environment win.
func loadEnvFile() {
	envFile := os.Getenv(EnvEnvFile)
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)
}

func (c *Config) applyEnv() error {
	c.APIURL = getEnv(EnvAPIURL, c.APIURL)
	c.EventsURL = getEnv(EnvEventsURL, c.EventsURL)
	c.WebURL = getEnv(EnvWebURL, c.WebURL)
	c.DataDir = getEnv(EnvDataDir, c.DataDir)
	c.LogLevel = getEnv(EnvLogLevel, c.LogLevel)
	if v, ok := os.LookupEnv(EnvTimeout); ok && v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	return nil
}

// parseTimeout accepts a Go duration or a plain number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// applyDefaults fills values derived from other settings.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.APIURL == "" {
		c.APIURL = defaults.APIURL
	}
	if c.EventsURL == "" {
		c.EventsURL = c.APIURL
	}
	if c.WebURL == "" {
		c.WebURL = origin(c.APIURL)
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.DataDir, "revify.log")
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = defaults.Serve.Addr
	}
	if c.Serve.MaxFileSize == 0 {
		c.Serve.MaxFileSize = defaults.Serve.MaxFileSize
	}
	if c.Serve.MaxUpload == 0 {
		c.Serve.MaxUpload = defaults.Serve.MaxUpload
	}
}

func origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	for name, v := range map[string]string{"api_url": c.APIURL, "events_url": c.EventsURL, "web_url": c.WebURL} {
		u, err := url.Parse(v)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, v)
		}
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if c.Serve.MaxFileSize < 0 || c.Serve.MaxUpload < 0 {
		return fmt.Errorf("serve size limits cannot be negative")
	}
	return nil
}

// CredentialsFile is where session cookies are stored.
func (c *Config) CredentialsFile() string {
	return filepath.Join(c.DataDir, "credentials.yaml")
}
