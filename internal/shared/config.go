package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Auth    AuthConfig    `toml:"auth"`
	Storage StorageConfig `toml:"storage"`
	HTTP    HTTPConfig    `toml:"http"`
	Server  ServerConfig  `toml:"server"`
	Log     LogConfig     `toml:"log"`
}

// SpotifyConfig contains Spotify API credentials and endpoints.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	APIBaseURL   string `toml:"api_base_url"`
	AuthURL      string `toml:"auth_url"`
	TokenURL     string `toml:"token_url"`
}

// AuthConfig controls session handling.
type AuthConfig struct {
	TokenKey            string `toml:"token_key"`
	RestoreSession      bool   `toml:"restore_session"`
	LoginTimeoutSeconds int    `toml:"login_timeout_seconds"`
	HistoryLimit        int    `toml:"history_limit"`
}

// StorageConfig locates the credential database and its sealing key.
type StorageConfig struct {
	Path         string `toml:"path"`
	KeyPath      string `toml:"key_path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// HTTPConfig tunes the request pipeline.
type HTTPConfig struct {
	TimeoutSeconds      int     `toml:"timeout_seconds"`
	MaxRetries          int     `toml:"max_retries"`
	RetryInitialDelayMS int     `toml:"retry_initial_delay_ms"`
	RetryMaxDelayMS     int     `toml:"retry_max_delay_ms"`
	RequestsPerSecond   float64 `toml:"requests_per_second"`
}

// ServerConfig is the loopback listener that receives the OAuth redirect.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LogConfig sets the logger level.
type LogConfig struct {
	Level string `toml:"level"`
}

// Timeout returns the per-request HTTP timeout.
func (h HTTPConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// InitialDelay returns the first retry backoff.
func (h HTTPConfig) InitialDelay() time.Duration {
	return time.Duration(h.RetryInitialDelayMS) * time.Millisecond
}

// MaxDelay returns the backoff ceiling.
func (h HTTPConfig) MaxDelay() time.Duration {
	return time.Duration(h.RetryMaxDelayMS) * time.Millisecond
}

// LoginTimeout returns how long `auth login` waits for the redirect.
func (a AuthConfig) LoginTimeout() time.Duration {
	if a.LoginTimeoutSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(a.LoginTimeoutSeconds) * time.Second
}

// Validate checks the values the core cannot run without.
//
// A missing client_id is deliberately not reported here: it surfaces as a failed authorization instead.
func (c *Config) Validate() error {
	if c.Spotify.RedirectURI == "" {
		return fmt.Errorf("%w: spotify.redirect_uri is required", ErrInvalidConfig)
	}
	if _, err := url.Parse(c.Spotify.RedirectURI); err != nil {
		return fmt.Errorf("%w: spotify.redirect_uri: %v", ErrInvalidConfig, err)
	}
	if c.Spotify.APIBaseURL == "" {
		return fmt.Errorf("%w: spotify.api_base_url is required", ErrInvalidConfig)
	}
	if c.Auth.TokenKey == "" {
		return fmt.Errorf("%w: auth.token_key is required", ErrInvalidConfig)
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("%w: http.max_retries must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ApplyEnv overrides credentials from NP_CLIENT_ID, NP_CLIENT_SECRET and NP_REDIRECT_URI when set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("NP_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("NP_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("NP_REDIRECT_URI"); v != "" {
		c.Spotify.RedirectURI = v
	}
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values absent from the file keep the defaults from the embedded example config. A missing file is
// [ErrMissingConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
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

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path as TOML.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
