// Package config loads the TOML configuration shared by the CLI and the HTTP
// server.
package config

import (
	_ "embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
	"github.com/FocuswithJustin/JuniperHelps/internal/retry"
)

//go:embed sample_config.toml
var sampleConfig string

// Environment variables that override file values.
const (
	EnvToken        = "HELPS_TOKEN"
	EnvLanguage     = "HELPS_LANGUAGE"
	EnvOrganization = "HELPS_ORGANIZATION"
	EnvStorePath    = "HELPS_STORE_PATH"
	EnvAPIKey       = "HELPS_API_KEY"
)

// Content configures the content service connection.
type Content struct {
	BaseURL        string `toml:"base_url"`
	RawBaseURL     string `toml:"raw_base_url"`
	Token          string `toml:"token"`
	UserAgent      string `toml:"user_agent"`
	Transport      string `toml:"transport"` // contents | raw
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Stage          string `toml:"stage"`
	// ManifestParser selects "line" (default) or "yaml".
	ManifestParser string `toml:"manifest_parser"`
}

// Retry configures backoff for content requests.
type Retry struct {
	MaxAttempts         int `toml:"max_attempts"`
	BaseDelayMS         int `toml:"base_delay_ms"`
	MaxDelayMS          int `toml:"max_delay_ms"`
	MaxRateLimitRetries int `toml:"max_rate_limit_retries"`
}

// Cache configures in-memory lifetimes and the persistent store.
type Cache struct {
	PackageTTLMinutes  int `toml:"package_ttl_minutes"`
	OnDemandTTLMinutes int `toml:"on_demand_ttl_minutes"`
	// StorePath is the SQLite snapshot database. Empty disables persistence.
	StorePath string `toml:"store_path"`
}

// Logging configures log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // json | text
}

// Server configures the HTTP surface.
type Server struct {
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
	// RateLimit is requests per minute per client; 0 disables limiting.
	RateLimit int `toml:"rate_limit"`
	// APIKey enables X-API-Key authentication when set.
	APIKey string `toml:"api_key"`
}

// Config is the complete configuration.
type Config struct {
	Language     string  `toml:"language"`
	Organization string  `toml:"organization"`
	Content      Content `toml:"content"`
	Retry        Retry   `toml:"retry"`
	Cache        Cache   `toml:"cache"`
	Logging      Logging `toml:"logging"`
	Server       Server  `toml:"server"`
}

// SampleConfig returns the commented sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/helps/config.toml")
}

// Load reads path (or the default location when path is empty), applies
// environment overrides and validates the result. A missing file yields
// the defaults. It also reports the resolved path and whether it existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", false, errors.NewIO("open", resolved, err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, &errors.ParseError{Format: "toml", Path: resolved, Message: "parse config", Err: err}
		}
	}

	cfg.applyEnv(os.LookupEnv)
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

// Parse decodes TOML text over the defaults without touching the
// environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, &errors.ParseError{Format: "toml", Message: "parse config", Err: err}
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvToken); ok {
		c.Content.Token = v
	}
	if v, ok := lookup(EnvLanguage); ok && strings.TrimSpace(v) != "" {
		c.Language = v
	}
	if v, ok := lookup(EnvOrganization); ok && strings.TrimSpace(v) != "" {
		c.Organization = v
	}
	if v, ok := lookup(EnvStorePath); ok {
		c.Cache.StorePath = v
	}
	if v, ok := lookup(EnvAPIKey); ok {
		c.Server.APIKey = v
	}
}

func (c *Config) normalize() error {
	c.Language = strings.TrimSpace(c.Language)
	c.Organization = strings.TrimSpace(c.Organization)
	c.Content.Transport = strings.ToLower(strings.TrimSpace(c.Content.Transport))
	c.Content.ManifestParser = strings.ToLower(strings.TrimSpace(c.Content.ManifestParser))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	if strings.TrimSpace(c.Cache.StorePath) != "" {
		p, err := expandPath(c.Cache.StorePath)
		if err != nil {
			return fmt.Errorf("cache.store_path: %w", err)
		}
		c.Cache.StorePath = p
	}
	return nil
}

// RetryConfig converts the retry section.
func (c *Config) RetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:         c.Retry.MaxAttempts,
		BaseDelay:           time.Duration(c.Retry.BaseDelayMS) * time.Millisecond,
		MaxDelay:            time.Duration(c.Retry.MaxDelayMS) * time.Millisecond,
		MaxRateLimitRetries: c.Retry.MaxRateLimitRetries,
	}
}

// PackageTTL is the in-memory lifetime of book packages.
func (c *Config) PackageTTL() time.Duration {
	return time.Duration(c.Cache.PackageTTLMinutes) * time.Minute
}

// OnDemandTTL is the in-memory lifetime of on-demand resources.
func (c *Config) OnDemandTTL() time.Duration {
	return time.Duration(c.Cache.OnDemandTTLMinutes) * time.Minute
}

// Timeout is the per-request content service timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Content.TimeoutSeconds) * time.Second
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return "", false, err
		}
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, errors.NewIO("stat", expanded, err)
	}
	if info.IsDir() {
		return "", false, errors.NewValidation("config", expanded+" is a directory")
	}
	return expanded, true, nil
}

func expandPath(p string) (string, error) {
	if p == "" {
		return p, nil
	}
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if p == "~" {
			p = home
		} else if len(p) > 1 && (p[1] == '/' || p[1] == '\\') {
			p = filepath.Join(home, p[2:])
		}
	}
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", p, err)
	}
	return abs, nil
}
