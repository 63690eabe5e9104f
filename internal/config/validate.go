package config

import (
	"net/url"
	"strconv"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
)

// Validate ensures the configuration is usable. Failures are
// *ValidationError values naming the offending key.
func (c *Config) Validate() error {
	if c.Language == "" {
		return errors.NewValidation("language", "must be set")
	}
	if c.Organization == "" {
		return errors.NewValidation("organization", "must be set")
	}
	if err := c.validateContent(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.NewValidation("server.port", "out of range: "+strconv.Itoa(c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		return errors.NewValidation("server.rate_limit", "must not be negative")
	}
	if c.Server.APIKey != "" && len(c.Server.APIKey) < 16 {
		return errors.NewValidation("server.api_key", "must be at least 16 characters")
	}
	return nil
}

func (c *Config) validateContent() error {
	for key, raw := range map[string]string{
		"content.base_url":     c.Content.BaseURL,
		"content.raw_base_url": c.Content.RawBaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.NewValidation(key, "must be an http(s) URL: "+raw)
		}
	}
	switch c.Content.Transport {
	case "contents", "raw":
	default:
		return errors.NewValidation("content.transport", "must be contents or raw, got "+strconv.Quote(c.Content.Transport))
	}
	switch c.Content.ManifestParser {
	case "line", "yaml":
	default:
		return errors.NewValidation("content.manifest_parser", "must be line or yaml, got "+strconv.Quote(c.Content.ManifestParser))
	}
	if c.Content.TimeoutSeconds <= 0 {
		return errors.NewValidation("content.timeout_seconds", "must be positive")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 1 {
		return errors.NewValidation("retry.max_attempts", "must be at least 1")
	}
	if c.Retry.BaseDelayMS <= 0 {
		return errors.NewValidation("retry.base_delay_ms", "must be positive")
	}
	if c.Retry.MaxDelayMS < c.Retry.BaseDelayMS {
		return errors.NewValidation("retry.max_delay_ms", "must not be below base_delay_ms")
	}
	if c.Retry.MaxRateLimitRetries < 1 {
		return errors.NewValidation("retry.max_rate_limit_retries", "must be at least 1")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.PackageTTLMinutes <= 0 {
		return errors.NewValidation("cache.package_ttl_minutes", "must be positive")
	}
	if c.Cache.OnDemandTTLMinutes <= 0 {
		return errors.NewValidation("cache.on_demand_ttl_minutes", "must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.NewValidation("logging.level", "unknown level "+strconv.Quote(c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return errors.NewValidation("logging.format", "must be json or text, got "+strconv.Quote(c.Logging.Format))
	}
	return nil
}
