package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	for key, value := range map[string]string{
		"local.api_url":      c.Local.APIURL,
		"source.api_url":     c.Source.APIURL,
		"source.staging_url": c.Source.StagingURL,
		"github.api_url":     c.GitHub.APIURL,
		"github.raw_url":     c.GitHub.RawURL,
	} {
		if err := validateHTTPURL(key, value); err != nil {
			return err
		}
	}
	if c.Local.RequestTimeout <= 0 {
		return errors.New("local.request_timeout must be positive")
	}
	if err := c.validateReadiness(); err != nil {
		return err
	}
	if strings.ContainsAny(c.Labels.Namespace, ", ") {
		return errors.New("labels.namespace must not contain commas or spaces")
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateReadiness() error {
	if c.Readiness.MaxAttempts < 1 {
		return errors.New("readiness.max_attempts must be at least 1")
	}
	if c.Readiness.IntervalSeconds < 0 {
		return errors.New("readiness.interval_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}

func validateHTTPURL(key, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http or https URL, got %q", key, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host, got %q", key, value)
	}
	return nil
}
