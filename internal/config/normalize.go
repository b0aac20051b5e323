package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLocal()
	c.normalizeSource()
	c.normalizeGitHub()
	c.normalizeNames()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLocal() {
	c.Local.APIURL = withTrailingSlash(c.Local.APIURL, defaultLocalAPIURL)
	if value, ok := os.LookupEnv("STABLEDRACOR_USERNAME"); ok && strings.TrimSpace(value) != "" {
		c.Local.Username = value
	}
	if value, ok := os.LookupEnv("STABLEDRACOR_PASSWORD"); ok {
		c.Local.Password = value
	}
	c.Local.Username = strings.TrimSpace(c.Local.Username)
	if c.Local.Username == "" {
		c.Local.Username = defaultLocalUsername
	}
	if c.Local.RequestTimeout <= 0 {
		c.Local.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeSource() {
	c.Source.APIURL = withTrailingSlash(c.Source.APIURL, defaultSourceAPIURL)
	c.Source.StagingURL = withTrailingSlash(c.Source.StagingURL, defaultStagingAPIURL)
}

func (c *Config) normalizeGitHub() {
	c.GitHub.APIURL = withTrailingSlash(c.GitHub.APIURL, defaultGitHubAPIURL)
	c.GitHub.RawURL = withTrailingSlash(c.GitHub.RawURL, defaultGitHubRawURL)
	if c.GitHub.Token == "" {
		if value, ok := os.LookupEnv("GITHUB_TOKEN"); ok {
			c.GitHub.Token = value
		}
	}
	c.GitHub.Token = strings.TrimSpace(c.GitHub.Token)
	c.GitHub.Owner = strings.TrimSpace(c.GitHub.Owner)
	if c.GitHub.Owner == "" {
		c.GitHub.Owner = defaultGitHubOwner
	}
	c.GitHub.DataFolder = strings.Trim(strings.TrimSpace(c.GitHub.DataFolder), "/")
	if c.GitHub.DataFolder == "" {
		c.GitHub.DataFolder = defaultGitHubDataFolder
	}
}

func (c *Config) normalizeNames() {
	c.System.Name = strings.TrimSpace(c.System.Name)
	c.System.Description = strings.TrimSpace(c.System.Description)
	c.Labels.Namespace = strings.Trim(strings.TrimSpace(c.Labels.Namespace), ".")
	if c.Labels.Namespace == "" {
		c.Labels.Namespace = defaultLabelNamespace
	}
	c.Image.Namespace = strings.TrimSpace(c.Image.Namespace)
	if c.Image.Namespace == "" {
		c.Image.Namespace = defaultImageNamespace
	}
	c.Image.Prefix = strings.TrimSpace(c.Image.Prefix)
	if c.Image.Prefix == "" {
		c.Image.Prefix = defaultImagePrefix
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func withTrailingSlash(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	if !strings.HasSuffix(value, "/") {
		value += "/"
	}
	return value
}
