package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"stabledracor/internal/config"
	"stabledracor/internal/logging"
	"stabledracor/internal/system"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	// Both are resolved at most once per process.
	ensureConfig func() (*config.Config, error)
	ensureLogger func() (*slog.Logger, error)
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	c := &commandContext{configFlag: configFlag, jsonFlag: jsonFlag}
	c.ensureConfig = sync.OnceValues(c.loadConfig)
	c.ensureLogger = sync.OnceValues(func() (*slog.Logger, error) {
		cfg, err := c.ensureConfig()
		if err != nil {
			return nil, err
		}
		return logging.NewFromConfig(cfg)
	})
	return c
}

func (c *commandContext) loadConfig() (*config.Config, error) {
	path := ""
	if c.configFlag != nil {
		path = strings.TrimSpace(*c.configFlag)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withSystem opens the system for the duration of fn.
func (c *commandContext) withSystem(fn func(*system.System) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	sys, err := system.Open(cfg, system.WithLogger(logger))
	if err != nil {
		return err
	}
	defer sys.Close()
	return fn(sys)
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
