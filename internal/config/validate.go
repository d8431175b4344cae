package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRAWcooked(); err != nil {
		return err
	}
	if err := c.validateMediaConch(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.RootDir) == "" {
		return errors.New("paths.root_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if _, err := c.Layout(); err != nil {
		return fmt.Errorf("paths: %w", err)
	}
	return nil
}

func (c *Config) validateRAWcooked() error {
	if c.RAWcooked.License == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/dpxflow/config.toml"
		}
		return fmt.Errorf("rawcooked.license is required. Set %s env var or edit %s (create with 'dpxflow config init')", licenseEnvVar, defaultPath)
	}
	if c.RAWcooked.Samples <= 0 {
		return errors.New("rawcooked.samples must be positive")
	}
	return nil
}

func (c *Config) validateMediaConch() error {
	if c.Workflow.CheckPolicy && c.MediaConch.DPXPolicy == "" {
		return errors.New("mediaconch.dpx_policy must be set when workflow.check_policy is true")
	}
	if c.MediaConch.MKVPolicy == "" {
		return errors.New("mediaconch.mkv_policy must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.BatchSize <= 0 {
		return errors.New("workflow.batch_size must be positive")
	}
	if c.Workflow.Workers <= 0 {
		return errors.New("workflow.workers must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}
