package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeRAWcooked(); err != nil {
		return err
	}
	if err := c.normalizeMediaConch(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.RootDir) == "" {
		c.Paths.RootDir = defaultRootDir
	}
	if c.Paths.RootDir, err = expandPath(c.Paths.RootDir); err != nil {
		return fmt.Errorf("paths.root_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	stageDirs := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"paths.gap_check_dir", &c.Paths.GapCheckDir, defaultGapCheckDir},
		{"paths.gap_check_fail_dir", &c.Paths.GapCheckFailDir, defaultGapCheckFailDir},
		{"paths.policy_check_dir", &c.Paths.PolicyCheckDir, defaultPolicyCheckDir},
		{"paths.policy_check_fail_dir", &c.Paths.PolicyCheckFailDir, defaultPolicyCheckFailDir},
		{"paths.to_cook_dir", &c.Paths.ToCookDir, defaultToCookDir},
		{"paths.to_cook_v2_dir", &c.Paths.ToCookV2Dir, defaultToCookV2Dir},
		{"paths.cooked_dir", &c.Paths.CookedDir, defaultCookedDir},
		{"paths.mkv_policy_fail_dir", &c.Paths.MKVPolicyFailDir, defaultMKVPolicyFailDir},
		{"paths.post_cook_fail_dir", &c.Paths.PostCookFailDir, defaultPostCookFailDir},
		{"paths.completed_dir", &c.Paths.CompletedDir, defaultCompletedDir},
	}
	for _, dir := range stageDirs {
		if *dir.value, err = c.resolveUnderRoot(*dir.value, dir.fallback); err != nil {
			return fmt.Errorf("%s: %w", dir.key, err)
		}
	}
	return nil
}

// resolveUnderRoot expands absolute and tilde paths as-is and joins
// anything else onto the root directory.
func (c *Config) resolveUnderRoot(value, fallback string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	if strings.HasPrefix(value, "~") || filepath.IsAbs(value) {
		return expandPath(value)
	}
	return expandPath(filepath.Join(c.Paths.RootDir, value))
}

func (c *Config) normalizeRAWcooked() error {
	c.RAWcooked.Binary = strings.TrimSpace(c.RAWcooked.Binary)
	if c.RAWcooked.Binary == "" {
		c.RAWcooked.Binary = defaultRAWcookedBinary
	}
	c.RAWcooked.License = strings.TrimSpace(c.RAWcooked.License)
	if c.RAWcooked.License == "" {
		if value, ok := os.LookupEnv(licenseEnvVar); ok {
			c.RAWcooked.License = strings.TrimSpace(value)
		}
	}
	if c.RAWcooked.Samples <= 0 {
		c.RAWcooked.Samples = defaultRAWcookedSamples
	}
	if c.RAWcooked.ProbeTimeout <= 0 {
		c.RAWcooked.ProbeTimeout = defaultProbeTimeout
	}
	if c.RAWcooked.CookTimeout <= 0 {
		c.RAWcooked.CookTimeout = defaultCookTimeout
	}
	return nil
}

func (c *Config) normalizeMediaConch() error {
	var err error
	c.MediaConch.Binary = strings.TrimSpace(c.MediaConch.Binary)
	if c.MediaConch.Binary == "" {
		c.MediaConch.Binary = defaultMediaConchBinary
	}
	if c.MediaConch.DPXPolicy, err = expandPath(strings.TrimSpace(c.MediaConch.DPXPolicy)); err != nil {
		return fmt.Errorf("mediaconch.dpx_policy: %w", err)
	}
	if c.MediaConch.MKVPolicy, err = expandPath(strings.TrimSpace(c.MediaConch.MKVPolicy)); err != nil {
		return fmt.Errorf("mediaconch.mkv_policy: %w", err)
	}
	if c.MediaConch.Timeout <= 0 {
		c.MediaConch.Timeout = defaultMediaConchTimeout
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.WatchDebounce <= 0 {
		c.Workflow.WatchDebounce = defaultWatchDebounce
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
