package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/pelletier/go-toml/v2"

	"dpxflow/internal/stage"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths holds the tree root, the log directory, and one directory per stage.
// Relative stage directories are resolved against RootDir.
type Paths struct {
	RootDir            string `toml:"root_dir"`
	LogDir             string `toml:"log_dir"`
	GapCheckDir        string `toml:"gap_check_dir"`
	GapCheckFailDir    string `toml:"gap_check_fail_dir"`
	PolicyCheckDir     string `toml:"policy_check_dir"`
	PolicyCheckFailDir string `toml:"policy_check_fail_dir"`
	ToCookDir          string `toml:"to_cook_dir"`
	ToCookV2Dir        string `toml:"to_cook_v2_dir"`
	CookedDir          string `toml:"cooked_dir"`
	MKVPolicyFailDir   string `toml:"mkv_policy_fail_dir"`
	PostCookFailDir    string `toml:"post_cook_fail_dir"`
	CompletedDir       string `toml:"completed_dir"`
}

// RAWcooked configures the cook tool for both the reversibility probe and
// the encode.
type RAWcooked struct {
	Binary       string `toml:"binary"`
	License      string `toml:"license"`
	Samples      int    `toml:"samples"`
	Framemd5     bool   `toml:"framemd5"`
	ProbeTimeout int    `toml:"probe_timeout"`
	CookTimeout  int    `toml:"cook_timeout"`
}

// MediaConch configures the policy validator.
type MediaConch struct {
	Binary    string `toml:"binary"`
	DPXPolicy string `toml:"dpx_policy"`
	MKVPolicy string `toml:"mkv_policy"`
	Timeout   int    `toml:"timeout"`
}

// Workflow contains gate toggles and dispatcher limits.
type Workflow struct {
	CheckGaps     bool `toml:"check_gaps"`
	CheckPolicy   bool `toml:"check_policy"`
	BatchSize     int  `toml:"batch_size"`
	Workers       int  `toml:"workers"`
	WatchDebounce int  `toml:"watch_debounce"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for dpxflow.
//
// Configuration sections by subsystem:
//   - Paths: tree root, log directory, per-stage directories
//   - RAWcooked: probe and encode invocation
//   - MediaConch: DPX and MKV policy validation
//   - Workflow: gate toggles, batch size, worker count
//   - Logging: log format, level, and retention
type Config struct {
	Paths      Paths      `toml:"paths"`
	RAWcooked  RAWcooked  `toml:"rawcooked"`
	MediaConch MediaConch `toml:"mediaconch"`
	Workflow   Workflow   `toml:"workflow"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dpxflow/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dpxflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// StageDirs maps each pipeline stage to its configured directory.
func (c *Config) StageDirs() map[stage.Stage]string {
	return map[stage.Stage]string{
		stage.AssessmentIntake:     c.Paths.GapCheckDir,
		stage.GapCheckFailed:       c.Paths.GapCheckFailDir,
		stage.PolicyCheckPending:   c.Paths.PolicyCheckDir,
		stage.PolicyCheckFailed:    c.Paths.PolicyCheckFailDir,
		stage.ReadyToCook:          c.Paths.ToCookDir,
		stage.ReadyToCookV2:        c.Paths.ToCookV2Dir,
		stage.MKVCooked:            c.Paths.CookedDir,
		stage.MKVPolicyFailed:      c.Paths.MKVPolicyFailDir,
		stage.PostCookReviewFailed: c.Paths.PostCookFailDir,
		stage.Completed:            c.Paths.CompletedDir,
	}
}

// Layout builds the validated stage layout.
func (c *Config) Layout() (stage.Layout, error) {
	return stage.NewLayout(c.StageDirs())
}

// EnsureDirectories creates the log directory and every stage directory.
func (c *Config) EnsureDirectories() error {
	layout, err := c.Layout()
	if err != nil {
		return err
	}
	for _, dir := range append([]string{c.Paths.LogDir}, layout.Dirs()...) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ReportDir is where per-run JSON reports are written.
func (c *Config) ReportDir() string {
	return filepath.Join(c.Paths.LogDir, "reports")
}

// JournalPath is the sqlite transition journal location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.LogDir, "journal.db")
}

// LockPath is the run lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "dpxflow.lock")
}

// ProbeTimeout bounds a single reversibility probe.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.RAWcooked.ProbeTimeout) * time.Second
}

// CookTimeout bounds a single encode.
func (c *Config) CookTimeout() time.Duration {
	return time.Duration(c.RAWcooked.CookTimeout) * time.Second
}

// PolicyTimeout bounds a single policy check.
func (c *Config) PolicyTimeout() time.Duration {
	return time.Duration(c.MediaConch.Timeout) * time.Second
}

// WatchDebounce is the quiet period watch mode waits for before running.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.Workflow.WatchDebounce) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := renameio.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
