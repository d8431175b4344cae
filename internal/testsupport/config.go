package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"dpxflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a unique temp directory with every
// stage directory created. It applies any provided options after the defaults.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.RootDir = base
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.GapCheckDir = filepath.Join(base, "dpx_gap_check")
	cfgVal.Paths.GapCheckFailDir = filepath.Join(base, "dpx_for_review", "gap_check_fails")
	cfgVal.Paths.PolicyCheckDir = filepath.Join(base, "dpx_policy_check")
	cfgVal.Paths.PolicyCheckFailDir = filepath.Join(base, "dpx_for_review", "dpx_policy_check_fails")
	cfgVal.Paths.ToCookDir = filepath.Join(base, "dpx_to_cook")
	cfgVal.Paths.ToCookV2Dir = filepath.Join(base, "dpx_to_cook_v2")
	cfgVal.Paths.CookedDir = filepath.Join(base, "mkv_cooked")
	cfgVal.Paths.MKVPolicyFailDir = filepath.Join(base, "dpx_for_review", "mkv_policy_check_fails")
	cfgVal.Paths.PostCookFailDir = filepath.Join(base, "dpx_for_review", "post_rawcook_fails")
	cfgVal.Paths.CompletedDir = filepath.Join(base, "dpx_completed")
	cfgVal.RAWcooked.License = "test-license"
	cfgVal.MediaConch.DPXPolicy = filepath.Join(base, "policies", "dpx.xml")
	cfgVal.MediaConch.MKVPolicy = filepath.Join(base, "policies", "mkv.xml")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithWorkers overrides the dispatcher worker limit.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.Workers = n
	}
}

// WithBatchSize overrides the dispatcher batch size.
func WithBatchSize(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.BatchSize = n
	}
}

// WithChecks toggles the gap and policy assessment gates.
func WithChecks(gaps, policy bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.CheckGaps = gaps
		b.cfg.Workflow.CheckPolicy = policy
	}
}

// WithoutFramemd5 disables manifest generation during the cook.
func WithoutFramemd5() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.RAWcooked.Framemd5 = false
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, rawcooked and mediaconch are
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"rawcooked", "mediaconch"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.RootDir
}
