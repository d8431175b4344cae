package preflight

import (
	"context"

	"dpxflow/internal/config"
	"dpxflow/internal/deps"
	"dpxflow/internal/stage"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// RunAll executes the filesystem checks for cfg. Policy files are only
// checked for the gates that use them.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Root directory", cfg.Paths.RootDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	dirs := cfg.StageDirs()
	for _, s := range stage.All() {
		results = append(results, CheckDirectoryAccess("Stage "+s.String(), dirs[s]))
	}
	if cfg.Workflow.CheckPolicy {
		results = append(results, CheckReadableFile("DPX policy", cfg.MediaConch.DPXPolicy))
	}
	results = append(results, CheckReadableFile("MKV policy", cfg.MediaConch.MKVPolicy))
	return results
}

// CheckSystemDeps evaluates the external tools the pipeline invokes.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "RAWcooked",
			Command:     cfg.RAWcooked.Binary,
			Description: "Required for reversibility probes and encodes",
			VersionArgs: []string{"--version"},
		},
		{
			Name:        "MediaConch",
			Command:     cfg.MediaConch.Binary,
			Description: "Required for DPX and MKV policy checks",
			VersionArgs: []string{"--version"},
		},
	}
	statuses := deps.CheckBinaries(ctx, requirements)
	return append(statuses, deps.CheckFFmpegForRAWcooked(cfg.RAWcooked.Binary))
}
