package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dpxflow/internal/classify"
	"dpxflow/internal/config"
	"dpxflow/internal/fileutil"
	"dpxflow/internal/stage"
)

type stageSummary struct {
	Stage     stage.Stage `json:"stage"`
	Dir       string      `json:"dir"`
	Sequences int         `json:"sequences"`
	Files     int         `json:"files"`
	Bytes     int64       `json:"bytes"`
	Missing   bool        `json:"missing,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what each stage directory holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			summaries := summarizeStages(cfg)
			if asJSON {
				return writeJSON(cmd, summaries)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Root: %s\n", cfg.Paths.RootDir)
			if ctx.configPath != "" {
				fmt.Fprintf(out, "Config: %s\n", ctx.configPath)
			}
			rows := make([][]string, 0, len(summaries))
			for _, s := range summaries {
				count := strconv.Itoa(s.Sequences)
				size := humanize.IBytes(uint64(s.Bytes))
				if s.Missing {
					count, size = "-", "missing"
				}
				rows = append(rows, []string{stageLabel(s.Stage), count, size, s.Dir})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Stage", "Items", "Size", "Directory"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	return cmd
}

// summarizeStages counts the top-level items of every stage directory. The
// in-flight directory counts containers; the others count folders.
func summarizeStages(cfg *config.Config) []stageSummary {
	dirs := cfg.StageDirs()
	summaries := make([]stageSummary, 0, len(dirs))
	for _, s := range stage.All() {
		summary := stageSummary{Stage: s, Dir: dirs[s]}
		entries, err := os.ReadDir(summary.Dir)
		if err != nil {
			summary.Missing = true
			summaries = append(summaries, summary)
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			switch {
			case fileutil.IsPartial(name):
			case s == stage.MKVCooked && !entry.IsDir() && filepath.Ext(name) == classify.ContainerExt:
				summary.Sequences++
			case s != stage.MKVCooked && entry.IsDir():
				summary.Sequences++
			}
		}
		summary.Files, summary.Bytes = treeSize(summary.Dir)
		summaries = append(summaries, summary)
	}
	return summaries
}

func treeSize(root string) (int, int64) {
	var (
		files int
		total int64
	)
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files++
		total += info.Size()
		return nil
	})
	return files, total
}
