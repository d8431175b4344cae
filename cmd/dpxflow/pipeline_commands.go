package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"dpxflow/internal/assessment"
	"dpxflow/internal/encoding"
	"dpxflow/internal/fileutil"
	"dpxflow/internal/pipeline"
	"dpxflow/internal/postcook"
	"dpxflow/internal/services"
	"dpxflow/internal/watch"
)

// locked runs fn under the run lock with a pipeline built for cmd.
func locked(cmd *cobra.Command, ctx *commandContext, fn func(context.Context, *pipeline.Pipeline) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	lock, err := pipeline.AcquireLock(cfg.LockPath())
	if err != nil {
		return err
	}
	defer lock.Unlock()

	p, closeFn, err := ctx.pipeline()
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(cmd.Context(), p)
}

func newAssessCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Run the gap, reversibility and DPX policy gates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return locked(cmd, ctx, func(c context.Context, p *pipeline.Pipeline) error {
				report, err := p.Assess(c)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, report)
				}
				printAssessment(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func newCookCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "cook",
		Short: "Encode the ready directories (v2 first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return locked(cmd, ctx, func(c context.Context, p *pipeline.Pipeline) error {
				reports, err := p.Cook(c)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, reports)
				}
				for _, r := range reports {
					printEncode(cmd.OutOrStdout(), r)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the reports as JSON")
	return cmd
}

func newPostCookCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "postcook",
		Short: "Audit encoded containers and complete their sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return locked(cmd, ctx, func(c context.Context, p *pipeline.Pipeline) error {
				report, err := p.PostCook(c)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, report)
				}
				printPostCook(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one full pass: reconcile, assess, cook, audit",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, closeFn, err := ctx.pipeline()
			if err != nil {
				return err
			}
			defer closeFn()
			report, err := p.Run(cmd.Context())
			if report != nil {
				if asJSON {
					if jsonErr := writeJSON(cmd, report); jsonErr != nil {
						return jsonErr
					}
				} else {
					printRun(cmd.OutOrStdout(), report)
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run report as JSON")
	return cmd
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run a pass whenever new sequences arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			p, closeFn, err := ctx.pipeline()
			if err != nil {
				return err
			}
			defer closeFn()

			dirs := []string{cfg.Paths.GapCheckDir, cfg.Paths.ToCookDir, cfg.Paths.ToCookV2Dir}
			w := watch.New(dirs, cfg.WatchDebounce(), func(c context.Context) error {
				_, err := p.Run(c)
				if errors.Is(err, pipeline.ErrLocked) {
					logger.Info("pass skipped; another run holds the lock")
					return nil
				}
				return err
			}, logger)
			return w.Run(cmd.Context())
		},
	}
}

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Report interrupted moves and sequences present in several stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			layout, err := cfg.Layout()
			if err != nil {
				return err
			}
			report, err := pipeline.Reconcile(fileutil.OS{}, layout)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, report)
			}
			printReconcile(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func printAssessment(out io.Writer, r assessment.Report) {
	if r.NoPreprocessing {
		fmt.Fprintln(out, "No preprocessing: gap and policy checks are both disabled")
		return
	}
	fmt.Fprintf(out, "Assessed %d sequence(s)\n", r.Discovered)
	if len(r.Transitions) > 0 {
		rows := make([][]string, 0, len(r.Transitions))
		for _, t := range r.Transitions {
			rows = append(rows, []string{t.Sequence, stageLabel(t.From), stageLabel(t.To), t.Reason})
		}
		fmt.Fprintln(out, renderTable([]string{"Sequence", "From", "To", "Reason"}, rows, nil))
	}
	if len(r.Frameless) > 0 {
		fmt.Fprintf(out, "Folders without frames: %s\n", strings.Join(r.Frameless, ", "))
	}
	printIncidents(out, r.Incidents)
}

func printEncode(out io.Writer, r encoding.Report) {
	if r.Empty() {
		fmt.Fprintf(out, "%s: nothing to encode in %s\n", strings.ToUpper(r.Mode), r.Dir)
		return
	}
	rows := make([][]string, 0, len(r.Jobs))
	for _, j := range r.Jobs {
		result := "ok"
		if !j.Succeeded() {
			result = services.Kind(j.Err)
		}
		rows = append(rows, []string{j.Sequence, formatDuration(j.Duration), result})
	}
	fmt.Fprintf(out, "%s encodes (%d deferred, %d skipped)\n", strings.ToUpper(r.Mode), len(r.Deferred), len(r.Skipped))
	fmt.Fprintln(out, renderTable([]string{"Sequence", "Duration", "Result"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))
	printIncidents(out, r.Incidents)
}

func printPostCook(out io.Writer, r postcook.Report) {
	fmt.Fprintf(out, "Audited %d pair(s): %d completed, %d sent to review\n", r.Pairs, len(r.Completed), len(r.Review))
	if len(r.Review) > 0 {
		rows := make([][]string, 0, len(r.Review))
		for _, rv := range r.Review {
			rows = append(rows, []string{rv.Base, stageLabel(rv.To), strings.Join(rv.Reasons, ", ")})
		}
		fmt.Fprintln(out, renderTable([]string{"Sequence", "Stage", "Reasons"}, rows, nil))
	}
	if len(r.SourcesCompleted) > 0 {
		fmt.Fprintf(out, "Sources completed: %s\n", strings.Join(r.SourcesCompleted, ", "))
	}
	printIncidents(out, r.Incidents)
}

func printRun(out io.Writer, r *pipeline.RunReport) {
	fmt.Fprintf(out, "Run %s\n", r.RunID)
	printReconcile(out, r.Reconcile)
	printAssessment(out, r.Assessment)
	for _, e := range r.Encodes {
		printEncode(out, e)
	}
	printPostCook(out, r.PostCook)
	if r.Path != "" {
		fmt.Fprintf(out, "Report: %s\n", r.Path)
	}
}

func printReconcile(out io.Writer, r pipeline.ReconcileReport) {
	if r.Clean() {
		fmt.Fprintln(out, "Stage directories consistent")
		return
	}
	for _, p := range r.Partials {
		fmt.Fprintf(out, "Partial move: %s\n", p)
	}
	for _, d := range r.Duplicates {
		labels := make([]string, len(d.Stages))
		for i, s := range d.Stages {
			labels[i] = stageLabel(s)
		}
		fmt.Fprintf(out, "Duplicate %s in: %s\n", d.Name, strings.Join(labels, ", "))
	}
}

func printIncidents(out io.Writer, incidents []services.Incident) {
	if len(incidents) == 0 {
		return
	}
	rows := make([][]string, 0, len(incidents))
	for _, inc := range incidents {
		rows = append(rows, []string{inc.Sequence, inc.Stage, inc.Kind, inc.Message})
	}
	fmt.Fprintln(out, renderTable([]string{"Sequence", "Stage", "Kind", "Detail"}, rows, nil))
}
