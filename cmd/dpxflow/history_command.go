package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dpxflow/internal/journal"
	"dpxflow/internal/stage"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history [sequence]",
		Short: "Show journaled moves and holds",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rec, err := journal.Open(cfg.JournalPath())
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer rec.Close()

			var name string
			if len(args) == 1 {
				name = args[0]
			}
			entries, err := rec.History(cmd.Context(), name, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No history recorded")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					humanize.Time(e.RecordedAt),
					e.Sequence,
					string(e.Kind),
					transitionLabel(e),
					e.Detail,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"When", "Sequence", "Kind", "Transition", "Detail"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum entries to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	return cmd
}

func transitionLabel(e journal.Entry) string {
	from := labelFor(e.From)
	if e.Kind == journal.KindHold || strings.TrimSpace(e.To) == "" {
		return "held in " + from
	}
	return from + " → " + labelFor(e.To)
}

func labelFor(value string) string {
	if s, ok := stage.Parse(value); ok {
		return stageLabel(s)
	}
	return value
}
