package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"dpxflow/internal/deps"
	"dpxflow/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify directories, policies and external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			failures := 0
			for _, line := range renderSectionHeader("Filesystem", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, r := range preflight.RunAll(cfg) {
				kind := statusOK
				if !r.Passed {
					kind = statusError
					failures++
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Tools", colorize) {
				fmt.Fprintln(out, line)
			}
			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
			for _, s := range statuses {
				kind, message := statusOK, s.Command
				if s.Version != "" {
					message = s.Version
				}
				if !s.Available {
					kind, message = statusError, s.Detail
					if s.Optional {
						kind = statusWarn
					}
				}
				fmt.Fprintln(out, renderStatusLine(s.Name, kind, message, colorize))
			}
			failures += len(deps.Missing(statuses))

			if failures > 0 {
				return errors.New("preflight failed")
			}
			return nil
		},
	}
}
