package main

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"dpxflow/internal/stage"
)

var titleCaser = cases.Title(language.English)

// stageLabel renders a stage name for humans: "ready-to-cook-v2" becomes
// "Ready To Cook V2", with the container acronym kept upper case.
func stageLabel(s stage.Stage) string {
	label := titleCaser.String(strings.ReplaceAll(s.String(), "-", " "))
	return strings.ReplaceAll(label, "Mkv", "MKV")
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
