// Package cli — history.go implements the "tilerun history" command.
//
// The history command lists past pipeline runs from the sqlite history
// store, newest first, as a text table or JSON array depending on the
// --json flag.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gmkovacs/tilerun/internal/config"
	"github.com/gmkovacs/tilerun/internal/history"
	"github.com/gmkovacs/tilerun/internal/model"
)

// historyFlags holds the flag values for the history command.
// These are bound to cobra flags in NewHistoryCommand.
type historyFlags struct {
	// limit caps how many runs are listed, newest first.
	limit int
}

// NewHistoryCommand creates the "history" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewHistoryCommand() *cobra.Command {
	flags := &historyFlags{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded pipeline runs",
		Long: `List past pipeline runs from the history store, newest first.

Each run is shown with its ID, start time, duration, exit status, and
per-step outcomes.

Examples:
  tilerun history
  tilerun history --limit 5
  tilerun history --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), flags)
		},
	}

	cmd.Flags().IntVar(&flags.limit, "limit", 20, "Maximum number of runs to list")

	return cmd
}

// runHistory is the main logic function for the history command.
func runHistory(ctx context.Context, flags *historyFlags) error {
	manifest, err := config.LoadManifest(manifestPath)
	if err != nil {
		return err
	}

	if manifest.History.Path == "" {
		return model.NewCLIError(model.ExitConfigError,
			"history is disabled (history.path is empty in the manifest)")
	}

	store, err := history.Open(manifest.History.Path)
	if err != nil {
		return model.WrapCLIError(model.ExitConfigError, "failed to open history store", err)
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(ctx, flags.limit)
	if err != nil {
		return model.WrapCLIError(model.ExitConfigError, "failed to list runs", err)
	}
	VerboseLog("Loaded %d run(s) from %s", len(runs), manifest.History.Path)

	printHistoryResult(runs)
	return nil
}

// printHistoryResult outputs the run list in text or JSON format,
// depending on the global --json flag.
func printHistoryResult(runs []model.RunRecord) {
	if IsJSONOutput() {
		printHistoryResultJSON(runs)
	} else {
		printHistoryResultText(runs)
	}
}

// printHistoryResultJSON outputs the run list as structured JSON.
// The top-level key is "runs" containing an array of run records.
func printHistoryResultJSON(runs []model.RunRecord) {
	type resultJSON struct {
		Runs []model.RunRecord `json:"runs"`
	}

	result := resultJSON{
		// Empty slice instead of nil so JSON output shows [] instead of
		// null when no runs are recorded.
		Runs: make([]model.RunRecord, 0, len(runs)),
	}
	result.Runs = append(result.Runs, runs...)

	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
}

// printHistoryResultText outputs the run list as a human-readable
// text table with aligned columns.
//
// The table format is:
//
//	RUN       STARTED               DURATION  EXIT  STEPS
//	1b9d6bcd  2026-08-29 10:12:03   1h02m     0     validate:skipped download:0
func printHistoryResultText(runs []model.RunRecord) {
	if len(runs) == 0 {
		fmt.Println("No recorded runs found.")
		return
	}

	fmt.Printf("%-10s %-21s %-9s %-5s %s\n",
		"RUN", "STARTED", "DURATION", "EXIT", "STEPS")

	for i := range runs {
		run := &runs[i]
		fmt.Printf("%-10s %-21s %-9s %-5d %s\n",
			shortRunID(run.ID),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Duration().Round(time.Second).String(),
			run.ExitCode,
			FormatStepsSummary(run.Steps),
		)
	}
}

// shortRunID truncates a UUID to its first group for table display.
func shortRunID(id string) string {
	if idx := strings.IndexByte(id, '-'); idx > 0 {
		return id[:idx]
	}
	return id
}

// FormatStepsSummary converts step results into a compact space-separated
// summary. Returns "-" when no steps are recorded.
//
// This function is exported for testing purposes (tested in history_test.go).
//
// Example:
//
//	[validate:skipped, download:0] → "validate:skipped download:0"
//	[]                             → "-"
func FormatStepsSummary(steps []model.StepResult) string {
	if len(steps) == 0 {
		return "-"
	}

	parts := make([]string, 0, len(steps))
	for _, step := range steps {
		parts = append(parts, step.String())
	}
	return strings.Join(parts, " ")
}
