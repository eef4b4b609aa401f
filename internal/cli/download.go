// Package cli — download.go implements the "tilerun download" command.
//
// The download command invokes only the download step. It shares the
// single-step execution path with the validate command; runSingleStep
// lives here because download is the step that always runs.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/gmkovacs/tilerun/internal/config"
	"github.com/gmkovacs/tilerun/internal/model"
	"github.com/gmkovacs/tilerun/internal/pipeline"
)

// NewDownloadCommand creates the "download" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewDownloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Run only the download step",
		Long: `Invoke the external download program on its own, skipping validation
even when runValidation is enabled in the manifest.

The step runs in the configured environment and is gated exactly like a
full pipeline run: a non-zero exit status terminates with exit status 1.

Examples:
  tilerun download
  tilerun download --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runSingleStep(cmd.Context(), model.StepDownload)
		},
	}
}

// runSingleStep executes one named step with the same preflight,
// environment activation, gating, and history recording as a full run.
func runSingleStep(ctx context.Context, name model.StepName) error {
	manifest, err := config.LoadManifest(manifestPath)
	if err != nil {
		return err
	}

	if err := preflightDataConfig(manifest); err != nil {
		return err
	}

	runner, err := buildRunner(ctx, manifest)
	if err != nil {
		return err
	}

	pl := pipeline.New(manifest, runner)
	pl.Log = VerboseLog

	rec, runErr := pl.RunOnly(ctx, name)
	recordHistory(ctx, manifest, rec)
	if runErr != nil {
		return runErr
	}

	if IsJSONOutput() {
		printRunRecordJSON(rec)
	}
	return nil
}
