// Package cli — validate.go implements the "tilerun validate" command.
//
// The validate command invokes only the validation step, regardless of
// the manifest's runValidation flag. The external validation program
// checks the downloaded tile files and removes invalid ones; running it
// on its own is useful before re-running an interrupted download.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/gmkovacs/tilerun/internal/model"
)

// NewValidateCommand creates the "validate" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Run only the validation step",
		Long: `Invoke the external validation program on its own.

The step runs in the configured environment and is gated exactly like a
full pipeline run: a non-zero exit status terminates with exit status 1.

Examples:
  tilerun validate
  tilerun validate --manifest pipelines/hungary.yaml`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runSingleStep(cmd.Context(), model.StepValidate)
		},
	}
}
