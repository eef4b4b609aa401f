// Package cli — run.go implements the "tilerun run" command.
//
// The run command is the primary user-facing operation: activate the
// environment, then run the pipeline steps with exit-code gates.
//
// Orchestration steps:
//  1. Load the pipeline manifest (tilerun.yaml or defaults)
//  2. Preflight the data configuration (config.json) the external programs need
//  3. Activate the runtime environment (conda prefix or Docker image)
//  4. Run the pipeline: optional validation step, then the download step,
//     each a hard gate on the next
//  5. Record the run in the history store (best-effort)
//  6. Output results (text lines or JSON record)
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gmkovacs/tilerun/internal/conda"
	"github.com/gmkovacs/tilerun/internal/config"
	"github.com/gmkovacs/tilerun/internal/docker"
	"github.com/gmkovacs/tilerun/internal/history"
	"github.com/gmkovacs/tilerun/internal/model"
	"github.com/gmkovacs/tilerun/internal/pipeline"
)

// NewRunCommand creates the "run" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the validation and download pipeline",
		Long: `Run the full pipeline: activate the configured environment, invoke the
validation step (when runValidation is enabled), then the download step.

Each step is an external program invoked as a subprocess. A step that
exits non-zero terminates the run immediately with exit status 1; the
remaining steps are not invoked.

Examples:
  tilerun run
  tilerun run --manifest pipelines/hungary.yaml
  tilerun run --json`,

		Args: cobra.NoArgs,

		// RunE is used instead of Run so we can return errors. Cobra will
		// pass them to the Execute error handler in root.go.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context())
		},
	}
}

// runRun is the main orchestration function for the run command.
func runRun(ctx context.Context) error {
	// Step 1: Load the pipeline manifest.
	manifest, err := config.LoadManifest(manifestPath)
	if err != nil {
		return err // LoadManifest already returns CLIError with ExitConfigError
	}
	VerboseLog("Manifest loaded: provider=%s runValidation=%t",
		manifest.Environment.Provider, manifest.RunValidation)

	// Step 2: Preflight the data configuration before spawning anything.
	if err := preflightDataConfig(manifest); err != nil {
		return err
	}

	// Step 3: Activate the runtime environment and build the step runner.
	runner, err := buildRunner(ctx, manifest)
	if err != nil {
		return err
	}

	// Step 4: Run the pipeline.
	pl := pipeline.New(manifest, runner)
	pl.Log = VerboseLog

	rec, runErr := pl.Run(ctx)

	// Step 5: Record the run. History is best-effort observability and
	// must never change the run's outcome, so errors only get logged.
	recordHistory(ctx, manifest, rec)

	if runErr != nil {
		return runErr
	}

	// Step 6: Output the machine-readable record when requested. The
	// human status lines were already printed by the pipeline.
	if IsJSONOutput() {
		printRunRecordJSON(rec)
	}
	return nil
}

// preflightDataConfig loads and validates the config.json consumed by the
// external programs. Both programs exit immediately on a broken config;
// catching it here produces one precise error instead of a bare
// "exited with error code 1".
func preflightDataConfig(manifest *config.Manifest) error {
	dataCfg, err := config.LoadDataConfig(manifest.DataConfig)
	if err != nil {
		return err
	}

	if issues := dataCfg.Validate(); len(issues) > 0 {
		msgs := make([]string, 0, len(issues))
		for _, issue := range issues {
			msgs = append(msgs, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
		}
		return model.NewCLIError(model.ExitConfigError,
			fmt.Sprintf("data config %s is incomplete: %s",
				manifest.DataConfig, strings.Join(msgs, "; ")))
	}

	VerboseLog("Data config OK: country=%s year=%s chunks=%d",
		dataCfg.CountryName, dataCfg.Year(), len(dataCfg.Chunks))
	return nil
}

// buildRunner activates the configured runtime environment and returns
// the step runner bound to it.
//
// Strictness: by default a failed activation terminates the run with
// ExitEnvError before any step is invoked. With environment.strict: false,
// a warning goes to stderr and the steps run with the inherited
// environment.
func buildRunner(ctx context.Context, manifest *config.Manifest) (pipeline.Runner, error) {
	env := manifest.Environment

	switch env.Provider {
	case config.ProviderConda:
		act, err := conda.Resolve(env.Name)
		if err != nil {
			if env.Strict {
				return nil, err // conda.Resolve already returns CLIError with ExitEnvError
			}
			fmt.Fprintf(os.Stderr, "Warning: %v; running with inherited environment\n", err)
			return &pipeline.LocalRunner{}, nil
		}
		VerboseLog("Activated conda environment %q at %s", act.Name, act.Prefix)
		return &pipeline.LocalRunner{Env: act.Env}, nil

	case config.ProviderDocker:
		cli, err := docker.NewClient()
		if err != nil {
			return nil, err
		}
		// The client is only needed for preflight; step execution goes
		// through the docker CLI.
		defer func() { _ = cli.Close() }()

		if err := cli.Ping(ctx); err != nil {
			return nil, err
		}
		exists, err := cli.ImageExists(ctx, env.Image)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, model.NewCLIError(model.ExitEnvError,
				fmt.Sprintf("environment image %q not found, pull it first", env.Image))
		}
		VerboseLog("Docker environment ready: image=%s", env.Image)
		return &pipeline.DockerRunner{Image: env.Image}, nil

	case config.ProviderNone:
		VerboseLog("No environment activation (provider: none)")
		return &pipeline.LocalRunner{}, nil

	default:
		// Unreachable after manifest validation; kept as a guard.
		return nil, model.NewCLIError(model.ExitConfigError,
			fmt.Sprintf("unknown environment provider %q", env.Provider))
	}
}

// recordHistory persists the run record when history is enabled.
// Failures are reported to stderr but never affect the run's exit status.
func recordHistory(ctx context.Context, manifest *config.Manifest, rec *model.RunRecord) {
	if manifest.History.Path == "" || rec == nil {
		return
	}

	store, err := history.Open(manifest.History.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: history unavailable: %v\n", err)
		return
	}
	defer func() { _ = store.Close() }()

	if err := store.RecordRun(ctx, rec); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to record run history: %v\n", err)
		return
	}
	VerboseLog("Run %s recorded in %s", rec.ID, manifest.History.Path)
}

// printRunRecordJSON outputs the completed run record as structured JSON.
func printRunRecordJSON(rec *model.RunRecord) {
	// MarshalIndent produces human-readable JSON with 2-space indentation.
	data, _ := json.MarshalIndent(rec, "", "  ")
	fmt.Println(string(data))
}
