// Package cli — check.go implements the "tilerun check" command.
//
// The check command performs every preflight the run command would —
// manifest, data configuration, environment activation — without invoking
// any step. It is the fast answer to "would a run start?" and reports all
// data-config problems at once instead of stopping at the first.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gmkovacs/tilerun/internal/conda"
	"github.com/gmkovacs/tilerun/internal/config"
	"github.com/gmkovacs/tilerun/internal/docker"
	"github.com/gmkovacs/tilerun/internal/model"
)

// NewCheckCommand creates the "check" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Preflight the pipeline without running any step",
		Long: `Verify that a pipeline run would start: the manifest parses, the data
configuration (config.json) is complete, and the configured runtime
environment can be activated.

No external program is invoked. Exit status is 0 when everything checks
out, 2 for configuration problems, 3 for environment problems.

Examples:
  tilerun check
  tilerun check --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context())
		},
	}
}

// checkResult is the JSON output structure of the check command.
type checkResult struct {
	Manifest    string   `json:"manifest"`
	Provider    string   `json:"provider"`
	Environment string   `json:"environment"`
	DataConfig  string   `json:"dataConfig"`
	Issues      []string `json:"issues"`
	OK          bool     `json:"ok"`
}

// runCheck is the main logic function for the check command.
func runCheck(ctx context.Context) error {
	// Step 1: Manifest. A parse or validation failure ends the check
	// immediately — nothing else can be interpreted without it.
	manifest, err := config.LoadManifest(manifestPath)
	if err != nil {
		return err
	}

	result := checkResult{
		Manifest:   manifestPathOrDefault(),
		Provider:   manifest.Environment.Provider.String(),
		DataConfig: manifest.DataConfig,
	}

	// Step 2: Data configuration. Collect every issue rather than
	// stopping at the first, so one check run shows the full repair list.
	dataCfg, err := config.LoadDataConfig(manifest.DataConfig)
	if err != nil {
		result.Issues = append(result.Issues, err.Error())
	} else {
		for _, issue := range dataCfg.Validate() {
			result.Issues = append(result.Issues, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
		}
	}

	// Step 3: Environment activation.
	envDesc, envErr := checkEnvironment(ctx, manifest)
	result.Environment = envDesc
	if envErr != nil {
		result.Issues = append(result.Issues, envErr.Error())
	}

	result.OK = len(result.Issues) == 0
	printCheckResult(&result)

	if result.OK {
		return nil
	}
	// Environment problems take the environment exit code; everything
	// else is a configuration problem.
	if envErr != nil {
		return model.WrapCLIError(model.ExitEnvError, "environment preflight failed", envErr)
	}
	return model.NewCLIError(model.ExitConfigError, "preflight found configuration problems")
}

// checkEnvironment verifies the configured provider can be activated and
// returns a short human-readable description of what was checked.
func checkEnvironment(ctx context.Context, manifest *config.Manifest) (string, error) {
	env := manifest.Environment

	switch env.Provider {
	case config.ProviderConda:
		act, err := conda.Resolve(env.Name)
		if err != nil {
			return fmt.Sprintf("conda environment %q", env.Name), err
		}
		return fmt.Sprintf("conda environment %q at %s", act.Name, act.Prefix), nil

	case config.ProviderDocker:
		cli, err := docker.NewClient()
		if err != nil {
			return fmt.Sprintf("docker image %q", env.Image), err
		}
		defer func() { _ = cli.Close() }()

		if err := cli.Ping(ctx); err != nil {
			return fmt.Sprintf("docker image %q", env.Image), err
		}
		exists, err := cli.ImageExists(ctx, env.Image)
		if err != nil {
			return fmt.Sprintf("docker image %q", env.Image), err
		}
		if !exists {
			return fmt.Sprintf("docker image %q", env.Image),
				fmt.Errorf("image %q not found — pull it first", env.Image)
		}
		return fmt.Sprintf("docker image %q", env.Image), nil

	case config.ProviderNone:
		return "inherited environment (provider: none)", nil

	default:
		return env.Provider.String(), fmt.Errorf("unknown provider %q", env.Provider)
	}
}

// manifestPathOrDefault reports which manifest path the check used.
func manifestPathOrDefault() string {
	if manifestPath != "" {
		return manifestPath
	}
	return config.DefaultManifestPath
}

// printCheckResult outputs the check result in text or JSON format,
// depending on the global --json flag.
func printCheckResult(result *checkResult) {
	if IsJSONOutput() {
		if result.Issues == nil {
			// Empty slice instead of nil so JSON output shows []
			// instead of null when there are no issues.
			result.Issues = []string{}
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Manifest:     %s\n", result.Manifest)
	fmt.Printf("Provider:     %s\n", result.Provider)
	fmt.Printf("Environment:  %s\n", result.Environment)
	fmt.Printf("Data config:  %s\n", result.DataConfig)

	if result.OK {
		fmt.Println("✅ Preflight OK — a run would start")
		return
	}
	fmt.Println("Issues:")
	for _, issue := range result.Issues {
		fmt.Printf("  ❌ %s\n", issue)
	}
}
