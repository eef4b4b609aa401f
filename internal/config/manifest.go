// manifest.go loads and validates the pipeline manifest (tilerun.yaml).
//
// The manifest is the feature-flag surface of the orchestrator. In
// particular, the optional validation step is guarded by an explicit
// runValidation flag rather than by editing the pipeline itself.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gmkovacs/tilerun/internal/model"
)

// DefaultManifestPath is the manifest file name looked up in the working
// directory when no --manifest flag is given.
const DefaultManifestPath = "tilerun.yaml"

// EnvProvider selects how the runtime environment for the external steps
// is prepared.
type EnvProvider string

const (
	// ProviderConda activates a named conda environment: the steps run
	// locally with PATH and CONDA_* variables pointing at the
	// environment's prefix. This is the default provider.
	ProviderConda EnvProvider = "conda"

	// ProviderDocker runs each step inside a container of the configured
	// image, with the working directory bind-mounted.
	ProviderDocker EnvProvider = "docker"

	// ProviderNone runs the steps with the inherited process environment,
	// performing no activation at all.
	ProviderNone EnvProvider = "none"
)

// String returns the string representation of EnvProvider.
func (p EnvProvider) String() string {
	return string(p)
}

// IsValid checks whether the EnvProvider value is one of the
// predefined providers.
func (p EnvProvider) IsValid() bool {
	switch p {
	case ProviderConda, ProviderDocker, ProviderNone:
		return true
	default:
		return false
	}
}

// EnvironmentConfig describes the runtime environment to prepare before
// any step is invoked.
type EnvironmentConfig struct {
	// Provider selects the activation mechanism (conda, docker, none).
	Provider EnvProvider `yaml:"provider"`

	// Name is the conda environment name. Used by the conda provider.
	Name string `yaml:"name"`

	// Image is the container image reference. Used by the docker provider.
	Image string `yaml:"image"`

	// Strict controls what happens when activation fails. When true
	// (the default), the run terminates with an environment error before
	// any step is invoked. When false, a warning is printed and the steps
	// run with the inherited environment.
	Strict bool `yaml:"strict"`
}

// StepCommand is the command line of one external pipeline step.
// The step is an opaque collaborator: the only contract is that the
// program terminates with an integer exit status.
type StepCommand struct {
	// Command is the program to invoke (resolved via PATH after
	// environment activation).
	Command string `yaml:"command"`

	// Args are the arguments passed to the program.
	Args []string `yaml:"args"`
}

// HistoryConfig configures the run-history store.
type HistoryConfig struct {
	// Path is the sqlite database file. An empty path disables history.
	Path string `yaml:"path"`
}

// Manifest is the root of tilerun.yaml.
type Manifest struct {
	// Environment describes the runtime environment to activate.
	Environment EnvironmentConfig `yaml:"environment"`

	// RunValidation enables the validation step. Defaults to false:
	// most runs only need the download step.
	RunValidation bool `yaml:"runValidation"`

	// Validate is the validation step's command line.
	Validate StepCommand `yaml:"validate"`

	// Download is the download step's command line.
	Download StepCommand `yaml:"download"`

	// DataConfig is the path to the config.json consumed by the external
	// programs. It is preflighted before any step runs.
	DataConfig string `yaml:"dataConfig"`

	// History configures run-history persistence.
	History HistoryConfig `yaml:"history"`
}

// DefaultManifest returns a manifest with the stock pipeline setup: conda
// environment "wetlands", validation disabled, python step scripts,
// config.json preflight, history in a .tilerun directory next to the data.
func DefaultManifest() *Manifest {
	return &Manifest{
		Environment: EnvironmentConfig{
			Provider: ProviderConda,
			Name:     "wetlands",
			Strict:   true,
		},
		RunValidation: false,
		Validate: StepCommand{
			Command: "python",
			Args:    []string{"validate.py"},
		},
		Download: StepCommand{
			Command: "python",
			Args:    []string{"download.py"},
		},
		DataConfig: "config.json",
		History: HistoryConfig{
			Path: ".tilerun/history.db",
		},
	}
}

// LoadManifest reads and parses the pipeline manifest at the given path.
//
// Two lookup modes exist:
//   - path == "" (no --manifest flag): DefaultManifestPath is tried, and a
//     missing file simply yields DefaultManifest(). The stock pipeline
//     needs no configuration file, so absence must not be an error.
//   - explicit path: the file must exist; a missing or unreadable file is
//     a configuration error.
//
// Parsing always starts from DefaultManifest(), so a partial manifest only
// overrides the fields it mentions.
func LoadManifest(path string) (*Manifest, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultManifestPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			// No manifest in the working directory — run with defaults.
			return DefaultManifest(), nil
		}
		return nil, model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("failed to read manifest %s", path), err)
	}

	// Unmarshal over the defaults so unspecified fields keep their
	// default values. yaml.v3 only touches fields present in the input.
	manifest := DefaultManifest()
	if err := yaml.Unmarshal(data, manifest); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("failed to parse manifest %s", path), err)
	}

	if err := manifest.validate(); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("invalid manifest %s", path), err)
	}

	return manifest, nil
}

// validate checks the manifest for inconsistencies that would otherwise
// surface as confusing failures mid-run. Unexported to keep the name
// free for the Validate step-command field; LoadManifest always runs it.
func (m *Manifest) validate() error {
	if !m.Environment.Provider.IsValid() {
		return fmt.Errorf("environment.provider %q is not one of conda, docker, none",
			m.Environment.Provider)
	}
	if m.Environment.Provider == ProviderConda && m.Environment.Name == "" {
		return fmt.Errorf("environment.name is required when environment.provider is conda")
	}
	if m.Environment.Provider == ProviderDocker && m.Environment.Image == "" {
		return fmt.Errorf("environment.image is required when environment.provider is docker")
	}
	if m.Validate.Command == "" {
		return fmt.Errorf("validate.command must not be empty")
	}
	if m.Download.Command == "" {
		return fmt.Errorf("download.command must not be empty")
	}
	if m.DataConfig == "" {
		return fmt.Errorf("dataConfig must not be empty")
	}
	return nil
}

// StepCommandFor returns the configured command line for the named step.
func (m *Manifest) StepCommandFor(name model.StepName) (StepCommand, error) {
	switch name {
	case model.StepValidate:
		return m.Validate, nil
	case model.StepDownload:
		return m.Download, nil
	default:
		return StepCommand{}, fmt.Errorf("unknown step %q", name)
	}
}
