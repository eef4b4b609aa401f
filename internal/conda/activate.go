package conda

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gmkovacs/tilerun/internal/model"
)

// Activation holds the resolved runtime environment for the external steps.
//
// Usage:
//
//	act, err := conda.Resolve("wetlands")
//	if err != nil { /* environment cannot be activated */ }
//	cmd.Env = act.Env  // hand the activation to the subprocess
type Activation struct {
	// Name is the conda environment name that was resolved.
	Name string

	// Prefix is the absolute path of the environment's prefix directory.
	Prefix string

	// Env is the full process environment for step subprocesses: the
	// current environment with PATH prepended by the prefix's bin
	// directory and the CONDA_* variables pointing at the environment.
	Env []string
}

// Resolve locates the named conda environment and builds its activation.
//
// The environment prefix is resolved as:
//   - name "base": the conda root itself
//   - otherwise: <conda root>/envs/<name>
//
// Returns a model.CLIError with ExitEnvError if no conda installation is
// found or the named environment does not exist under it. Callers decide
// whether that error is fatal (strict mode) or merely a warning.
func Resolve(name string) (*Activation, error) {
	root, err := detectCondaRoot()
	if err != nil {
		return nil, model.WrapCLIError(model.ExitEnvError,
			"conda installation not found", err)
	}

	prefix := root
	if name != "base" {
		prefix = filepath.Join(root, "envs", name)
	}

	// A conda environment prefix always contains a bin directory (Scripts
	// on Windows, but the external programs here are POSIX-only anyway).
	// Checking for it catches both a missing environment and a prefix
	// that is not actually an environment.
	if _, err := os.Stat(filepath.Join(prefix, "bin")); err != nil {
		return nil, model.WrapCLIError(model.ExitEnvError,
			fmt.Sprintf("conda environment %q not found at %s", name, prefix), err)
	}

	return &Activation{
		Name:   name,
		Prefix: prefix,
		Env:    activationEnv(os.Environ(), prefix, name),
	}, nil
}

// detectCondaRoot determines the conda installation root.
// It probes, in order:
//  1. CONDA_EXE — set by conda's shell hook; the root is two directories
//     up from the executable (<root>/bin/conda).
//  2. Well-known installation prefixes under the user's home directory
//     and the system-wide locations used by the official installers.
//
// Design note: we check for directory existence rather than invoking
// `conda info`, because existence checks are fast and do not require the
// shell hook to be installed. Resolve verifies the named environment
// separately.
func detectCondaRoot() (string, error) {
	if exe := os.Getenv("CONDA_EXE"); exe != "" {
		root := filepath.Dir(filepath.Dir(exe))
		if _, err := os.Stat(root); err == nil {
			return root, nil
		}
		// CONDA_EXE points at a removed installation — fall through to
		// probing so a relocated install is still found.
	}

	var candidates []string
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, "miniconda3"),
			filepath.Join(home, "anaconda3"),
			filepath.Join(home, "miniforge3"),
		)
	}
	candidates = append(candidates,
		"/opt/conda",
		"/opt/miniconda3",
		"/opt/anaconda3",
	)

	for _, root := range candidates {
		// The envs directory distinguishes a conda root from an
		// arbitrary directory that happens to exist at a probed path.
		if _, err := os.Stat(filepath.Join(root, "envs")); err == nil {
			return root, nil
		}
	}

	return "", fmt.Errorf(
		"no conda installation found (checked CONDA_EXE and %v) — is conda installed?",
		candidates,
	)
}

// activationEnv builds the subprocess environment for an activated prefix.
// It copies base, prepends <prefix>/bin to PATH, and sets CONDA_PREFIX and
// CONDA_DEFAULT_ENV the way `conda activate` would.
func activationEnv(base []string, prefix, name string) []string {
	binDir := filepath.Join(prefix, "bin")

	env := make([]string, 0, len(base)+3)
	pathSeen := false
	for _, kv := range base {
		key, value, _ := strings.Cut(kv, "=")
		switch key {
		case "PATH":
			env = append(env, "PATH="+binDir+string(os.PathListSeparator)+value)
			pathSeen = true
		case "CONDA_PREFIX", "CONDA_DEFAULT_ENV":
			// Replaced below — dropping the inherited values avoids a
			// stale base activation leaking through.
		default:
			env = append(env, kv)
		}
	}
	if !pathSeen {
		env = append(env, "PATH="+binDir)
	}

	env = append(env,
		"CONDA_PREFIX="+prefix,
		"CONDA_DEFAULT_ENV="+name,
	)
	return env
}
