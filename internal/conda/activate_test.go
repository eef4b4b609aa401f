package conda

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmkovacs/tilerun/internal/model"
)

// setupFakeConda creates a directory tree shaped like a conda
// installation (root/bin, root/envs/<names>/bin) and points CONDA_EXE at
// it, so detection resolves the fake root regardless of what is installed
// on the test machine.
//
// Returns the fake root path.
func setupFakeConda(t *testing.T, envNames ...string) string {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bin"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "envs"), 0o755))
	for _, name := range envNames {
		require.NoError(t, os.MkdirAll(filepath.Join(root, "envs", name, "bin"), 0o755))
	}

	t.Setenv("CONDA_EXE", filepath.Join(root, "bin", "conda"))
	return root
}

// envValue extracts the value of a key from a KEY=VALUE environment slice.
// Returns the last occurrence, matching what exec would apply.
func envValue(env []string, key string) string {
	value := ""
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		if k == key {
			value = v
		}
	}
	return value
}

// TestResolveNamedEnvironment verifies that a named environment resolves
// to its envs/<name> prefix and that the activation variables point at it.
func TestResolveNamedEnvironment(t *testing.T) {
	root := setupFakeConda(t, "wetlands")

	act, err := Resolve("wetlands")
	require.NoError(t, err)

	wantPrefix := filepath.Join(root, "envs", "wetlands")
	assert.Equal(t, "wetlands", act.Name)
	assert.Equal(t, wantPrefix, act.Prefix)

	binDir := filepath.Join(wantPrefix, "bin")
	path := envValue(act.Env, "PATH")
	assert.True(t, strings.HasPrefix(path, binDir+string(os.PathListSeparator)),
		"PATH should be prepended with the environment's bin directory, got %q", path)

	assert.Equal(t, wantPrefix, envValue(act.Env, "CONDA_PREFIX"))
	assert.Equal(t, "wetlands", envValue(act.Env, "CONDA_DEFAULT_ENV"))
}

// TestResolveBaseEnvironment verifies that "base" resolves to the conda
// root itself rather than an envs subdirectory.
func TestResolveBaseEnvironment(t *testing.T) {
	root := setupFakeConda(t)

	act, err := Resolve("base")
	require.NoError(t, err)
	assert.Equal(t, root, act.Prefix)
}

// TestResolveMissingEnvironment verifies that a nonexistent environment
// fails with the environment exit code, so strict mode terminates the run
// before any step is invoked.
func TestResolveMissingEnvironment(t *testing.T) {
	setupFakeConda(t, "wetlands")

	_, err := Resolve("does-not-exist")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitEnvError, cliErr.Code)
	assert.Contains(t, err.Error(), "does-not-exist")
}

// TestActivationEnvReplacesStaleVars verifies that an inherited base
// activation (CONDA_PREFIX/CONDA_DEFAULT_ENV from the parent shell) is
// replaced, not duplicated.
func TestActivationEnvReplacesStaleVars(t *testing.T) {
	base := []string{
		"PATH=/usr/bin",
		"CONDA_PREFIX=/opt/conda",
		"CONDA_DEFAULT_ENV=base",
		"HOME=/home/u",
	}

	env := activationEnv(base, "/opt/conda/envs/wetlands", "wetlands")

	assert.Equal(t, "/opt/conda/envs/wetlands", envValue(env, "CONDA_PREFIX"))
	assert.Equal(t, "wetlands", envValue(env, "CONDA_DEFAULT_ENV"))
	assert.Equal(t, "/home/u", envValue(env, "HOME"), "unrelated variables pass through")

	// The stale values must be gone entirely, not shadowed.
	joined := strings.Join(env, "\n")
	assert.NotContains(t, joined, "CONDA_DEFAULT_ENV=base")
	assert.NotContains(t, joined, "CONDA_PREFIX=/opt/conda\n")
}

// TestActivationEnvWithoutPath verifies PATH is created when the base
// environment somehow lacks one.
func TestActivationEnvWithoutPath(t *testing.T) {
	env := activationEnv([]string{"HOME=/home/u"}, "/opt/conda/envs/w", "w")
	assert.Equal(t, filepath.Join("/opt/conda/envs/w", "bin"), envValue(env, "PATH"))
}
