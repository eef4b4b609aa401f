package pipeline

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmkovacs/tilerun/internal/config"
	"github.com/gmkovacs/tilerun/internal/model"
)

// newTestPipeline builds a pipeline whose steps are shell one-liners and
// whose status lines are captured in the returned buffer. The step
// programs' own output is discarded — only the orchestrator's lines are
// under test.
func newTestPipeline(t *testing.T, runValidation bool, validateCmd, downloadCmd string) (*Pipeline, *bytes.Buffer) {
	t.Helper()

	manifest := config.DefaultManifest()
	manifest.RunValidation = runValidation
	manifest.Validate = config.StepCommand{Command: "sh", Args: []string{"-c", validateCmd}}
	manifest.Download = config.StepCommand{Command: "sh", Args: []string{"-c", downloadCmd}}

	var out bytes.Buffer
	p := New(manifest, &LocalRunner{Stdout: io.Discard, Stderr: io.Discard})
	p.Out = &out
	return p, &out
}

// requireStepFailure asserts the error is a CLIError carrying the step
// failure exit code (1) — the orchestration contract for any failing step.
func requireStepFailure(t *testing.T, err error) {
	t.Helper()

	require.Error(t, err)
	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitStepFailed, cliErr.Code)
}

// TestRunDownloadSucceeds covers the success scenario: download exits 0,
// the run terminates successfully, and the output carries the start line
// followed by the Done line.
func TestRunDownloadSucceeds(t *testing.T) {
	p, out := newTestPipeline(t, false, "exit 0", "exit 0")

	rec, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, rec.ExitCode)

	output := out.String()
	startIdx := strings.Index(output, "Starting validation and download")
	doneIdx := strings.Index(output, "Done at")
	require.GreaterOrEqual(t, startIdx, 0, "start line must be printed")
	require.GreaterOrEqual(t, doneIdx, 0, "Done line must be printed")
	assert.Less(t, startIdx, doneIdx, "start line must precede the Done line")
}

// TestRunDownloadFails covers the failure scenario: download exits 2, the
// run terminates with exit status 1, the failure line names the exact
// exit code, and no Done line is printed.
func TestRunDownloadFails(t *testing.T) {
	p, out := newTestPipeline(t, false, "exit 0", "exit 2")

	rec, err := p.Run(context.Background())
	requireStepFailure(t, err)

	assert.Equal(t, 1, rec.ExitCode)

	output := out.String()
	assert.Contains(t, output, "Download script exited with error code 2")
	assert.NotContains(t, output, "Done at", "no success line after a failed download")
}

// TestRunValidationGatesDownload covers the re-enabled validation
// scenario: when validation fails, the download step must never be
// invoked. The download command would create a marker file; its absence
// proves the gate held.
func TestRunValidationGatesDownload(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "download-ran")

	p, out := newTestPipeline(t, true, "exit 3", "touch "+marker)

	rec, err := p.Run(context.Background())
	requireStepFailure(t, err)

	assert.Contains(t, out.String(), "Validation script exited with error code 3")

	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "download step must not run after a failed validation")

	// The record still carries both steps: validation failed, download skipped.
	require.Len(t, rec.Steps, 2)
	assert.Equal(t, model.StatusFailed, rec.Steps[0].Status)
	assert.Equal(t, 3, rec.Steps[0].ExitCode)
	assert.Equal(t, model.StatusSkipped, rec.Steps[1].Status)
}

// TestRunValidationEnabledAndPassing verifies the full two-step sequence:
// both steps run, in order, and the run succeeds.
func TestRunValidationEnabledAndPassing(t *testing.T) {
	dir := t.TempDir()
	validateMarker := filepath.Join(dir, "validate-ran")
	downloadMarker := filepath.Join(dir, "download-ran")

	// The download command asserts the validation marker already exists,
	// proving sequential ordering.
	p, _ := newTestPipeline(t, true,
		"touch "+validateMarker,
		"test -f "+validateMarker+" && touch "+downloadMarker)

	rec, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, rec.ExitCode)
	_, statErr := os.Stat(downloadMarker)
	assert.NoError(t, statErr)

	require.Len(t, rec.Steps, 2)
	assert.True(t, rec.Steps[0].Succeeded())
	assert.True(t, rec.Steps[1].Succeeded())
}

// TestRunValidationDisabledIsSkipped verifies the default configuration:
// validation is recorded as skipped and only download runs.
func TestRunValidationDisabledIsSkipped(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "validate-ran")

	p, _ := newTestPipeline(t, false, "touch "+marker, "exit 0")

	rec, err := p.Run(context.Background())
	require.NoError(t, err)

	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "validation must not run when disabled")

	require.Len(t, rec.Steps, 2)
	assert.Equal(t, model.StepValidate, rec.Steps[0].Name)
	assert.Equal(t, model.StatusSkipped, rec.Steps[0].Status)
	assert.Equal(t, model.StepDownload, rec.Steps[1].Name)
	assert.Equal(t, model.StatusSucceeded, rec.Steps[1].Status)
}

// TestRunStartLinePrecedesSubprocess verifies the start line is written
// before any subprocess output could appear: the step itself writes into
// the same buffer, and the start line must come first.
func TestRunStartLinePrecedesSubprocess(t *testing.T) {
	manifest := config.DefaultManifest()
	manifest.Download = config.StepCommand{Command: "sh", Args: []string{"-c", "echo step-output"}}

	var out bytes.Buffer
	p := New(manifest, &LocalRunner{Stdout: &out, Stderr: io.Discard})
	p.Out = &out

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	output := out.String()
	startIdx := strings.Index(output, "Starting validation and download")
	stepIdx := strings.Index(output, "step-output")
	require.GreaterOrEqual(t, startIdx, 0)
	require.GreaterOrEqual(t, stepIdx, 0)
	assert.Less(t, startIdx, stepIdx, "start line must be printed before the subprocess runs")
}

// TestRunRecordHasID verifies every run gets a unique identifier for the
// history store.
func TestRunRecordHasID(t *testing.T) {
	p, _ := newTestPipeline(t, false, "exit 0", "exit 0")

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	second, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
}

// TestRunMissingStepBinary verifies that an unstartable step fails the
// run with exit status 1 and a distinguishable message, and that no Done
// line is printed.
func TestRunMissingStepBinary(t *testing.T) {
	manifest := config.DefaultManifest()
	manifest.Download = config.StepCommand{Command: "definitely-not-a-real-binary-3141"}

	var out bytes.Buffer
	p := New(manifest, &LocalRunner{Stdout: io.Discard, Stderr: io.Discard})
	p.Out = &out

	_, err := p.Run(context.Background())
	requireStepFailure(t, err)

	assert.Contains(t, out.String(), "Download script could not be started")
	assert.NotContains(t, out.String(), "Done at")
}

// TestRunOnlySingleStep verifies the single-step path used by the
// validate and download subcommands.
func TestRunOnlySingleStep(t *testing.T) {
	p, out := newTestPipeline(t, false, "exit 0", "exit 5")

	rec, err := p.RunOnly(context.Background(), model.StepValidate)
	require.NoError(t, err)
	require.Len(t, rec.Steps, 1)
	assert.True(t, rec.Steps[0].Succeeded())
	assert.Contains(t, out.String(), "Starting validation at")

	out.Reset()

	rec, err = p.RunOnly(context.Background(), model.StepDownload)
	requireStepFailure(t, err)
	assert.Equal(t, 1, rec.ExitCode)
	assert.Contains(t, out.String(), "Download script exited with error code 5")
}
