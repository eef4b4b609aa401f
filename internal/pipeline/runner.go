// runner.go implements subprocess invocation for pipeline steps.
//
// A step's exit status is data, not an error: a subprocess that runs and
// exits non-zero yields a valid StepResult with a nil error. Errors are
// reserved for invocations that never produced an exit status at all
// (program not found, fork failure, cancelled context).
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/gmkovacs/tilerun/internal/docker"
	"github.com/gmkovacs/tilerun/internal/model"
)

// Runner executes a single external pipeline step and reports its typed
// result. Implementations block until the subprocess terminates and its
// exit status is available.
type Runner interface {
	Run(ctx context.Context, name model.StepName, command string, args []string) (model.StepResult, error)
}

// LocalRunner invokes step programs directly on the host, optionally with
// an activation environment (see the conda package).
type LocalRunner struct {
	// Env is the full subprocess environment. nil means inherit the
	// orchestrator's own environment (the non-strict fallback and the
	// "none" provider).
	Env []string

	// Dir is the working directory for the subprocess. Empty means the
	// orchestrator's working directory.
	Dir string

	// Stdout and Stderr receive the subprocess output streams.
	// nil defaults to the orchestrator's own streams, so the external
	// programs' progress output renders on the console unmodified.
	Stdout io.Writer
	Stderr io.Writer
}

// Run invokes the step command and blocks until it terminates.
func (r *LocalRunner) Run(ctx context.Context, name model.StepName, command string, args []string) (model.StepResult, error) {
	return runStepProcess(ctx, name, command, args, r.Env, r.Dir, r.Stdout, r.Stderr)
}

// DockerRunner invokes step programs inside a container of the configured
// image via `docker run --rm`, with the working directory bind-mounted.
//
// The container's exit status is the step's exit status — docker run
// propagates it — so the orchestrator's gating logic is identical to the
// local case.
type DockerRunner struct {
	// Image is the environment container image reference.
	Image string

	// Dir is the host working directory, bind-mounted into the container
	// at the same path. Empty means the orchestrator's working directory.
	Dir string

	// Stdout and Stderr receive the subprocess output streams.
	// nil defaults to the orchestrator's own streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Run invokes the step command inside the environment container and
// blocks until the container terminates.
func (r *DockerRunner) Run(ctx context.Context, name model.StepName, command string, args []string) (model.StepResult, error) {
	workDir := r.Dir
	if workDir == "" {
		// The bind mount needs an absolute path even when the local case
		// would just inherit the working directory.
		cwd, err := os.Getwd()
		if err != nil {
			return model.StepResult{Name: name, Status: model.StatusFailed, ExitCode: -1},
				fmt.Errorf("failed to determine working directory: %w", err)
		}
		workDir = cwd
	}

	cmdline := append([]string{command}, args...)
	dockerArgs := docker.BuildRunArgs(r.Image, workDir, cmdline)

	// The docker CLI is invoked from the host environment; the step's
	// environment lives inside the image, so no activation env is passed.
	return runStepProcess(ctx, name, "docker", dockerArgs, nil, "", r.Stdout, r.Stderr)
}

// runStepProcess spawns one subprocess and converts its termination into a
// StepResult. This is the single choke point both runners share.
func runStepProcess(ctx context.Context, name model.StepName, bin string, args, env []string, dir string, stdout, stderr io.Writer) (model.StepResult, error) {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	// #nosec G204 — the command line comes from the operator's manifest,
	// not from untrusted input
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = env // nil inherits the current process environment
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	result := model.StepResult{
		Name:      name,
		StartedAt: time.Now(),
	}

	err := cmd.Run()
	result.Duration = time.Since(result.StartedAt)

	if err == nil {
		result.Status = model.StatusSucceeded
		result.ExitCode = 0
		return result, nil
	}

	// A non-zero exit status is a normal, gate-able outcome.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.Status = model.StatusFailed
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	// The subprocess never ran (binary not found, fork failure, ...):
	// there is no exit status to report.
	result.Status = model.StatusFailed
	result.ExitCode = -1
	return result, fmt.Errorf("failed to start %s %v: %w", bin, args, err)
}
