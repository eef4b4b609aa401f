// Package model defines the domain types for the tilerun CLI.
//
// All entities in this package represent the pipeline-run contract: each
// external program invocation produces a typed StepResult, and a full
// orchestrated run aggregates those results into a RunRecord. These types
// are used throughout the application for passing data between components.
//
// Key design decision: the exit status of a subprocess is data, not an
// error. A step that runs and returns a non-zero status yields a valid
// StepResult; errors are reserved for invocations that could not be
// performed at all (missing binary, unreachable daemon, bad config).
package model

import (
	"fmt"
	"strings"
	"time"
)

// StepName identifies one of the pipeline's external steps.
// The pipeline is a fixed two-step sequence: validation, then download.
type StepName string

const (
	// StepValidate is the validation step. It invokes the external
	// validation program, which checks downloaded data files and removes
	// invalid ones. The step is disabled by default (runValidation flag
	// in the manifest).
	StepValidate StepName = "validate"

	// StepDownload is the download step. It invokes the external download
	// program, which fetches missing data artifacts.
	StepDownload StepName = "download"
)

// String returns the string representation of StepName.
func (n StepName) String() string {
	return string(n)
}

// IsValid checks whether the StepName value is one of the predefined steps.
func (n StepName) IsValid() bool {
	switch n {
	case StepValidate, StepDownload:
		return true
	default:
		return false
	}
}

// DisplayName returns the capitalized human-readable name of the step,
// as used in status lines ("Validation script exited with error code 3").
func (n StepName) DisplayName() string {
	switch n {
	case StepValidate:
		return "Validation"
	case StepDownload:
		return "Download"
	default:
		return string(n)
	}
}

// ParseStepName converts a string to a StepName.
// Returns an error if the string does not match any valid step.
func ParseStepName(s string) (StepName, error) {
	name := StepName(strings.ToLower(s))
	if !name.IsValid() {
		return "", fmt.Errorf("invalid step name: %q (valid: validate, download)", s)
	}
	return name, nil
}

// StepStatus represents the outcome of a single pipeline step.
// The transitions are:
//
//	Pending → Succeeded | Failed
//	Pending → Skipped (step disabled, or an earlier step failed)
type StepStatus string

const (
	// StatusPending indicates the step has not been invoked yet.
	StatusPending StepStatus = "pending"

	// StatusSucceeded indicates the step's subprocess exited with status 0.
	StatusSucceeded StepStatus = "succeeded"

	// StatusFailed indicates the step's subprocess exited with a non-zero
	// status, or could not be started at all.
	StatusFailed StepStatus = "failed"

	// StatusSkipped indicates the step was never invoked — either it is
	// disabled by configuration, or a preceding step failed and the
	// pipeline stopped before reaching it.
	StatusSkipped StepStatus = "skipped"
)

// String returns the string representation of StepStatus.
func (s StepStatus) String() string {
	return string(s)
}

// IsValid checks whether the StepStatus value is one of the
// predefined valid states.
func (s StepStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusSucceeded, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// ParseStepStatus converts a string to a StepStatus.
// Returns an error if the string does not match any valid status.
func ParseStepStatus(s string) (StepStatus, error) {
	status := StepStatus(strings.ToLower(s))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid step status: %q (valid: pending, succeeded, failed, skipped)", s)
	}
	return status, nil
}

// StepResult is the typed outcome of invoking one external program.
// The exit status is captured as an integer and gated on by the
// pipeline, never discarded.
type StepResult struct {
	// Name identifies which pipeline step produced this result.
	Name StepName `json:"name"`

	// Status is the step outcome (succeeded, failed, skipped).
	Status StepStatus `json:"status"`

	// ExitCode is the integer exit status of the subprocess.
	// 0 means success. -1 indicates the subprocess never ran
	// (skipped, or it could not be started).
	ExitCode int `json:"exitCode"`

	// StartedAt is when the subprocess was spawned.
	// Zero for skipped steps.
	StartedAt time.Time `json:"startedAt,omitempty"`

	// Duration is how long the subprocess ran before terminating.
	// Zero for skipped steps.
	Duration time.Duration `json:"duration,omitempty"`
}

// Succeeded reports whether the step ran and exited with status 0.
func (r StepResult) Succeeded() bool {
	return r.Status == StatusSucceeded && r.ExitCode == 0
}

// String returns a human-readable representation of the step result.
// Format: "validate:0" for executed steps, "validate:skipped" otherwise.
func (r StepResult) String() string {
	if r.Status == StatusSkipped || r.Status == StatusPending {
		return fmt.Sprintf("%s:%s", r.Name, r.Status)
	}
	return fmt.Sprintf("%s:%d", r.Name, r.ExitCode)
}

// RunRecord represents one full orchestrated pipeline run. This is the
// primary aggregate entity in the domain: it is built up in memory while
// the pipeline executes and persisted to the history store afterwards.
type RunRecord struct {
	// ID is the unique identifier for this run (a UUID).
	ID string `json:"id"`

	// StartedAt is when the orchestrator printed its start line,
	// before any subprocess was invoked.
	StartedAt time.Time `json:"startedAt"`

	// FinishedAt is when the pipeline terminated, successfully or not.
	FinishedAt time.Time `json:"finishedAt"`

	// ExitCode is the orchestrator's own exit status for this run:
	// 0 when every executed step succeeded, 1 when a step failed.
	ExitCode int `json:"exitCode"`

	// Steps holds the per-step results in pipeline order
	// (validation first, then download).
	Steps []StepResult `json:"steps"`
}

// Duration returns the total wall-clock duration of the run.
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ExitCode defines standard CLI exit codes. These codes allow scripts and
// CI systems to programmatically determine the outcome of a command.
//
// The orchestration contract is deliberately narrow: a pipeline step that
// returns a non-zero status always surfaces as ExitStepFailed (1). The
// remaining codes cover problems detected before any step is invoked.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitStepFailed indicates a pipeline step (validation or download)
	// returned a non-zero exit status. This is also the generic error
	// code for unclassified failures.
	ExitStepFailed ExitCode = 1

	// ExitConfigError indicates the pipeline manifest or the data
	// configuration file could not be loaded or failed validation.
	ExitConfigError ExitCode = 2

	// ExitEnvError indicates the runtime environment could not be
	// activated: the conda environment was not found, or the Docker
	// daemon/image is unavailable.
	ExitEnvError ExitCode = 3
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
// This follows Go's error wrapping convention introduced in Go 1.13.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
