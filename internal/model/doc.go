// Package model defines the domain types and value objects for the
// tilerun CLI.
//
// This package contains pure data structures with no external dependencies.
// The central entities are StepResult (the typed outcome of one external
// program invocation) and RunRecord (one full orchestrated pipeline run,
// as recorded by the history store).
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
