// Package conda resolves and activates named conda environments for
// the tilerun CLI.
//
// Activation is performed without invoking conda itself: resolving the
// environment prefix and constructing the activation variables (PATH,
// CONDA_PREFIX, CONDA_DEFAULT_ENV) is sufficient for the external step
// programs to pick up the environment's interpreter and libraries, and
// avoids depending on a shell hook being installed.
//
// The activation is an explicit value (Activation.Env) handed to
// subprocess invocations, not a mutation of this process's environment.
// This keeps the orchestrator's own environment untouched and makes the
// activation testable.
package conda
