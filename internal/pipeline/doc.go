// Package pipeline implements the run orchestrator of the tilerun CLI.
//
// The orchestrator sequences the external steps (validation, download) as
// blocking subprocess invocations, translating their exit statuses into
// its own termination behavior. Execution is strictly sequential: each
// step is a hard gate on the next, with no retries, no timeouts, and no
// concurrency.
//
// Subprocess invocation is abstracted behind the Runner interface so the
// same orchestration drives both environment providers: LocalRunner runs
// the step with a conda activation environment, DockerRunner runs it
// inside the configured container image.
package pipeline
