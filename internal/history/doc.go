// Package history persists pipeline run records in an embedded sqlite
// database.
//
// History is strictly best-effort observability: a failure to open the
// store or record a run must never change the outcome or exit status of
// the run itself. The CLI layer enforces this by logging store errors to
// stderr and carrying on.
package history
