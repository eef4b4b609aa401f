// Package config handles the two configuration surfaces of the tilerun CLI.
//
// The pipeline manifest (tilerun.yaml) configures the orchestrator itself:
// which runtime environment to activate, whether the validation step is
// enabled, the command lines of the external steps, and where run history
// is stored. A missing manifest is not an error: every field has a
// default, so the stock pipeline runs without any configuration file.
//
// The data configuration (config.json) belongs to the external validation
// and download programs, not to tilerun. The package still parses it so
// the orchestrator can fail fast on a broken config before spawning
// anything: both external programs terminate immediately when config.json
// is missing or incomplete, and catching that here produces a much clearer
// error. JSONC (JSON with Comments) is tolerated via github.com/tidwall/jsonc
// since the file is routinely hand-edited.
package config
