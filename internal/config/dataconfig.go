// dataconfig.go parses and preflights config.json, the configuration file
// consumed by the external validation and download programs.
//
// tilerun never acts on most of these values — they drive the external
// programs. The point of parsing them here is to fail fast: both programs
// terminate immediately (exit 1) when config.json is missing or lacks a
// required key, and the resulting error ("Download script exited with
// error code 1") tells the operator nothing. Preflighting the same keys
// the programs require turns that into a precise message before anything
// is spawned.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/tidwall/jsonc"

	"github.com/gmkovacs/tilerun/internal/model"
)

// Default values applied when the corresponding key is absent from
// config.json, matching the defaults the external programs use.
const (
	// DefaultMaxRetries is the per-tile retry budget of the download program.
	DefaultMaxRetries = 5

	// DefaultBaseWait is the base of the download program's exponential
	// backoff, in seconds.
	DefaultBaseWait = 2.0
)

// DataConfig is the parsed form of config.json. Only the keys the stock
// step programs (validate.py, download.py) read are modeled; unknown keys
// are silently ignored, so a config carrying extra keys still parses.
//
// The preflight is tied to that stock key set. A manifest can point the
// step commands at a program with a different config contract (for
// example one keyed on UTM_GRID_ASSET/END_DATE/GRID_SIZE); such a config
// must still carry the stock required keys to pass preflight.
//
// The field names mirror the upper-snake keys of the file because that is
// the established on-disk contract with the external programs.
type DataConfig struct {
	// CountryName selects the country whose grid tiles are processed.
	CountryName string `json:"COUNTRY_NAME"`

	// South marks a southern-hemisphere grid.
	South bool `json:"SOUTH"`

	// MaxRetries is the download program's per-tile retry budget.
	MaxRetries int `json:"MAX_RETRIES"`

	// BaseWait is the download program's backoff base, in seconds.
	BaseWait float64 `json:"BASE_WAIT"`

	// StartDate is the acquisition period start, "YYYY-MM-DD".
	// The leading four characters select the embedding year.
	StartDate string `json:"START_DATE"`

	// Res is the output resolution in meters.
	Res int `json:"RES"`

	// OutputDir is the root directory the tiles are written under.
	OutputDir string `json:"OUTPUT_DIR"`

	// GridAsset is the Earth Engine asset ID of the download grid.
	GridAsset string `json:"GRID_ASSET"`

	// Chunks maps a chunk name to the embedding band indices it covers.
	// Band index 3 becomes band name "A03".
	Chunks map[string][]int `json:"CHUNKS"`
}

// ValidationError represents a specific validation failure in config.json.
type ValidationError struct {
	// Field is the config.json key that failed validation.
	Field string

	// Message describes what's wrong with the value.
	Message string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config.json validation error: %s: %s", e.Field, e.Message)
}

// LoadDataConfig reads config.json at the given path, strips JSONC
// comments, and parses it into a DataConfig with defaults applied.
//
// Returns a CLIError with ExitConfigError if the file does not exist or
// does not parse. Completeness is checked separately via Validate so the
// check command can report every problem at once.
func LoadDataConfig(path string) (*DataConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("failed to read data config %s", path), err)
	}

	cfg := &DataConfig{
		MaxRetries: DefaultMaxRetries,
		BaseWait:   DefaultBaseWait,
	}

	// jsonc.ToJSON rewrites comments and trailing commas into valid JSON
	// in place, so the standard library parser can be used afterwards.
	if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("failed to parse data config %s", path), err)
	}

	return cfg, nil
}

// Validate performs the same completeness checks the external programs
// apply on startup. It returns a list of validation errors
// (empty list = valid configuration).
//
// Checks performed:
//   - COUNTRY_NAME, GRID_ASSET, OUTPUT_DIR must be present
//   - START_DATE must be present and long enough to carry a year
//   - RES must be positive
//   - CHUNKS must define at least one chunk, each with at least one band
func (c *DataConfig) Validate() []ValidationError {
	var errors []ValidationError

	if c.CountryName == "" {
		errors = append(errors, ValidationError{
			Field:   "COUNTRY_NAME",
			Message: "missing: the download grid cannot be selected without a country",
		})
	}
	if c.GridAsset == "" {
		errors = append(errors, ValidationError{
			Field:   "GRID_ASSET",
			Message: "missing: the Earth Engine grid asset ID is required",
		})
	}
	if c.OutputDir == "" {
		errors = append(errors, ValidationError{
			Field:   "OUTPUT_DIR",
			Message: "missing: the tile output directory is required",
		})
	}
	if len(c.StartDate) < 4 {
		errors = append(errors, ValidationError{
			Field:   "START_DATE",
			Message: fmt.Sprintf("%q does not start with a four-digit year", c.StartDate),
		})
	}
	if c.Res <= 0 {
		errors = append(errors, ValidationError{
			Field:   "RES",
			Message: fmt.Sprintf("resolution must be positive, got %d", c.Res),
		})
	}
	if len(c.Chunks) == 0 {
		errors = append(errors, ValidationError{
			Field:   "CHUNKS",
			Message: "missing: at least one chunk with band indices is required",
		})
	}
	for _, name := range c.ChunkNames() {
		if len(c.Chunks[name]) == 0 {
			errors = append(errors, ValidationError{
				Field:   "CHUNKS." + name,
				Message: "chunk has no band indices",
			})
		}
	}

	return errors
}

// Year returns the embedding year selected by START_DATE.
// Validate must have passed for the result to be meaningful.
func (c *DataConfig) Year() string {
	if len(c.StartDate) < 4 {
		return ""
	}
	return c.StartDate[:4]
}

// ChunkNames returns the chunk names in sorted order for deterministic
// iteration and output.
func (c *DataConfig) ChunkNames() []string {
	names := make([]string, 0, len(c.Chunks))
	for name := range c.Chunks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BandNames converts the band indices of the named chunk into the band
// names used by the embedding collection (index 3 → "A03").
func (c *DataConfig) BandNames(chunk string) []string {
	indices, ok := c.Chunks[chunk]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(indices))
	for _, i := range indices {
		names = append(names, fmt.Sprintf("A%02d", i))
	}
	return names
}
