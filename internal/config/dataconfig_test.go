package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmkovacs/tilerun/internal/model"
)

// writeDataConfig writes a config.json fixture and returns its path.
func writeDataConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// validDataConfig is a complete config.json in the shape the external
// programs consume, including JSONC comments and a trailing comma to
// exercise the jsonc tolerance.
const validDataConfig = `{
	// country grid selection
	"COUNTRY_NAME": "hungary",
	"SOUTH": false,
	"START_DATE": "2024-01-01",
	"RES": 10,
	"OUTPUT_DIR": "/data/tiles",
	"GRID_ASSET": "projects/ee-gmkovacs/assets/hungary_grid",
	"CHUNKS": {
		"c1": [0, 1, 2],
		"c2": [3, 4],
	},
}`

// TestLoadDataConfigValid verifies parsing of a complete JSONC config
// with defaults applied for the optional retry keys.
func TestLoadDataConfigValid(t *testing.T) {
	path := writeDataConfig(t, validDataConfig)

	cfg, err := LoadDataConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "hungary", cfg.CountryName)
	assert.Equal(t, "2024", cfg.Year())
	assert.Equal(t, 10, cfg.Res)
	assert.Equal(t, []string{"c1", "c2"}, cfg.ChunkNames())

	// MAX_RETRIES and BASE_WAIT are absent — defaults apply.
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultBaseWait, cfg.BaseWait)

	assert.Empty(t, cfg.Validate())
}

// TestLoadDataConfigOverridesRetries verifies explicit retry settings
// take precedence over defaults.
func TestLoadDataConfigOverridesRetries(t *testing.T) {
	path := writeDataConfig(t, `{
		"COUNTRY_NAME": "hungary",
		"START_DATE": "2024-01-01",
		"RES": 10,
		"OUTPUT_DIR": "/data/tiles",
		"GRID_ASSET": "projects/x/assets/grid",
		"MAX_RETRIES": 2,
		"BASE_WAIT": 0.5,
		"CHUNKS": {"c1": [0]}
	}`)

	cfg, err := LoadDataConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 0.5, cfg.BaseWait)
}

// TestLoadDataConfigMissingFile verifies the missing-file error carries
// the config exit code.
func TestLoadDataConfigMissingFile(t *testing.T) {
	_, err := LoadDataConfig(filepath.Join(t.TempDir(), "config.json"))
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitConfigError, cliErr.Code)
}

// TestLoadDataConfigMalformed verifies a non-JSON payload fails to parse.
func TestLoadDataConfigMalformed(t *testing.T) {
	path := writeDataConfig(t, "COUNTRY_NAME=hungary")

	_, err := LoadDataConfig(path)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitConfigError, cliErr.Code)
}

// TestDataConfigValidate verifies that every completeness problem is
// reported, not just the first — the check command shows them all at once.
func TestDataConfigValidate(t *testing.T) {
	cfg := &DataConfig{
		// Everything required is missing or invalid.
		StartDate: "24",
		Res:       0,
	}

	issues := cfg.Validate()
	require.NotEmpty(t, issues)

	fields := make([]string, 0, len(issues))
	for _, issue := range issues {
		fields = append(fields, issue.Field)
	}
	assert.Contains(t, fields, "COUNTRY_NAME")
	assert.Contains(t, fields, "GRID_ASSET")
	assert.Contains(t, fields, "OUTPUT_DIR")
	assert.Contains(t, fields, "START_DATE")
	assert.Contains(t, fields, "RES")
	assert.Contains(t, fields, "CHUNKS")
}

// TestDataConfigValidateEmptyChunk verifies a chunk with no band indices
// is flagged by name.
func TestDataConfigValidateEmptyChunk(t *testing.T) {
	cfg := &DataConfig{
		CountryName: "hungary",
		StartDate:   "2024-01-01",
		Res:         10,
		OutputDir:   "/data/tiles",
		GridAsset:   "projects/x/assets/grid",
		Chunks:      map[string][]int{"c1": {0, 1}, "empty": {}},
	}

	issues := cfg.Validate()
	require.Len(t, issues, 1)
	assert.Equal(t, "CHUNKS.empty", issues[0].Field)
}

// TestDataConfigBandNames verifies the index-to-band-name conversion
// ("A%02d") used by the embedding collection.
func TestDataConfigBandNames(t *testing.T) {
	cfg := &DataConfig{Chunks: map[string][]int{"c1": {0, 3, 12}}}

	assert.Equal(t, []string{"A00", "A03", "A12"}, cfg.BandNames("c1"))
	assert.Nil(t, cfg.BandNames("missing"))
}
