package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gmkovacs/tilerun/internal/model"
)

// TestFormatStepsSummary verifies the compact step summary used by the
// history table.
func TestFormatStepsSummary(t *testing.T) {
	tests := []struct {
		name  string
		steps []model.StepResult
		want  string
	}{
		{
			name:  "no steps",
			steps: nil,
			want:  "-",
		},
		{
			name: "default run",
			steps: []model.StepResult{
				{Name: model.StepValidate, Status: model.StatusSkipped, ExitCode: -1},
				{Name: model.StepDownload, Status: model.StatusSucceeded, ExitCode: 0},
			},
			want: "validate:skipped download:0",
		},
		{
			name: "failed download",
			steps: []model.StepResult{
				{Name: model.StepValidate, Status: model.StatusSkipped, ExitCode: -1},
				{Name: model.StepDownload, Status: model.StatusFailed, ExitCode: 2},
			},
			want: "validate:skipped download:2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatStepsSummary(tt.steps))
		})
	}
}

// TestShortRunID verifies UUID truncation for table display.
func TestShortRunID(t *testing.T) {
	assert.Equal(t, "1b9d6bcd", shortRunID("1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed"))

	// IDs without a dash are shown as-is.
	assert.Equal(t, "abcdef", shortRunID("abcdef"))
}
