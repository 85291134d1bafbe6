package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-agent/internal/config"
	"github.com/book-expert/voice-agent/internal/core"
)

func TestPickModel(t *testing.T) {
	t.Parallel()

	var bothEnabled config.Config

	bothEnabled.Kokoro.Enabled = true
	bothEnabled.Zonos.Enabled = true

	var zonosOnly config.Config

	zonosOnly.Zonos.Enabled = true

	tests := []struct {
		name      string
		cfg       *config.Config
		modelFlag string
		want      core.ModelType
		wantErr   bool
	}{
		{
			name:      "defaults to kokoro when both enabled",
			cfg:       &bothEnabled,
			modelFlag: "",
			want:      core.ModelKokoro,
			wantErr:   false,
		},
		{
			name:      "defaults to zonos when kokoro disabled",
			cfg:       &zonosOnly,
			modelFlag: "",
			want:      core.ModelZonos,
			wantErr:   false,
		},
		{
			name:      "explicit model",
			cfg:       &bothEnabled,
			modelFlag: "zonos",
			want:      core.ModelZonos,
			wantErr:   false,
		},
		{
			name:      "rejects disabled model",
			cfg:       &zonosOnly,
			modelFlag: "kokoro",
			want:      "",
			wantErr:   true,
		},
		{
			name:      "rejects unknown model",
			cfg:       &bothEnabled,
			modelFlag: "whisper",
			want:      "",
			wantErr:   true,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			model, err := pickModel(testCase.cfg, testCase.modelFlag)
			if testCase.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, testCase.want, model)
		})
	}
}
