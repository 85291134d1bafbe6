// Package config_test tests the configuration structure for the
// voice-agent.
package config_test

import (
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-agent/internal/config"
)

func TestUnmarshalConfig(t *testing.T) {
	t.Parallel()

	tomlData := `
[server]
port = "9090"
cors_allowed_origins = "https://studio.example.com"

[nats]
enabled = true
url = "nats://127.0.0.1:4222"
jobs_subject = "voice.jobs"
audio_object_store_bucket = "VOICE_AUDIO"

[kokoro]
enabled = true
url = "http://127.0.0.1:8801"
lang_code = "b"
split_pattern = '\n+'
timeout_seconds = 120

[zonos]
enabled = true
url = "http://127.0.0.1:8802"
language = "ja-jp"
timeout_seconds = 240

[paths]
voices_dir = "/var/lib/voice-agent/voices"
temp_dir = "/tmp/voice-agent"
base_logs_dir = "/var/log/voice-agent"
`

	var cfg config.Config

	err := toml.Unmarshal([]byte(tomlData), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "https://studio.example.com", cfg.Server.CORSAllowedOrigins)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "voice.jobs", cfg.NATS.JobsSubject)
	assert.Equal(t, "VOICE_AUDIO", cfg.NATS.AudioObjectStoreBucket)
	assert.True(t, cfg.Kokoro.Enabled)
	assert.Equal(t, "b", cfg.Kokoro.LangCode)
	assert.Equal(t, `\n+`, cfg.Kokoro.SplitPattern)
	assert.Equal(t, 120, cfg.Kokoro.TimeoutSeconds)
	assert.Equal(t, "ja-jp", cfg.Zonos.Language)
	assert.Equal(t, 240, cfg.Zonos.TimeoutSeconds)
	assert.Equal(t, "/var/lib/voice-agent/voices", cfg.Paths.VoicesDir)
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	cfg.Kokoro.Enabled = true
	cfg.ApplyDefaults()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "a", cfg.Kokoro.LangCode)
	assert.Equal(t, 300, cfg.Kokoro.TimeoutSeconds)
	assert.Equal(t, "en-us", cfg.Zonos.Language)
	assert.Equal(t, "voices", cfg.Paths.VoicesDir)
	assert.NotEmpty(t, cfg.Paths.TempDir)
}

func TestValidate_RequiresOneModel(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	err := cfg.Validate()
	require.ErrorIs(t, err, config.ErrNoModelEnabled)

	cfg.Zonos.Enabled = true
	require.NoError(t, cfg.Validate())
}
