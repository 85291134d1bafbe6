// Package engine_test tests the engine facade and both backend adapters
// against stub model runtimes.
package engine_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	gaudio "github.com/go-audio/audio"
	"github.com/book-expert/logger"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-agent/internal/audio"
	"github.com/book-expert/voice-agent/internal/voicestore"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "engine-test.log")
	require.NoError(t, err)

	return testLogger
}

func newTestStore(t *testing.T) *voicestore.Store {
	t.Helper()

	store, err := voicestore.New(filepath.Join(t.TempDir(), "voices"), newTestLogger(t))
	require.NoError(t, err)

	return store
}

// toneWAV produces encodable WAV bytes holding a short test tone.
func toneWAV(t *testing.T, sampleRate, channels, frames int) []byte {
	t.Helper()

	data := make([]int, frames*channels)
	for frame := range frames {
		value := int(6000 * math.Sin(2*math.Pi*330*float64(frame)/float64(sampleRate)))
		for channel := range channels {
			data[frame*channels+channel] = value
		}
	}

	wavData, err := audio.EncodeWAV(&gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	})
	require.NoError(t, err)

	return wavData
}

// writeSampleFile materializes a WAV fixture with the given file name.
func writeSampleFile(t *testing.T, name string, wavData []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, wavData, 0o600))

	return path
}
