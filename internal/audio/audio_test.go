// Package audio_test tests the WAV plumbing helpers.
package audio_test

import (
	"math"
	"path/filepath"
	"testing"

	gaudio "github.com/go-audio/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-agent/internal/audio"
	"github.com/book-expert/voice-agent/internal/core"
)

// makeSineBuffer builds a test tone with the given shape.
func makeSineBuffer(t *testing.T, sampleRate, channels, frames int) *gaudio.IntBuffer {
	t.Helper()

	data := make([]int, frames*channels)
	for frame := range frames {
		value := int(8000 * math.Sin(2*math.Pi*440*float64(frame)/float64(sampleRate)))
		for channel := range channels {
			data[frame*channels+channel] = value
		}
	}

	return &gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	original := makeSineBuffer(t, 24000, 1, 2400)

	data, err := audio.EncodeWAV(original)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	decoded, err := audio.DecodeWAV(data)
	require.NoError(t, err)

	assert.Equal(t, 24000, decoded.Format.SampleRate)
	assert.Equal(t, 1, decoded.Format.NumChannels)
	assert.Equal(t, original.Data, decoded.Data)
}

func TestDecodeWAV_InvalidData(t *testing.T) {
	t.Parallel()

	_, err := audio.DecodeWAV([]byte("definitely not a wav stream"))
	require.Error(t, err)
	require.ErrorIs(t, err, core.ErrInvalidAudio)
}

func TestWriteAndReadWAVFile(t *testing.T) {
	t.Parallel()

	buf := makeSineBuffer(t, 44100, 2, 1000)
	path := filepath.Join(t.TempDir(), "nested", "tone.wav")

	err := audio.WriteWAVFile(path, buf)
	require.NoError(t, err)

	decoded, err := audio.ReadWAVFile(path)
	require.NoError(t, err)
	assert.Equal(t, 44100, decoded.Format.SampleRate)
	assert.Equal(t, 2, decoded.Format.NumChannels)
}

func TestMixdownMono_AveragesChannels(t *testing.T) {
	t.Parallel()

	stereo := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 2, SampleRate: 48000},
		Data:           []int{100, 300, -50, 50, 0, 0},
		SourceBitDepth: 16,
	}

	mono := audio.MixdownMono(stereo)

	assert.Equal(t, 1, mono.Format.NumChannels)
	assert.Equal(t, []int{200, 0, 0}, mono.Data)
	assert.Equal(t, 48000, mono.Format.SampleRate)
}

func TestMixdownMono_MonoPassthrough(t *testing.T) {
	t.Parallel()

	mono := makeSineBuffer(t, 24000, 1, 100)
	assert.Same(t, mono, audio.MixdownMono(mono))
}

func TestResample_HalvesRate(t *testing.T) {
	t.Parallel()

	source := makeSineBuffer(t, 48000, 1, 4800)
	resampled := audio.Resample(source, 24000)

	assert.Equal(t, 24000, resampled.Format.SampleRate)
	assert.Equal(t, 2400, len(resampled.Data))
}

func TestResample_SameRatePassthrough(t *testing.T) {
	t.Parallel()

	source := makeSineBuffer(t, 24000, 1, 240)
	assert.Same(t, source, audio.Resample(source, 24000))
}

func TestNormalizeSample(t *testing.T) {
	t.Parallel()

	stereo := makeSineBuffer(t, 48000, 2, 4800)
	data, err := audio.EncodeWAV(stereo)
	require.NoError(t, err)

	normalized, err := audio.NormalizeSample(data, audio.KokoroSampleRate)
	require.NoError(t, err)

	assert.Equal(t, 1, normalized.Format.NumChannels)
	assert.Equal(t, audio.KokoroSampleRate, normalized.Format.SampleRate)
	assert.NotEmpty(t, normalized.Data)
}

func TestDurationSeconds(t *testing.T) {
	t.Parallel()

	buf := makeSineBuffer(t, 24000, 1, 24000)
	assert.InEpsilon(t, 1.0, audio.DurationSeconds(buf), 0.001)

	stereo := makeSineBuffer(t, 48000, 2, 24000)
	assert.InEpsilon(t, 0.5, audio.DurationSeconds(stereo), 0.001)
}
