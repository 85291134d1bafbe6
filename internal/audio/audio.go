// Package audio provides the WAV plumbing shared by the voice store and
// the backend adapters: decoding, encoding, mono mixdown, and resampling.
//
// The heavy signal work lives in the model runtimes; this package only
// normalizes reference samples to what a backend expects and materializes
// generated waveforms to disk.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/book-expert/voice-agent/internal/core"
)

// KokoroSampleRate is the fixed output rate of the Kokoro backend.
// Reference samples for Kokoro voice records are normalized to it.
const KokoroSampleRate = 24000

const (
	defaultBitDepth = 16
	pcmAudioFormat  = 1

	filePermissions = 0o600
	dirPermissions  = 0o750
)

// ErrEmptyWaveform indicates a decoded or generated buffer with no samples.
var ErrEmptyWaveform = errors.New("waveform contains no samples")

// DecodeWAV parses WAV data into an interleaved PCM buffer. Undecodable
// input is reported as core.ErrInvalidAudio so callers can surface it as
// a usage error rather than an internal failure.
func DecodeWAV(data []byte) (*gaudio.IntBuffer, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: not a decodable WAV stream", core.ErrInvalidAudio)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidAudio, err)
	}

	if buf == nil || len(buf.Data) == 0 {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidAudio, ErrEmptyWaveform)
	}

	return buf, nil
}

// ReadWAVFile decodes the WAV file at path.
func ReadWAVFile(path string) (*gaudio.IntBuffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file %q: %w", path, err)
	}

	return DecodeWAV(data)
}

// EncodeWAV serializes a PCM buffer to WAV bytes.
func EncodeWAV(buf *gaudio.IntBuffer) ([]byte, error) {
	if buf == nil || len(buf.Data) == 0 {
		return nil, ErrEmptyWaveform
	}

	sink := newWriteSeeker()

	encoder := wav.NewEncoder(
		sink,
		buf.Format.SampleRate,
		bitDepth(buf),
		buf.Format.NumChannels,
		pcmAudioFormat,
	)

	err := encoder.Write(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to encode waveform: %w", err)
	}

	err = encoder.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to finalize WAV stream: %w", err)
	}

	return sink.Bytes(), nil
}

// WriteWAVFile materializes a PCM buffer to a WAV file, creating parent
// directories as needed.
func WriteWAVFile(path string, buf *gaudio.IntBuffer) error {
	data, err := EncodeWAV(buf)
	if err != nil {
		return err
	}

	dirErr := os.MkdirAll(filepath.Dir(path), dirPermissions)
	if dirErr != nil {
		return fmt.Errorf("failed to create output directory: %w", dirErr)
	}

	writeErr := os.WriteFile(path, data, filePermissions)
	if writeErr != nil {
		return fmt.Errorf("failed to write audio file %q: %w", path, writeErr)
	}

	return nil
}

// MixdownMono averages interleaved channels into a single channel.
// Mono input is returned unchanged.
func MixdownMono(buf *gaudio.IntBuffer) *gaudio.IntBuffer {
	channels := buf.Format.NumChannels
	if channels <= 1 {
		return buf
	}

	frames := len(buf.Data) / channels
	mixed := make([]int, frames)

	for frame := range frames {
		sum := 0
		for channel := range channels {
			sum += buf.Data[frame*channels+channel]
		}

		mixed[frame] = sum / channels
	}

	return &gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: 1,
			SampleRate:  buf.Format.SampleRate,
		},
		Data:           mixed,
		SourceBitDepth: buf.SourceBitDepth,
	}
}

// Resample converts a mono buffer to the target rate using linear
// interpolation. Matching rates return the buffer unchanged. Callers mix
// down multi-channel audio first.
func Resample(buf *gaudio.IntBuffer, targetRate int) *gaudio.IntBuffer {
	sourceRate := buf.Format.SampleRate
	if sourceRate == targetRate || len(buf.Data) == 0 {
		return buf
	}

	step := float64(sourceRate) / float64(targetRate)
	frames := int(float64(len(buf.Data)) / step)

	resampled := make([]int, frames)
	for i := range resampled {
		position := float64(i) * step

		index := int(position)
		if index >= len(buf.Data)-1 {
			resampled[i] = buf.Data[len(buf.Data)-1]

			continue
		}

		fraction := position - float64(index)
		low := float64(buf.Data[index])
		high := float64(buf.Data[index+1])
		resampled[i] = int(low + (high-low)*fraction)
	}

	return &gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: 1,
			SampleRate:  targetRate,
		},
		Data:           resampled,
		SourceBitDepth: buf.SourceBitDepth,
	}
}

// NormalizeSample decodes WAV data and conforms it to a mono stream at
// the target rate, as required for stored voice records.
func NormalizeSample(data []byte, targetRate int) (*gaudio.IntBuffer, error) {
	buf, err := DecodeWAV(data)
	if err != nil {
		return nil, err
	}

	return Resample(MixdownMono(buf), targetRate), nil
}

// DurationSeconds reports the playback duration of a buffer.
func DurationSeconds(buf *gaudio.IntBuffer) float64 {
	if buf == nil || buf.Format == nil || buf.Format.SampleRate == 0 {
		return 0
	}

	frames := len(buf.Data) / buf.Format.NumChannels

	return float64(frames) / float64(buf.Format.SampleRate)
}

func bitDepth(buf *gaudio.IntBuffer) int {
	if buf.SourceBitDepth > 0 {
		return buf.SourceBitDepth
	}

	return defaultBitDepth
}

// writeSeeker adapts an in-memory byte slice to io.WriteSeeker, which the
// WAV encoder requires so it can patch chunk sizes into the header.
type writeSeeker struct {
	data   []byte
	offset int
}

func newWriteSeeker() *writeSeeker {
	return &writeSeeker{data: nil, offset: 0}
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	needed := w.offset + len(p)
	if needed > len(w.data) {
		grown := make([]byte, needed)
		copy(grown, w.data)
		w.data = grown
	}

	copy(w.data[w.offset:], p)
	w.offset += len(p)

	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int64

	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(w.offset) + offset
	case io.SeekEnd:
		next = int64(len(w.data)) + offset
	default:
		return 0, fmt.Errorf("unsupported whence value: %d", whence)
	}

	if next < 0 {
		return 0, errors.New("negative seek position")
	}

	w.offset = int(next)

	return next, nil
}

func (w *writeSeeker) Bytes() []byte {
	return w.data
}
