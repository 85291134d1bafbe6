// Package engine implements the uniform synthesis/clone/list contract
// over the two model backends. One backend is selected when the engine is
// constructed and never changes for the instance's lifetime; running both
// models means running two engine instances side by side.
//
// The facade adds exactly two things over the adapters: uniform error
// wrapping and output materialization. It never retries, never caches,
// and performs no cleanup of the files it hands out.
package engine

import (
	"context"
	"fmt"
	"path/filepath"

	gaudio "github.com/go-audio/audio"
	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/book-expert/voice-agent/internal/audio"
	"github.com/book-expert/voice-agent/internal/core"
)

// backend is the per-model implementation of the capability set. Adapters
// return in-memory waveforms; the facade owns file materialization.
type backend interface {
	synthesize(ctx context.Context, req core.SynthesisRequest) (*gaudio.IntBuffer, error)
	clone(ctx context.Context, req core.CloneRequest) (string, error)
	listVoices() (core.VoiceList, error)
}

// Engine dispatches requests to the backend selected at construction and
// materializes results to disk. It implements core.Engine.
type Engine struct {
	model   core.ModelType
	backend backend
	tempDir string
	log     *logger.Logger
}

// ModelType reports which backend this engine drives.
func (e *Engine) ModelType() core.ModelType {
	return e.model
}

// Synthesize generates speech for the request and writes the waveform to
// the requested output path, or to a fresh temporary file when none is
// given. Every call produces a new file; identical inputs are not
// deduplicated. The caller owns the file.
func (e *Engine) Synthesize(
	ctx context.Context,
	req core.SynthesisRequest,
) (*core.AudioArtifact, error) {
	if req.Text == "" {
		return nil, core.ErrTextEmpty
	}

	waveform, err := e.backend.synthesize(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s synthesize: %w", e.model, err)
	}

	outputPath := req.OutputPath
	if outputPath == "" {
		outputPath = filepath.Join(e.tempDir, uuid.NewString()+".wav")
	}

	writeErr := audio.WriteWAVFile(outputPath, waveform)
	if writeErr != nil {
		return nil, fmt.Errorf("%s synthesize: %w", e.model, writeErr)
	}

	artifact := &core.AudioArtifact{
		Path:            outputPath,
		SampleRate:      waveform.Format.SampleRate,
		DurationSeconds: audio.DurationSeconds(waveform),
	}

	e.log.Info("Synthesized %.2fs of audio to %s (%d Hz)",
		artifact.DurationSeconds, artifact.Path, artifact.SampleRate)

	return artifact, nil
}

// Clone registers a new voice identity from an audio sample and returns
// its identifier.
func (e *Engine) Clone(ctx context.Context, req core.CloneRequest) (string, error) {
	voiceID, err := e.backend.clone(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s clone: %w", e.model, err)
	}

	e.log.Info("Cloned %s voice: %s", e.model, voiceID)

	return voiceID, nil
}

// ListVoices enumerates the preset and cloned voices of the selected
// backend.
func (e *Engine) ListVoices() (core.VoiceList, error) {
	voices, err := e.backend.listVoices()
	if err != nil {
		return core.VoiceList{Preset: nil, Cloned: nil},
			fmt.Errorf("%s list voices: %w", e.model, err)
	}

	return voices, nil
}
