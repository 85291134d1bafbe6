// Package core defines the shared contracts for the voice-agent service:
// the model taxonomy, the request and result types that cross package
// boundaries, and the interfaces implemented by the engine, the voice
// store, and the blob store.
package core

import (
	"context"
	"fmt"
)

// ModelType identifies which TTS backend an engine instance drives.
// Exactly one backend is selected per engine at construction time.
type ModelType string

const (
	// ModelKokoro selects the Kokoro-82M backend: chunked generation,
	// fixed 24 kHz output, preset voices plus sample-backed clones.
	ModelKokoro ModelType = "kokoro"

	// ModelZonos selects the Zonos-v0.1 backend: single-shot generation
	// at the model's native rate, conditioned on speaker embeddings.
	ModelZonos ModelType = "zonos"
)

// ParseModelType validates a user-supplied model name.
func ParseModelType(name string) (ModelType, error) {
	switch ModelType(name) {
	case ModelKokoro, ModelZonos:
		return ModelType(name), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedModel, name)
	}
}

// SynthesisRequest describes a single synthesis call. The caller owns the
// value; engines do not retain it after the call returns.
type SynthesisRequest struct {
	// Text is the input to synthesize. Must be non-empty.
	Text string

	// Voice selects a preset or cloned voice identifier. Optional for
	// Zonos, which falls back to the default voice slot.
	Voice string

	// ReferenceAudioPath optionally points at a raw audio sample used to
	// condition generation for this call only (Zonos). The resulting
	// speaker embedding is transient and never persisted.
	ReferenceAudioPath string

	// Speed is the playback-speed multiplier. 1.0 is normal; zero means
	// "use the default".
	Speed float64

	// SplitPattern overrides the text boundary pattern used for chunked
	// generation (Kokoro). Empty means the configured default.
	SplitPattern string

	// OutputPath is where the generated WAV is written. Empty means a
	// fresh temporary file owned by the caller.
	OutputPath string
}

// CloneRequest describes a voice-cloning call.
type CloneRequest struct {
	// SamplePath points at the audio sample to clone from.
	SamplePath string

	// VoiceID optionally fixes the identifier for the cloned voice.
	// Empty derives one from the sample's filename stem. Re-cloning an
	// explicit identifier overwrites the prior record.
	VoiceID string

	// MakeDefault additionally promotes the clone to the default voice
	// slot. Only meaningful for Zonos.
	MakeDefault bool
}

// VoiceList groups the voices an engine can synthesize with.
type VoiceList struct {
	Preset []string `json:"preset"`
	Cloned []string `json:"cloned"`
}

// AudioArtifact describes a materialized synthesis result. The file at
// Path belongs to the caller, which is responsible for deleting it once
// consumed; the engine performs no cleanup.
type AudioArtifact struct {
	Path            string
	SampleRate      int
	DurationSeconds float64
}

// Engine is the uniform request contract over the per-model backends.
// Calls are synchronous and blocking; failures propagate immediately with
// no retries.
type Engine interface {
	ModelType() ModelType
	Synthesize(ctx context.Context, req SynthesisRequest) (*AudioArtifact, error)
	Clone(ctx context.Context, req CloneRequest) (string, error)
	ListVoices() (VoiceList, error)
}

// ObjectStore is the contract for the keyed blob store used by the job
// worker to move audio samples and results.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}
