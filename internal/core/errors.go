package core

import "errors"

// Failure taxonomy shared by every surface. Engines wrap these sentinels
// with contextual detail via %w; the API, CLI, and worker surfaces map
// them to HTTP statuses, exit codes, and job error fields respectively.
var (
	// ErrVoiceNotFound indicates an identifier that resolves to no valid
	// voice record. Recoverable; surfaced as a client error.
	ErrVoiceNotFound = errors.New("voice not found")

	// ErrInvalidAudio indicates a sample that could not be decoded.
	ErrInvalidAudio = errors.New("invalid audio sample")

	// ErrEmbeddingExtraction indicates the speaker-embedding model failed
	// on a sample that decoded fine.
	ErrEmbeddingExtraction = errors.New("speaker embedding extraction failed")

	// ErrSynthesis indicates an underlying model failure. Surfaced as a
	// server error, never retried.
	ErrSynthesis = errors.New("speech synthesis failed")

	// ErrNoVoiceAvailable indicates a Zonos synthesis with no reference
	// audio, no voice identifier, and no default voice slot.
	ErrNoVoiceAvailable = errors.New("no reference audio given and no default voice exists")

	// ErrUnsupportedModel indicates a model name outside the known set.
	ErrUnsupportedModel = errors.New("unsupported model type")

	// ErrTextEmpty indicates a synthesis request without text.
	ErrTextEmpty = errors.New("text cannot be empty")
)
