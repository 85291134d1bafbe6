package engine

import (
	"context"
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/book-expert/logger"

	"github.com/book-expert/voice-agent/internal/audio"
	"github.com/book-expert/voice-agent/internal/core"
	"github.com/book-expert/voice-agent/internal/model/zonos"
	"github.com/book-expert/voice-agent/internal/voicestore"
)

// ZonosOptions carries the per-deployment Zonos settings.
type ZonosOptions struct {
	// Language is the conditioning language code (e.g. "en-us").
	Language string
}

// zonosBackend adapts the Zonos runtime to the engine contract. Voice
// identity is a serialized speaker embedding: stored per clone, held in
// the default slot for unspecified voices, or computed transiently when a
// request carries raw reference audio.
type zonosBackend struct {
	client *zonos.Client
	store  *voicestore.Store
	opts   ZonosOptions
}

// NewZonos builds an engine around the Zonos backend.
func NewZonos(
	client *zonos.Client,
	store *voicestore.Store,
	opts ZonosOptions,
	tempDir string,
	log *logger.Logger,
) *Engine {
	return &Engine{
		model: core.ModelZonos,
		backend: &zonosBackend{
			client: client,
			store:  store,
			opts:   opts,
		},
		tempDir: tempDir,
		log:     log,
	}
}

// synthesize runs one forward pass over the full text (no chunking) and
// returns the waveform at the runtime's native sample rate.
func (b *zonosBackend) synthesize(
	ctx context.Context,
	req core.SynthesisRequest,
) (*gaudio.IntBuffer, error) {
	embedding, err := b.resolveEmbedding(ctx, req)
	if err != nil {
		return nil, err
	}

	wavData, err := b.client.Generate(ctx, zonos.GenerateRequest{
		Text:             req.Text,
		Language:         b.opts.Language,
		SpeakerEmbedding: zonos.EncodeEmbedding(embedding),
		Speed:            req.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSynthesis, err)
	}

	buf, decodeErr := audio.DecodeWAV(wavData)
	if decodeErr != nil {
		return nil, fmt.Errorf(
			"%w: runtime returned undecodable audio: %w",
			core.ErrSynthesis, decodeErr,
		)
	}

	return buf, nil
}

// resolveEmbedding picks the speaker embedding for a request. Priority:
// raw reference audio (transient embedding, never persisted), then an
// explicit voice identifier, then the default slot.
func (b *zonosBackend) resolveEmbedding(
	ctx context.Context,
	req core.SynthesisRequest,
) ([]byte, error) {
	if req.ReferenceAudioPath != "" {
		return b.embedFromFile(ctx, req.ReferenceAudioPath)
	}

	if req.Voice != "" {
		record, err := b.store.Resolve(core.ModelZonos, req.Voice)
		if err != nil {
			return nil, err
		}

		return readEmbedding(record.EmbeddingPath)
	}

	defaultPath, err := b.store.DefaultEmbeddingPath()
	if err != nil {
		return nil, err
	}

	return readEmbedding(defaultPath)
}

// embedFromFile mixes the reference audio down to mono and asks the
// runtime for a speaker embedding.
func (b *zonosBackend) embedFromFile(ctx context.Context, path string) ([]byte, error) {
	monoWAV, err := monoWAVFromFile(path)
	if err != nil {
		return nil, err
	}

	embedding, embedErr := b.client.EmbedSpeaker(ctx, monoWAV)
	if embedErr != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingExtraction, embedErr)
	}

	return embedding, nil
}

// clone extracts a speaker embedding from the sample and persists it,
// together with a mono reference copy of the audio. MakeDefault
// additionally promotes the clone to the default slot.
func (b *zonosBackend) clone(ctx context.Context, req core.CloneRequest) (string, error) {
	monoWAV, err := monoWAVFromFile(req.SamplePath)
	if err != nil {
		return "", err
	}

	embedding, embedErr := b.client.EmbedSpeaker(ctx, monoWAV)
	if embedErr != nil {
		return "", fmt.Errorf("%w: %w", core.ErrEmbeddingExtraction, embedErr)
	}

	voiceID := voicestore.DeriveVoiceID(core.ModelZonos, req.SamplePath, req.VoiceID)

	_, putErr := b.store.PutEmbedding(voiceID, embedding, monoWAV, req.MakeDefault)
	if putErr != nil {
		return "", putErr
	}

	return voiceID, nil
}

// listVoices reports the conditionally present "default" preset and the
// valid cloned embeddings.
func (b *zonosBackend) listVoices() (core.VoiceList, error) {
	cloned, err := b.store.ListCloned(core.ModelZonos)
	if err != nil {
		return core.VoiceList{Preset: nil, Cloned: nil}, err
	}

	preset := []string{}
	if b.store.HasDefault() {
		preset = append(preset, "default")
	}

	return core.VoiceList{Preset: preset, Cloned: cloned}, nil
}

// monoWAVFromFile decodes an audio sample, mixes it down to mono at its
// source rate, and re-encodes it for the runtime.
func monoWAVFromFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio sample %q: %w", path, err)
	}

	buf, decodeErr := audio.DecodeWAV(data)
	if decodeErr != nil {
		return nil, decodeErr
	}

	return audio.EncodeWAV(audio.MixdownMono(buf))
}

func readEmbedding(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read speaker embedding %q: %w", path, err)
	}

	return data, nil
}
