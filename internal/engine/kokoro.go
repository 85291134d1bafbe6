package engine

import (
	"context"
	"fmt"
	"os"
	"slices"

	gaudio "github.com/go-audio/audio"
	"github.com/book-expert/logger"

	"github.com/book-expert/voice-agent/internal/audio"
	"github.com/book-expert/voice-agent/internal/core"
	"github.com/book-expert/voice-agent/internal/model/kokoro"
	"github.com/book-expert/voice-agent/internal/text"
	"github.com/book-expert/voice-agent/internal/voicestore"
)

// KokoroPresetVoices are the built-in, non-clonable voices shipped with
// the Kokoro backend.
var KokoroPresetVoices = []string{"af_heart", "af_woh", "am_standard"}

// defaultKokoroVoice is used when a request names no voice.
const defaultKokoroVoice = "af_heart"

// KokoroOptions carries the per-deployment Kokoro settings.
type KokoroOptions struct {
	// LangCode selects the Kokoro language pipeline.
	LangCode string

	// SplitPattern is the default text boundary pattern for chunked
	// generation. Empty selects the package default.
	SplitPattern string
}

// kokoroBackend adapts the Kokoro runtime to the engine contract.
// Its clone operation is deliberately cheap: it stores a normalized
// reference sample for identity bookkeeping, and timbre transfer is left
// to the runtime's own voice conditioning at synthesis time.
type kokoroBackend struct {
	client *kokoro.Client
	store  *voicestore.Store
	opts   KokoroOptions
}

// NewKokoro builds an engine around the Kokoro backend.
func NewKokoro(
	client *kokoro.Client,
	store *voicestore.Store,
	opts KokoroOptions,
	tempDir string,
	log *logger.Logger,
) *Engine {
	return &Engine{
		model: core.ModelKokoro,
		backend: &kokoroBackend{
			client: client,
			store:  store,
			opts:   opts,
		},
		tempDir: tempDir,
		log:     log,
	}
}

// synthesize runs chunked generation: the text is split at the boundary
// pattern, each segment is synthesized independently, and the segment
// waveforms are concatenated in input order. Output is the backend's
// fixed 24 kHz mono stream.
func (b *kokoroBackend) synthesize(
	ctx context.Context,
	req core.SynthesisRequest,
) (*gaudio.IntBuffer, error) {
	voice, speakerRef, err := b.resolveVoice(req.Voice)
	if err != nil {
		return nil, err
	}

	pattern := req.SplitPattern
	if pattern == "" {
		pattern = b.opts.SplitPattern
	}

	segmenter, err := text.NewSegmenter(pattern)
	if err != nil {
		return nil, err
	}

	segments := segmenter.Segments(req.Text)
	if len(segments) == 0 {
		return nil, core.ErrTextEmpty
	}

	return b.generateSegments(ctx, segments, voice, speakerRef, req.Speed)
}

func (b *kokoroBackend) generateSegments(
	ctx context.Context,
	segments []string,
	voice, speakerRef string,
	speed float64,
) (*gaudio.IntBuffer, error) {
	var combined *gaudio.IntBuffer

	for index, segment := range segments {
		wavData, err := b.client.Generate(ctx, kokoro.Request{
			Text:           segment,
			Voice:          voice,
			SpeakerRefPath: speakerRef,
			LangCode:       b.opts.LangCode,
			Speed:          speed,
		})
		if err != nil {
			return nil, fmt.Errorf(
				"%w: segment %d/%d: %w",
				core.ErrSynthesis, index+1, len(segments), err,
			)
		}

		buf, decodeErr := audio.DecodeWAV(wavData)
		if decodeErr != nil {
			return nil, fmt.Errorf(
				"%w: segment %d/%d returned undecodable audio: %w",
				core.ErrSynthesis, index+1, len(segments), decodeErr,
			)
		}

		if combined == nil {
			combined = buf

			continue
		}

		if buf.Format.SampleRate != combined.Format.SampleRate {
			return nil, fmt.Errorf(
				"%w: segment %d/%d sample rate %d does not match %d",
				core.ErrSynthesis, index+1, len(segments),
				buf.Format.SampleRate, combined.Format.SampleRate,
			)
		}

		combined.Data = append(combined.Data, buf.Data...)
	}

	return combined, nil
}

// resolveVoice maps a voice identifier to the runtime parameters: presets
// pass through by name, cloned identifiers additionally carry the stored
// reference sample path for conditioning.
func (b *kokoroBackend) resolveVoice(voice string) (string, string, error) {
	if voice == "" {
		voice = defaultKokoroVoice
	}

	if slices.Contains(KokoroPresetVoices, voice) {
		return voice, "", nil
	}

	record, err := b.store.Resolve(core.ModelKokoro, voice)
	if err != nil {
		return "", "", err
	}

	return record.VoiceID, record.SamplePath, nil
}

// clone normalizes the sample to mono 24 kHz and stores it as the voice
// record.
func (b *kokoroBackend) clone(_ context.Context, req core.CloneRequest) (string, error) {
	data, err := os.ReadFile(req.SamplePath)
	if err != nil {
		return "", fmt.Errorf("failed to read audio sample %q: %w", req.SamplePath, err)
	}

	normalized, err := audio.NormalizeSample(data, audio.KokoroSampleRate)
	if err != nil {
		return "", err
	}

	voiceID := voicestore.DeriveVoiceID(core.ModelKokoro, req.SamplePath, req.VoiceID)

	_, putErr := b.store.PutSample(voiceID, normalized)
	if putErr != nil {
		return "", putErr
	}

	return voiceID, nil
}

func (b *kokoroBackend) listVoices() (core.VoiceList, error) {
	cloned, err := b.store.ListCloned(core.ModelKokoro)
	if err != nil {
		return core.VoiceList{Preset: nil, Cloned: nil}, err
	}

	return core.VoiceList{
		Preset: slices.Clone(KokoroPresetVoices),
		Cloned: cloned,
	}, nil
}
