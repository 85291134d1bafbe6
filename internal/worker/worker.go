// Package worker provides a NATS worker that processes voice jobs:
// synthesis, cloning, and voice listing over the same engines the HTTP
// API uses. Audio flows through the JetStream object store; results are
// replied inline with base64-encoded waveforms.
package worker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/voice-agent/internal/core"
)

const handleMessageTimeout = 5 * time.Minute

// Operations accepted in a job event.
const (
	OperationSynthesize          = "synthesize"
	OperationClone               = "clone"
	OperationSynthesizeWithClone = "synthesize_with_clone"
	OperationListVoices          = "list_voices"
)

var (
	// ErrUnknownOperation indicates a job with an operation the worker
	// does not implement.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrAudioKeyEmpty indicates a clone job without a reference sample
	// in the object store.
	ErrAudioKeyEmpty = errors.New("audio_key cannot be empty for clone jobs")
	// ErrModelNotEnabled indicates a job for a model the worker was not
	// started with.
	ErrModelNotEnabled = errors.New("model is not enabled on this worker")
)

// JobEvent is the envelope a producer publishes to request voice work.
type JobEvent struct {
	Header events.EventHeader `json:"header"`

	// Operation selects what to do: synthesize, clone,
	// synthesize_with_clone, or list_voices.
	Operation string `json:"operation"`

	// Model selects the backend. Empty means the worker's default.
	Model string `json:"model,omitempty"`

	Text        string  `json:"text,omitempty"`
	Voice       string  `json:"voice,omitempty"`
	Speed       float64 `json:"speed,omitempty"`
	VoiceID     string  `json:"voice_id,omitempty"`
	MakeDefault bool    `json:"make_default,omitempty"`

	// AudioKey names the reference sample in the object store for clone
	// operations. The worker deletes the object once consumed.
	AudioKey string `json:"audio_key,omitempty"`
}

// JobResult is the reply envelope. Exactly one of the payload groups is
// populated; Error is set when the job failed.
type JobResult struct {
	Header events.EventHeader `json:"header"`

	AudioBase64     string  `json:"audio_base64,omitempty"`
	ContentType     string  `json:"content_type,omitempty"`
	SampleRate      int     `json:"sample_rate,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`

	VoiceID string          `json:"voice_id,omitempty"`
	Voices  *core.VoiceList `json:"voices,omitempty"`

	Error string `json:"error,omitempty"`
}

// NatsWorker listens for voice jobs on a NATS subject and processes them.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	store          core.ObjectStore
	engines        map[core.ModelType]core.Engine
	defaultModel   core.ModelType
	tempDir        string
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	store core.ObjectStore,
	engines map[core.ModelType]core.Engine,
	defaultModel core.ModelType,
	tempDir string,
	log *logger.Logger,
) (*NatsWorker, error) {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		store:          store,
		engines:        engines,
		defaultModel:   defaultModel,
		tempDir:        tempDir,
		log:            log,
	}, nil
}

// Run starts the worker and begins listening for messages.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	var event JobEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		w.log.Error("Failed to unmarshal job event: %v", err)

		return
	}

	result := w.processJob(ctx, &event)
	result.Header = event.Header

	replyErr := w.publishResult(msg, result)
	if replyErr != nil {
		w.log.Error(
			"Failed to publish result for workflow %s: %v",
			event.Header.WorkflowID, replyErr,
		)
	}
}

// processJob dispatches on the operation. Failures become an error field
// on the result rather than a dropped reply.
func (w *NatsWorker) processJob(ctx context.Context, event *JobEvent) *JobResult {
	var (
		result *JobResult
		err    error
	)

	switch event.Operation {
	case OperationSynthesize:
		result, err = w.synthesize(ctx, event)
	case OperationClone:
		result, err = w.clone(ctx, event)
	case OperationSynthesizeWithClone:
		result, err = w.synthesizeWithClone(ctx, event)
	case OperationListVoices:
		result, err = w.listVoices(event)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownOperation, event.Operation)
	}

	if err != nil {
		w.log.Error(
			"Job %s failed for workflow %s: %v",
			event.Operation, event.Header.WorkflowID, err,
		)

		var failed JobResult

		failed.Error = err.Error()

		return &failed
	}

	return result
}

func (w *NatsWorker) synthesize(ctx context.Context, event *JobEvent) (*JobResult, error) {
	eng, err := w.engineFor(event.Model)
	if err != nil {
		return nil, err
	}

	return w.runSynthesis(ctx, eng, core.SynthesisRequest{
		Text:               event.Text,
		Voice:              event.Voice,
		ReferenceAudioPath: "",
		Speed:              event.Speed,
		SplitPattern:       "",
		OutputPath:         "",
	})
}

func (w *NatsWorker) clone(ctx context.Context, event *JobEvent) (*JobResult, error) {
	eng, err := w.engineFor(event.Model)
	if err != nil {
		return nil, err
	}

	voiceID, err := w.runClone(ctx, eng, event)
	if err != nil {
		return nil, err
	}

	var result JobResult

	result.VoiceID = voiceID

	return &result, nil
}

func (w *NatsWorker) synthesizeWithClone(
	ctx context.Context,
	event *JobEvent,
) (*JobResult, error) {
	eng, err := w.engineFor(event.Model)
	if err != nil {
		return nil, err
	}

	voiceID, err := w.runClone(ctx, eng, event)
	if err != nil {
		return nil, err
	}

	result, err := w.runSynthesis(ctx, eng, core.SynthesisRequest{
		Text:               event.Text,
		Voice:              voiceID,
		ReferenceAudioPath: "",
		Speed:              event.Speed,
		SplitPattern:       "",
		OutputPath:         "",
	})
	if err != nil {
		return nil, err
	}

	result.VoiceID = voiceID

	return result, nil
}

func (w *NatsWorker) listVoices(event *JobEvent) (*JobResult, error) {
	eng, err := w.engineFor(event.Model)
	if err != nil {
		return nil, err
	}

	voices, err := eng.ListVoices()
	if err != nil {
		return nil, err
	}

	var result JobResult

	result.Voices = &voices

	return &result, nil
}

// runClone downloads the reference sample, registers the voice, and
// drops the consumed object.
func (w *NatsWorker) runClone(
	ctx context.Context,
	eng core.Engine,
	event *JobEvent,
) (string, error) {
	if event.AudioKey == "" {
		return "", ErrAudioKeyEmpty
	}

	sampleData, err := w.store.Download(ctx, event.AudioKey)
	if err != nil {
		return "", fmt.Errorf(
			"failed to download sample for key '%s': %w", event.AudioKey, err,
		)
	}

	samplePath := filepath.Join(w.tempDir, uuid.NewString()+"_"+event.AudioKey)

	err = os.WriteFile(samplePath, sampleData, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to write sample to temp file: %w", err)
	}

	defer func() {
		removeErr := os.Remove(samplePath)
		if removeErr != nil {
			w.log.Warn("Failed to remove temp sample '%s': %v", samplePath, removeErr)
		}
	}()

	voiceID, err := eng.Clone(ctx, core.CloneRequest{
		SamplePath:  samplePath,
		VoiceID:     event.VoiceID,
		MakeDefault: event.MakeDefault,
	})
	if err != nil {
		return "", err
	}

	deleteErr := w.store.Delete(ctx, event.AudioKey)
	if deleteErr != nil {
		w.log.Warn(
			"Failed to delete consumed sample '%s': %v", event.AudioKey, deleteErr,
		)
	}

	return voiceID, nil
}

// runSynthesis generates speech and folds the waveform into the reply as
// base64.
func (w *NatsWorker) runSynthesis(
	ctx context.Context,
	eng core.Engine,
	req core.SynthesisRequest,
) (*JobResult, error) {
	artifact, err := eng.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}

	defer func() {
		removeErr := os.Remove(artifact.Path)
		if removeErr != nil {
			w.log.Warn(
				"Failed to remove artifact '%s': %v", artifact.Path, removeErr,
			)
		}
	}()

	audioData, err := os.ReadFile(artifact.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	var result JobResult

	result.AudioBase64 = base64.StdEncoding.EncodeToString(audioData)
	result.ContentType = "audio/wav"
	result.SampleRate = artifact.SampleRate
	result.DurationSeconds = artifact.DurationSeconds

	return &result, nil
}

func (w *NatsWorker) publishResult(msg *nats.Msg, result *JobResult) error {
	replyData, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal job result: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish job result: %w", err)
	}

	return nil
}

func (w *NatsWorker) engineFor(name string) (core.Engine, error) {
	model := w.defaultModel

	if name != "" {
		parsed, err := core.ParseModelType(name)
		if err != nil {
			return nil, err
		}

		model = parsed
	}

	eng, ok := w.engines[model]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotEnabled, model)
	}

	return eng, nil
}
