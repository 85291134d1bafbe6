// Package worker_test tests the NATS worker for the voice-agent.
package worker_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-agent/internal/core"
	"github.com/book-expert/voice-agent/internal/worker"
)

var (
	errMockDownload   = errors.New("mock download error")
	errMockSynthesize = errors.New("mock synthesize error")
)

// mockObjectStore is a mock implementation of the ObjectStore interface.
type mockObjectStore struct {
	mu sync.Mutex

	downloadShouldFail bool
	downloadedKey      string
	deletedKey         string
}

func (m *mockObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	if m.downloadShouldFail {
		return nil, errMockDownload
	}

	m.mu.Lock()
	m.downloadedKey = key
	m.mu.Unlock()

	return []byte("sample-waveform-bytes"), nil
}

func (m *mockObjectStore) Upload(_ context.Context, _ string, _ []byte) error {
	return nil
}

func (m *mockObjectStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	m.deletedKey = key
	m.mu.Unlock()

	return nil
}

// mockEngine is a controllable core.Engine implementation.
type mockEngine struct {
	mu sync.Mutex

	tempDir string

	synthesizeShouldFail bool
	cloneID              string
	voices               core.VoiceList

	lastSynthesize core.SynthesisRequest
	lastClone      core.CloneRequest
}

func (m *mockEngine) ModelType() core.ModelType {
	return core.ModelKokoro
}

func (m *mockEngine) Synthesize(
	_ context.Context,
	req core.SynthesisRequest,
) (*core.AudioArtifact, error) {
	m.mu.Lock()
	m.lastSynthesize = req
	m.mu.Unlock()

	if m.synthesizeShouldFail {
		return nil, errMockSynthesize
	}

	path := filepath.Join(m.tempDir, uuid.NewString()+".wav")

	err := os.WriteFile(path, []byte("generated-waveform"), 0o600)
	if err != nil {
		return nil, err
	}

	return &core.AudioArtifact{
		Path:            path,
		SampleRate:      24000,
		DurationSeconds: 2.5,
	}, nil
}

func (m *mockEngine) Clone(_ context.Context, req core.CloneRequest) (string, error) {
	m.mu.Lock()
	m.lastClone = req
	m.mu.Unlock()

	return m.cloneID, nil
}

func (m *mockEngine) ListVoices() (core.VoiceList, error) {
	return m.voices, nil
}

func createTestNatsClient(t *testing.T) *nats.Conn {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	t.Cleanup(func() {
		natsConnection.Close()
		natsServer.Shutdown()
	})

	return natsConnection
}

func setupTest(t *testing.T) (*mockObjectStore, *mockEngine, *nats.Conn) {
	t.Helper()

	mockStore := &mockObjectStore{
		mu:                 sync.Mutex{},
		downloadShouldFail: false,
		downloadedKey:      "",
		deletedKey:         "",
	}
	engine := &mockEngine{
		mu:                   sync.Mutex{},
		tempDir:              t.TempDir(),
		synthesizeShouldFail: false,
		cloneID:              "kokoro_bob",
		voices: core.VoiceList{
			Preset: []string{"af_heart"},
			Cloned: []string{"kokoro_bob"},
		},
		lastSynthesize: core.SynthesisRequest{},
		lastClone:      core.CloneRequest{},
	}

	natsConnection := createTestNatsClient(t)

	testLogger, err := logger.New(t.TempDir(), "worker-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = testLogger.Close() })

	workerInstance, err := worker.NewNatsWorker(
		natsConnection,
		"test_subject",
		mockStore,
		map[core.ModelType]core.Engine{core.ModelKokoro: engine},
		core.ModelKokoro,
		t.TempDir(),
		testLogger,
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errChan, "worker.Run should not error on graceful shutdown")
	})

	return mockStore, engine, natsConnection
}

func newHeader() events.EventHeader {
	return events.EventHeader{
		Timestamp:  time.Now(),
		WorkflowID: uuid.NewString(),
		EventID:    uuid.NewString(),
		UserID:     "",
		TenantID:   "",
	}
}

func requestJob(
	t *testing.T, natsConnection *nats.Conn, event *worker.JobEvent,
) *worker.JobResult {
	t.Helper()

	eventData, err := json.Marshal(event)
	require.NoError(t, err)

	replyMsg, err := natsConnection.Request("test_subject", eventData, 5*time.Second)
	require.NoError(t, err, "Request should succeed and receive a reply")

	var result worker.JobResult

	require.NoError(t, json.Unmarshal(replyMsg.Data, &result))

	return &result
}

func TestSynthesizeJob(t *testing.T) {
	t.Parallel()

	_, engine, natsConnection := setupTest(t)

	event := &worker.JobEvent{}
	event.Header = newHeader()
	event.Operation = worker.OperationSynthesize
	event.Text = "Hello from the queue."
	event.Voice = "af_heart"
	event.Speed = 1.1

	result := requestJob(t, natsConnection, event)

	require.Empty(t, result.Error)
	assert.Equal(t, event.Header.WorkflowID, result.Header.WorkflowID)
	assert.Equal(t, "audio/wav", result.ContentType)
	assert.Equal(t, 24000, result.SampleRate)
	assert.InDelta(t, 2.5, result.DurationSeconds, 0.0001)

	audioData, err := base64.StdEncoding.DecodeString(result.AudioBase64)
	require.NoError(t, err)
	assert.Equal(t, []byte("generated-waveform"), audioData)

	engine.mu.Lock()
	defer engine.mu.Unlock()

	assert.Equal(t, "Hello from the queue.", engine.lastSynthesize.Text)
	assert.Equal(t, "af_heart", engine.lastSynthesize.Voice)
}

func TestCloneJob(t *testing.T) {
	t.Parallel()

	mockStore, engine, natsConnection := setupTest(t)

	event := &worker.JobEvent{}
	event.Header = newHeader()
	event.Operation = worker.OperationClone
	event.AudioKey = "bob-sample.wav"
	event.MakeDefault = true

	result := requestJob(t, natsConnection, event)

	require.Empty(t, result.Error)
	assert.Equal(t, "kokoro_bob", result.VoiceID)

	mockStore.mu.Lock()
	assert.Equal(t, "bob-sample.wav", mockStore.downloadedKey)
	assert.Equal(t, "bob-sample.wav", mockStore.deletedKey, "consumed sample must be dropped")
	mockStore.mu.Unlock()

	engine.mu.Lock()
	defer engine.mu.Unlock()

	assert.True(t, engine.lastClone.MakeDefault)
	assert.NotEmpty(t, engine.lastClone.SamplePath)
}

func TestSynthesizeWithCloneJob(t *testing.T) {
	t.Parallel()

	_, engine, natsConnection := setupTest(t)
	engine.cloneID = "kokoro_carol"

	event := &worker.JobEvent{}
	event.Header = newHeader()
	event.Operation = worker.OperationSynthesizeWithClone
	event.AudioKey = "carol-sample.wav"
	event.Text = "Read this in my voice."

	result := requestJob(t, natsConnection, event)

	require.Empty(t, result.Error)
	assert.Equal(t, "kokoro_carol", result.VoiceID)
	assert.NotEmpty(t, result.AudioBase64)

	engine.mu.Lock()
	defer engine.mu.Unlock()

	assert.Equal(t, "kokoro_carol", engine.lastSynthesize.Voice)
}

func TestListVoicesJob(t *testing.T) {
	t.Parallel()

	_, _, natsConnection := setupTest(t)

	event := &worker.JobEvent{}
	event.Header = newHeader()
	event.Operation = worker.OperationListVoices

	result := requestJob(t, natsConnection, event)

	require.Empty(t, result.Error)
	require.NotNil(t, result.Voices)
	assert.Equal(t, []string{"af_heart"}, result.Voices.Preset)
	assert.Equal(t, []string{"kokoro_bob"}, result.Voices.Cloned)
}

func TestUnknownOperationJob(t *testing.T) {
	t.Parallel()

	_, _, natsConnection := setupTest(t)

	event := &worker.JobEvent{}
	event.Header = newHeader()
	event.Operation = "transcribe"

	result := requestJob(t, natsConnection, event)

	assert.Contains(t, result.Error, "unknown operation")
}

func TestCloneJob_MissingAudioKey(t *testing.T) {
	t.Parallel()

	_, _, natsConnection := setupTest(t)

	event := &worker.JobEvent{}
	event.Header = newHeader()
	event.Operation = worker.OperationClone

	result := requestJob(t, natsConnection, event)

	assert.Contains(t, result.Error, "audio_key cannot be empty")
}

func TestSynthesizeJob_Failure(t *testing.T) {
	t.Parallel()

	_, engine, natsConnection := setupTest(t)
	engine.synthesizeShouldFail = true

	event := &worker.JobEvent{}
	event.Header = newHeader()
	event.Operation = worker.OperationSynthesize
	event.Text = "this will fail"

	result := requestJob(t, natsConnection, event)

	assert.Contains(t, result.Error, "mock synthesize error")
	assert.Empty(t, result.AudioBase64)
}
