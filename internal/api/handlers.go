package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/book-expert/voice-agent/internal/core"
)

// Form field and header names used by the multipart endpoints.
const (
	formFieldAudio       = "audio"
	formFieldText        = "text"
	formFieldVoiceID     = "voice_id"
	formFieldMakeDefault = "make_default"
	formFieldSpeed       = "speed"
	formFieldModel       = "model"

	queryParamModel = "model"

	contentTypeWAV  = "audio/wav"
	contentTypeJSON = "application/json"

	headerSampleRate = "X-Sample-Rate"

	maxUploadBytes = 32 << 20
)

// ErrModelNotEnabled indicates a request for a model the service was not
// started with.
var ErrModelNotEnabled = errors.New("model is not enabled on this server")

// Handler serves the voice-agent HTTP API. It holds one engine per
// enabled model and dispatches on the request's model selector.
type Handler struct {
	engines      map[core.ModelType]core.Engine
	defaultModel core.ModelType
	tempDir      string
	log          *logger.Logger
}

// NewHandler creates a Handler over the given engines. The default model
// is used when a request omits the model selector.
func NewHandler(
	engines map[core.ModelType]core.Engine,
	defaultModel core.ModelType,
	tempDir string,
	log *logger.Logger,
) *Handler {
	return &Handler{
		engines:      engines,
		defaultModel: defaultModel,
		tempDir:      tempDir,
		log:          log,
	}
}

type synthesizeRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`
	Model string  `json:"model,omitempty"`
}

type cloneResponse struct {
	VoiceID string `json:"voice_id"`
}

type healthResponse struct {
	Status string   `json:"status"`
	Models []string `json:"models"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Health reports the service status and which models are enabled.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	models := make([]string, 0, len(h.engines))
	for model := range h.engines {
		models = append(models, string(model))
	}

	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Models: models})
}

// ListVoices enumerates the preset and cloned voices of the selected
// model.
func (h *Handler) ListVoices(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFor(r.URL.Query().Get(queryParamModel))
	if err != nil {
		h.writeError(w, err)

		return
	}

	voices, err := eng.ListVoices()
	if err != nil {
		h.writeError(w, err)

		return
	}

	h.writeJSON(w, http.StatusOK, voices)
}

// Synthesize generates speech from a JSON request body and streams the
// resulting WAV back to the caller.
func (h *Handler) Synthesize(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest

	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		h.writeStatusError(w, http.StatusBadRequest, fmt.Errorf("decode request body: %w", err))

		return
	}

	eng, err := h.engineFor(req.Model)
	if err != nil {
		h.writeError(w, err)

		return
	}

	artifact, err := eng.Synthesize(r.Context(), core.SynthesisRequest{
		Text:               req.Text,
		Voice:              req.Voice,
		ReferenceAudioPath: "",
		Speed:              req.Speed,
		SplitPattern:       "",
		OutputPath:         "",
	})
	if err != nil {
		h.writeError(w, err)

		return
	}

	h.serveArtifact(w, artifact)
}

// Clone registers a new voice from an uploaded audio sample and returns
// its identifier.
func (h *Handler) Clone(w http.ResponseWriter, r *http.Request) {
	eng, samplePath, cleanup, err := h.parseCloneForm(r)
	if err != nil {
		h.writeError(w, err)

		return
	}
	defer cleanup()

	voiceID, err := eng.Clone(r.Context(), core.CloneRequest{
		SamplePath:  samplePath,
		VoiceID:     r.FormValue(formFieldVoiceID),
		MakeDefault: r.FormValue(formFieldMakeDefault) == "true",
	})
	if err != nil {
		h.writeError(w, err)

		return
	}

	h.writeJSON(w, http.StatusOK, cloneResponse{VoiceID: voiceID})
}

// SynthesizeWithClone registers a voice from an uploaded sample and
// synthesizes with it in one round trip, streaming the WAV back.
func (h *Handler) SynthesizeWithClone(w http.ResponseWriter, r *http.Request) {
	eng, samplePath, cleanup, err := h.parseCloneForm(r)
	if err != nil {
		h.writeError(w, err)

		return
	}
	defer cleanup()

	voiceID, err := eng.Clone(r.Context(), core.CloneRequest{
		SamplePath:  samplePath,
		VoiceID:     r.FormValue(formFieldVoiceID),
		MakeDefault: r.FormValue(formFieldMakeDefault) == "true",
	})
	if err != nil {
		h.writeError(w, err)

		return
	}

	artifact, err := eng.Synthesize(r.Context(), core.SynthesisRequest{
		Text:               r.FormValue(formFieldText),
		Voice:              voiceID,
		ReferenceAudioPath: "",
		Speed:              parseSpeed(r.FormValue(formFieldSpeed)),
		SplitPattern:       "",
		OutputPath:         "",
	})
	if err != nil {
		h.writeError(w, err)

		return
	}

	h.serveArtifact(w, artifact)
}

// parseCloneForm resolves the engine and spills the uploaded sample to a
// temporary file. The returned cleanup removes the file and must always
// be called once.
func (h *Handler) parseCloneForm(
	r *http.Request,
) (core.Engine, string, func(), error) {
	noop := func() {}

	err := r.ParseMultipartForm(maxUploadBytes)
	if err != nil {
		return nil, "", noop,
			fmt.Errorf("%w: parse multipart form: %w", core.ErrInvalidAudio, err)
	}

	eng, err := h.engineFor(r.FormValue(formFieldModel))
	if err != nil {
		return nil, "", noop, err
	}

	file, header, err := r.FormFile(formFieldAudio)
	if err != nil {
		return nil, "", noop,
			fmt.Errorf("%w: missing %q file field: %w", core.ErrInvalidAudio, formFieldAudio, err)
	}
	defer func() { _ = file.Close() }()

	samplePath, err := h.spillUpload(file, header.Filename)
	if err != nil {
		return nil, "", noop, err
	}

	cleanup := func() {
		removeErr := os.Remove(samplePath)
		if removeErr != nil {
			h.log.Warn("Failed to remove uploaded sample %s: %v", samplePath, removeErr)
		}
	}

	return eng, samplePath, cleanup, nil
}

// spillUpload writes an uploaded file to the handler's temp directory,
// keeping the original filename stem so derived voice identifiers stay
// meaningful.
func (h *Handler) spillUpload(file multipart.File, filename string) (string, error) {
	base := filepath.Base(filename)
	if base == "." || base == "/" || base == "" {
		base = "sample.wav"
	}

	dir := filepath.Join(h.tempDir, uuid.NewString())

	err := os.MkdirAll(dir, 0o750)
	if err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	samplePath := filepath.Join(dir, base)

	out, err := os.Create(samplePath)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	_, copyErr := io.Copy(out, file)
	closeErr := out.Close()

	if copyErr != nil {
		return "", fmt.Errorf("write upload file: %w", copyErr)
	}

	if closeErr != nil {
		return "", fmt.Errorf("close upload file: %w", closeErr)
	}

	return samplePath, nil
}

// serveArtifact streams a synthesis result and deletes the backing file
// once sent.
func (h *Handler) serveArtifact(w http.ResponseWriter, artifact *core.AudioArtifact) {
	defer func() {
		removeErr := os.Remove(artifact.Path)
		if removeErr != nil {
			h.log.Warn("Failed to remove artifact %s: %v", artifact.Path, removeErr)
		}
	}()

	data, err := os.ReadFile(artifact.Path)
	if err != nil {
		h.writeStatusError(w, http.StatusInternalServerError,
			fmt.Errorf("read artifact: %w", err))

		return
	}

	w.Header().Set("Content-Type", contentTypeWAV)
	w.Header().Set(headerSampleRate, strconv.Itoa(artifact.SampleRate))
	w.WriteHeader(http.StatusOK)

	_, writeErr := w.Write(data)
	if writeErr != nil {
		h.log.Warn("Failed to write audio response: %v", writeErr)
	}
}

// engineFor resolves the engine for a model name, falling back to the
// default model when the name is empty.
func (h *Handler) engineFor(name string) (core.Engine, error) {
	model := h.defaultModel

	if name != "" {
		parsed, err := core.ParseModelType(name)
		if err != nil {
			return nil, err
		}

		model = parsed
	}

	eng, ok := h.engines[model]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotEnabled, model)
	}

	return eng, nil
}

func parseSpeed(raw string) float64 {
	if raw == "" {
		return 0
	}

	speed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}

	return speed
}

// writeError maps the error taxonomy onto HTTP status codes: caller
// mistakes are 4xx, backend failures are 5xx.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.writeStatusError(w, statusForError(err), err)
}

func (h *Handler) writeStatusError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed: %v", err)
	} else {
		h.log.Warn("Request rejected: %v", err)
	}

	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)

	encodeErr := json.NewEncoder(w).Encode(payload)
	if encodeErr != nil {
		h.log.Error("Failed to encode JSON response: %v", encodeErr)
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrVoiceNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNoVoiceAvailable),
		errors.Is(err, core.ErrInvalidAudio),
		errors.Is(err, core.ErrTextEmpty),
		errors.Is(err, core.ErrUnsupportedModel),
		errors.Is(err, ErrModelNotEnabled):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
