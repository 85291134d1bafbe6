// Package zonos provides the HTTP client for the Zonos-v0.1 model
// runtime: single-shot speech generation conditioned on a speaker
// embedding, plus embedding extraction from reference audio. The
// embedding blob is opaque to this service and persisted verbatim.
package zonos

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// API endpoints.
const (
	apiGenerate     = "/v1/generate"
	apiEmbedSpeaker = "/v1/embed/speaker"
	apiHealth       = "/health"
)

// HTTP headers.
const (
	headerContentType  = "Content-Type"
	headerAccept       = "Accept"
	contentTypeJSON    = "application/json"
	contentTypeWAV     = "audio/wav"
	contentTypeBinary  = "application/octet-stream"
)

// defaultLanguage is the conditioning language when none is configured.
const defaultLanguage = "en-us"

// Static errors.
var (
	ErrTextEmpty        = errors.New("text cannot be empty")
	ErrSpeakerEmpty     = errors.New("speaker embedding cannot be empty")
	ErrAudioEmpty       = errors.New("reference audio cannot be empty")
	ErrEmptyResponse    = errors.New("received empty response body")
	ErrWrongContentType = errors.New("unexpected response content type")
)

// GenerateRequest is the JSON payload for a generation call. Generation
// is one forward pass producing one contiguous waveform at the model's
// native rate.
type GenerateRequest struct {
	// Text is the full input text; the Zonos runtime does not chunk.
	Text string `json:"text"`

	// Language is the conditioning language code (e.g. "en-us").
	Language string `json:"language"`

	// SpeakerEmbedding is the base64-encoded serialized embedding tensor
	// conditioning the generated voice.
	SpeakerEmbedding string `json:"speaker_embedding"`

	// Speed is the playback-speed multiplier; the runtime may ignore it.
	Speed float64 `json:"speed,omitempty"`
}

type errorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Client talks to one Zonos runtime instance.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New configures a client for the runtime at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Generate runs one synthesis pass and returns the WAV bytes at the
// runtime's native sample rate.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) ([]byte, error) {
	if req.Text == "" {
		return nil, ErrTextEmpty
	}

	if req.SpeakerEmbedding == "" {
		return nil, ErrSpeakerEmpty
	}

	if req.Language == "" {
		req.Language = defaultLanguage
	}

	requestBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+apiGenerate, bytes.NewReader(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach Zonos runtime at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if contentType != contentTypeWAV {
		return nil, fmt.Errorf("%w: expected %s, got %s",
			ErrWrongContentType, contentTypeWAV, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrEmptyResponse
	}

	return audioData, nil
}

// EmbedSpeaker extracts a speaker embedding from mono reference audio.
// The returned blob is the runtime's serialized tensor and is stored
// byte-for-byte as speaker_embedding.pt.
func (c *Client) EmbedSpeaker(ctx context.Context, wavData []byte) ([]byte, error) {
	if len(wavData) == 0 {
		return nil, ErrAudioEmpty
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+apiEmbedSpeaker, bytes.NewReader(wavData),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeWAV)
	httpReq.Header.Set(headerAccept, contentTypeBinary)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach Zonos runtime at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp)
	}

	embedding, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding data: %w", err)
	}

	if len(embedding) == 0 {
		return nil, ErrEmptyResponse
	}

	return embedding, nil
}

// HealthCheck verifies the runtime is up.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody,
	)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for runtime at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

// EncodeEmbedding prepares a stored embedding blob for the JSON wire
// format.
func EncodeEmbedding(embedding []byte) string {
	return base64.StdEncoding.EncodeToString(embedding)
}

func parseErrorResponse(resp *http.Response) error {
	var structured errorResponse

	err := json.NewDecoder(resp.Body).Decode(&structured)
	if err == nil && structured.Detail != "" {
		return fmt.Errorf("Zonos runtime error (%s): %s (code: %s)",
			resp.Status, structured.Detail, structured.ErrorCode)
	}

	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf("Zonos runtime returned non-OK status: %s, body: %s",
		resp.Status, string(body))
}
