// Package kokoro provides the HTTP client for the Kokoro-82M model
// runtime. The runtime is an opaque collaborator: text and voice
// parameters go in, a WAV waveform comes out. One request synthesizes one
// text segment; chunking and concatenation live in the adapter.
package kokoro

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// API endpoints.
const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiHealth         = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
)

// Default request values.
const (
	defaultSpeed    = 1.0
	defaultLangCode = "a"
)

// Static errors.
var (
	ErrTextEmpty       = errors.New("text cannot be empty")
	ErrVoiceEmpty      = errors.New("voice cannot be empty")
	ErrEmptyAudio      = errors.New("received empty audio data")
	ErrWrongContentType = errors.New("unexpected response content type")
)

// Request is the JSON payload for one segment-synthesis call.
type Request struct {
	// Text is the segment to synthesize.
	Text string `json:"text"`

	// Voice is a preset name or a cloned-voice identifier.
	Voice string `json:"voice"`

	// SpeakerRefPath optionally points the runtime at a stored reference
	// sample for voice conditioning of cloned identifiers.
	SpeakerRefPath string `json:"speaker_ref_path,omitempty"`

	// LangCode selects the Kokoro language pipeline ("a" for American
	// English, "b" for British English, and so on).
	LangCode string `json:"lang_code"`

	// Speed is the playback-speed multiplier.
	Speed float64 `json:"speed"`
}

// errorResponse is the structured error body the runtime returns on
// failure.
type errorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Client talks to one Kokoro runtime instance.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New configures a client for the runtime at baseURL (protocol and port
// included). The timeout applies to every request.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Generate synthesizes one text segment and returns the WAV bytes. The
// runtime emits a fixed 24 kHz mono stream; the sample rate is still read
// from the WAV header downstream rather than assumed here.
func (c *Client) Generate(ctx context.Context, req Request) ([]byte, error) {
	if req.Text == "" {
		return nil, ErrTextEmpty
	}

	if req.Voice == "" {
		return nil, ErrVoiceEmpty
	}

	if req.Speed == 0 {
		req.Speed = defaultSpeed
	}

	if req.LangCode == "" {
		req.LangCode = defaultLangCode
	}

	requestBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiGenerateSpeech,
		bytes.NewReader(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to reach Kokoro runtime at %s: %w", c.baseURL, err,
		)
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
		return nil, ErrEmptyAudio
	}

	return audioData, nil
}

// HealthCheck verifies the runtime is up. Surfaces perform it before
// accepting work to fail fast with a clear diagnostic.
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

// parseErrorResponse decodes a structured runtime error, falling back to
// the raw body so diagnostics are never lost.
func parseErrorResponse(resp *http.Response) error {
	var structured errorResponse

	err := json.NewDecoder(resp.Body).Decode(&structured)
	if err == nil && structured.Detail != "" {
		return fmt.Errorf("Kokoro runtime error (%s): %s (code: %s)",
			resp.Status, structured.Detail, structured.ErrorCode)
	}

	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf("Kokoro runtime returned non-OK status: %s, body: %s",
		resp.Status, string(body))
}
