// Package voice turns a narration script into speech audio using the
// ElevenLabs text-to-speech API.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reelgen/config"
)

// ErrSynthesisFailed is returned for any failed synthesis request.
var ErrSynthesisFailed = errors.New("voice synthesis failed")

// ProgressFunc receives the number of audio bytes received so far and the
// expected total, which is -1 when the provider did not send Content-Length.
type ProgressFunc func(received, total int64)

// Config configures the ElevenLabs client.
type Config struct {
	APIKey  string
	VoiceID string
	ModelID string // optional
	BaseURL string // defaults to https://api.elevenlabs.io
	Timeout time.Duration
}

// Client is an ElevenLabs text-to-speech client.
type Client struct {
	apiKey     string
	voiceID    string
	modelID    string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client. An API key and voice ID are required.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("elevenlabs API key is required")
	}
	if strings.TrimSpace(cfg.VoiceID) == "" {
		return nil, errors.New("elevenlabs voice ID is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://api.elevenlabs.io"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultVoiceTimeout
	}

	return &Client{
		apiKey:     cfg.APIKey,
		voiceID:    cfg.VoiceID,
		modelID:    cfg.ModelID,
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id,omitempty"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// maxPrealloc caps how much of a declared Content-Length is allocated up front.
const maxPrealloc = 32 << 20

// readChunk is the size of each streamed read reported to the progress callback.
const readChunk = 32 * 1024

// Synthesize requests speech for script and returns the complete MP3 audio.
// progress may be nil. On any failure partial audio is discarded.
func (c *Client) Synthesize(ctx context.Context, script string, progress ProgressFunc) ([]byte, error) {
	payload, err := json.Marshal(synthesisRequest{
		Text:    script,
		ModelID: c.modelID,
		VoiceSettings: voiceSettings{
			Stability:       config.VoiceStability,
			SimilarityBoost: config.VoiceSimilarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal request: %v", ErrSynthesisFailed, err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, url.PathEscape(c.voiceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrSynthesisFailed, err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to send request: %w", ErrSynthesisFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: API returned %d: %s", ErrSynthesisFailed, resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	total := resp.ContentLength
	var audio bytes.Buffer
	audio.Grow(preallocSize(total))

	buf := make([]byte, readChunk)
	var received int64
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			audio.Write(buf[:n])
			received += int64(n)
			if progress != nil {
				progress(received, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("%w: failed to read audio stream: %w", ErrSynthesisFailed, readErr)
		}
	}

	if audio.Len() == 0 {
		return nil, fmt.Errorf("%w: provider returned no audio", ErrSynthesisFailed)
	}
	return audio.Bytes(), nil
}

func preallocSize(contentLength int64) int {
	if contentLength <= 0 {
		return 0
	}
	return int(min(contentLength, maxPrealloc))
}
