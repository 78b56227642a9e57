package external

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMediaTimeout bounds a single media generation request. Image and
// speech synthesis are slow compared to search, so this is deliberately long.
const DefaultMediaTimeout = 120 * time.Second

// MediaClient implements ImageBackend and SpeechBackend against an internal
// media generation service that wraps the actual model providers.
type MediaClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewMediaClient creates a media client for the given backend.
func NewMediaClient(baseURL, apiKey string) *MediaClient {
	return &MediaClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultMediaTimeout,
		},
	}
}

// GenerateImage implements ImageBackend.
func (c *MediaClient) GenerateImage(ctx context.Context, prompt, size string) ([]byte, string, error) {
	payload := map[string]interface{}{
		"prompt": prompt,
		"size":   size,
	}
	var out mediaResponse
	if err := c.post(ctx, "/v1/images", payload, &out); err != nil {
		return nil, "", err
	}
	data, err := base64.StdEncoding.DecodeString(out.Data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image payload: %w", err)
	}
	mediaType := out.MediaType
	if mediaType == "" {
		mediaType = "image/png"
	}
	return data, mediaType, nil
}

// SynthesizeSpeech implements SpeechBackend.
func (c *MediaClient) SynthesizeSpeech(ctx context.Context, text, voice string) ([]byte, string, error) {
	payload := map[string]interface{}{
		"text":  text,
		"voice": voice,
	}
	var out mediaResponse
	if err := c.post(ctx, "/v1/speech", payload, &out); err != nil {
		return nil, "", err
	}
	data, err := base64.StdEncoding.DecodeString(out.Data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode audio payload: %w", err)
	}
	mediaType := out.MediaType
	if mediaType == "" {
		mediaType = "audio/mpeg"
	}
	return data, mediaType, nil
}

func (c *MediaClient) post(ctx context.Context, path string, payload map[string]interface{}, out *mediaResponse) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("media backend error (status %d): %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if out.Data == "" {
		return fmt.Errorf("media backend returned empty payload")
	}
	return nil
}

// mediaResponse is the wire shape shared by the image and speech endpoints.
type mediaResponse struct {
	Data      string `json:"data"` // base64-encoded bytes
	MediaType string `json:"media_type"`
}
