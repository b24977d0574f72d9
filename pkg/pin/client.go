package pin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client pins documents through a remote pinning service over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a pinning client for the service at baseURL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type pinRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type pinResponse struct {
	Hash string `json:"hash"`
}

// Pin uploads v under key and returns the content hash the service derived
// for it. Transport and auth failures surface as errors; the caller treats
// them as storage-unavailable and aborts before any durable write.
func (c *Client) Pin(ctx context.Context, key string, v any) (string, error) {
	body, err := json.Marshal(pinRequest{Key: key, Value: v})
	if err != nil {
		return "", fmt.Errorf("pin %s: encode: %w", key, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/pin", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("pin %s: %w", key, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("pin %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("pin %s: service returned %d: %s", key, resp.StatusCode, snippet)
	}

	var out pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("pin %s: decode response: %w", key, err)
	}
	if out.Hash == "" {
		return "", fmt.Errorf("pin %s: service returned empty hash", key)
	}
	return out.Hash, nil
}
