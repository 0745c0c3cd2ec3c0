package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client posts finished payloads to the prediction service over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a submission client for the given server URL
func NewClient(serverURL string) (*Client, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("submit: server URL is required")
	}

	return &Client{
		baseURL: strings.TrimSuffix(serverURL, "/"),
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}, nil
}

// Upload sends the payload and returns the backend acknowledgment
func (c *Client) Upload(ctx context.Context, payload Payload) (Ack, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
	}

	respBody, err := c.sendRequest(ctx, "/api/cases", payload)
	if err != nil {
		return Ack{}, fmt.Errorf("submit: request failed: %w", err)
	}

	var ack Ack
	if err := json.Unmarshal(respBody, &ack); err != nil {
		return Ack{}, fmt.Errorf("submit: failed to parse acknowledgment: %w", err)
	}
	return ack, nil
}

func (c *Client) sendRequest(ctx context.Context, path string, body interface{}) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("server returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
