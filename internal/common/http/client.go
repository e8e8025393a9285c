// Package http is the outbound HTTP client used for webhook deliveries.
package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// maxResponseBody caps how much of a webhook reply is kept for error messages.
const maxResponseBody = 64 << 10

const userAgent = "dropout-alerts/1.0"

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// PostJSON posts body with a JSON content type and reads the response,
// truncated to maxResponseBody bytes.
func (c *Client) PostJSON(ctx context.Context, url string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}
