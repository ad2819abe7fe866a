package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTimeout bounds a single POST when none is configured.
	DefaultTimeout = 5 * time.Second
	// MaxResponseBody is how much of a response body is kept for logging.
	MaxResponseBody = 4 << 10
)

// HTTP posts records to the backend with a static bearer token.
type HTTP struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTP creates an HTTP transport for url. A zero timeout uses DefaultTimeout.
func NewHTTP(url, apiKey string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &HTTP{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{
			Timeout:   timeout,
			Transport: newTransport(timeout),
		},
	}
}

// newTransport keeps one idle connection to the backend between publishes.
func newTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          2,
		MaxIdleConnsPerHost:   1,
	}
}

// Send issues one POST. Any response, including non-2xx, is returned without
// error; only transport-level failures are errors.
func (h *HTTP) Send(ctx context.Context, body []byte) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := h.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("posting to %s: %w", h.url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBody))
	if err != nil {
		// The status line arrived; a short read of the body is not a send failure.
		data = nil
	}
	// Drain the rest so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return Response{
		Status:   resp.StatusCode,
		Accepted: resp.StatusCode >= 200 && resp.StatusCode < 300,
		Body:     []byte(strings.TrimSpace(string(data))),
	}, nil
}
