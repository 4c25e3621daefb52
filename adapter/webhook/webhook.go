// Package webhook implements an HTTP POST fault-record transport.
//
// Posts fault records as JSON to a logging service endpoint.
// Retries with exponential backoff on transient failures.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pithecene-io/vpd/adapter"
	"github.com/pithecene-io/vpd/iox"
	"github.com/pithecene-io/vpd/types"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// IdempotencyHeader carries the record ID so receivers can drop retried
// duplicates.
const IdempotencyHeader = "Idempotency-Key"

// Config configures the webhook transport.
type Config struct {
	// URL is the HTTP endpoint to POST to (required).
	URL string
	// Headers are custom HTTP headers added to each request.
	Headers map[string]string
	// Timeout is the per-request timeout (default 10s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure (default 3).
	Retries int
}

// Transport posts fault records via HTTP.
type Transport struct {
	config Config
	client *http.Client
}

// New creates a webhook transport from the given config.
// Returns an error if the URL is empty.
func New(cfg Config) (*Transport, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook transport requires a URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &Transport{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Create posts the record as JSON.
// Retries with exponential backoff on 5xx responses and network errors.
// 4xx responses are non-retriable and fail immediately.
func (t *Transport) Create(ctx context.Context, record *types.FaultRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("webhook: marshal record: %w", err)
	}

	var lastErr error
	// attempts = 1 initial + retries
	attempts := 1 + t.config.Retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("webhook: context canceled: %w", err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return fmt.Errorf("webhook: context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = t.doRequest(ctx, record.ID, body)
		if lastErr == nil {
			return nil
		}

		var statusErr *StatusError
		if errors.As(lastErr, &statusErr) && statusErr.Code >= 400 && statusErr.Code < 500 {
			return fmt.Errorf("webhook: non-retriable error: %w", lastErr)
		}
	}

	return fmt.Errorf("webhook: failed after %d attempts: %w", attempts, lastErr)
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// doRequest performs a single HTTP POST and returns nil on 2xx.
func (t *Transport) doRequest(ctx context.Context, id string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if id != "" {
		req.Header.Set(IdempotencyHeader, id)
	}
	for k, v := range t.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DrainClose(resp.Body)

	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}

	return nil
}

// Close releases transport resources.
func (t *Transport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

var _ adapter.Transport = (*Transport)(nil)
