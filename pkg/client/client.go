// Package client is the Go SDK for the molregistry HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/molregistry/pkg/errors"
)

const Version = "0.1.0"

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debugf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...interface{}) {}
func (noopLogger) Errorf(string, ...interface{}) {}

// Client talks to one registry server.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	userAgent    string
	logger       Logger
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration

	molecules *MoleculesClient
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Detail     string `json:"detail"`
	RequestID  string `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("molregistry: HTTP %d: %s [request_id=%s]", e.StatusCode, e.Detail, e.RequestID)
}

// IsNotFound reports a 404.
func (e *APIError) IsNotFound() bool { return e.StatusCode == http.StatusNotFound }

// IsServerError reports a 5xx.
func (e *APIError) IsServerError() bool { return e.StatusCode >= 500 && e.StatusCode < 600 }

// NewClient creates a client for baseURL, e.g. "http://localhost:8000".
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New(errors.ErrCodeValidation, "base URL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "invalid base URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New(errors.ErrCodeValidation, "base URL scheme must be http or https")
	}

	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		userAgent:    "molregistry-go-sdk/" + Version,
		logger:       noopLogger{},
		retryMax:     3,
		retryWaitMin: 200 * time.Millisecond,
		retryWaitMax: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.molecules = &MoleculesClient{client: c}
	return c, nil
}

// Molecules returns the registry sub-client.
func (c *Client) Molecules() *MoleculesClient { return c.molecules }

// request describes one call.  body is rebuilt for every attempt.
type request struct {
	method      string
	path        string
	body        func() (io.Reader, error)
	contentType string
}

func jsonBody(v interface{}) func() (io.Reader, error) {
	return func() (io.Reader, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		return bytes.NewReader(b), nil
	}
}

// idempotent reports whether a failed attempt may be repeated.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodHead:
		return true
	}
	return false
}

// do executes req and returns the raw 2xx body.  Idempotent methods are
// retried on transport errors and 5xx responses.
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	target := c.baseURL + req.path
	attempts := 1
	if idempotent(req.method) {
		attempts += c.retryMax
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt)
			c.logger.Debugf("retry %d of %s %s after %v", attempt, req.method, req.path, wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, retry, err := c.attempt(ctx, target, req)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, target string, req request) ([]byte, bool, error) {
	var reader io.Reader
	if req.body != nil {
		r, err := req.body()
		if err != nil {
			return nil, false, err
		}
		reader = r
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, reader)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-ID", requestID)
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Errorf("%s %s failed: %v", req.method, req.path, err)
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()
	c.logger.Debugf("%s %s %d (%v)", req.method, req.path, resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 400 {
		return body, false, nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: requestID}
	var detail struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &detail) == nil && detail.Detail != "" {
		apiErr.Detail = detail.Detail
	} else {
		apiErr.Detail = strings.TrimSpace(string(body))
	}
	return nil, apiErr.IsServerError(), apiErr
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.retryWaitMin * time.Duration(1<<uint(attempt-1))
	if d > c.retryWaitMax {
		d = c.retryWaitMax
	}
	if q := int64(d / 4); q > 0 {
		d += time.Duration(rand.Int63n(q))
	}
	return d
}
