// Package rest implements the HTTP collaborators the view engine is wired
// with in production: a metadata client for schema definitions and a data
// client for the generic record protocol. Both speak the platform's JSON
// wire format and translate HTTP failures into the engine's error taxonomy.
package rest

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

	"github.com/avasel/go-facet/core/schema"
	"github.com/avasel/go-facet/core/view"
	"go.uber.org/zap"
)

// ErrNotFound marks a 404 from the platform.
var ErrNotFound = errors.New("not found")

// Doer is the minimal HTTP capability the clients need. *http.Client
// satisfies it; so does any transport wrapper that injects authentication.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the shared HTTP plumbing underneath the metadata and data
// clients: base URL handling, JSON codec, and error translation.
type Client struct {
	base   string
	http   Doer
	logger *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default transport. Authentication and retry
// belong in the injected Doer; the engine treats it as opaque.
func WithHTTPClient(d Doer) ClientOption {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

// WithClientLogger sets the client's logger.
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client rooted at the platform's base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do performs one JSON round trip. A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}

	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("platform call",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode >= 400 {
		return c.asError(op, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// errorBody is the platform's error payload: a general message plus optional
// per-field details keyed by field name.
type errorBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// asError maps an HTTP failure into the engine's error taxonomy: validation
// details on 400/422, a write conflict on 409, ErrNotFound on 404, and a
// plain error otherwise.
func (c *Client) asError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var body errorBody
	_ = json.Unmarshal(raw, &body)
	if body.Message == "" {
		body.Message = strings.TrimSpace(string(raw))
	}
	if body.Message == "" {
		body.Message = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &schema.ValidationError{Message: body.Message, Fields: body.Errors}
	case http.StatusConflict:
		return &view.WriteConflictError{Op: op, Err: errors.New(body.Message)}
	case http.StatusNotFound:
		return fmt.Errorf("%s: %s: %w", op, body.Message, ErrNotFound)
	default:
		return fmt.Errorf("%s: unexpected status %d: %s", op, resp.StatusCode, body.Message)
	}
}
