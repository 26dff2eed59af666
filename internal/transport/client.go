// Package transport exchanges binary messages with the scoring service.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

// Request headers identifying a submission.
const (
	HeaderScoreID     = "X-Score-Id"
	HeaderReferenceID = "X-Reference-Id"
	HeaderPage        = "X-Page"
	HeaderRequestID   = "X-Request-Id"
)

// Content types of request bodies.
const (
	ContentTypeNotes = "application/octet-stream"
	ContentTypeWAV   = "audio/wav"
)

// maxResponseBytes bounds a response body.
const maxResponseBytes = 32 << 20

// Config configures the scoring service client.
type Config struct {
	// BaseURL of the scoring service, e.g. http://localhost:8090
	BaseURL string

	// Endpoint paths, relative to BaseURL
	SchemaPath string
	NotesPath  string
	AudioPath  string

	// Timeout for every request
	Timeout time.Duration
}

// DefaultConfig returns the endpoint layout served by the scoring service.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		SchemaPath: "/schema",
		NotesPath:  "/notes",
		AudioPath:  "/audio",
		Timeout:    30 * time.Second,
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("scoring service returned %d", e.Code)
	}
	return fmt.Sprintf("scoring service returned %d: %s", e.Code, e.Body)
}

// Client is the HTTP client for the scoring service. One request per call; timeouts come from Config.
type Client struct {
	cfg    Config
	http   *http.Client
	logger contracts.Logger
}

// New creates a client.
func New(cfg Config, logger contracts.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// FetchSchema downloads the wire schema descriptor.
func (c *Client) FetchSchema(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(c.cfg.SchemaPath), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

// SubmitNotes posts an encoded note list and returns the encoded Recording.
func (c *Client) SubmitNotes(ctx context.Context, meta contracts.RequestMeta, body []byte) ([]byte, error) {
	return c.submit(ctx, c.cfg.NotesPath, ContentTypeNotes, meta, body)
}

// SubmitAudio posts a recorded audio blob and returns the encoded Recording.
func (c *Client) SubmitAudio(ctx context.Context, meta contracts.RequestMeta, blob []byte) ([]byte, error) {
	return c.submit(ctx, c.cfg.AudioPath, ContentTypeWAV, meta, blob)
}

func (c *Client) submit(ctx context.Context, path, contentType string, meta contracts.RequestMeta, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if meta.RequestID == "" {
		meta.RequestID = uuid.NewString()
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(HeaderScoreID, meta.ScoreID)
	req.Header.Set(HeaderReferenceID, meta.ReferenceID)
	req.Header.Set(HeaderPage, strconv.Itoa(meta.Page))
	req.Header.Set(HeaderRequestID, meta.RequestID)

	c.logger.Debug("Submitting capture",
		c.logger.Field().String("path", path),
		c.logger.Field().String("requestID", meta.RequestID),
		c.logger.Field().Int("bytes", len(body)))
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("Scoring service responded",
		c.logger.Field().String("path", req.URL.Path),
		c.logger.Field().Int("status", resp.StatusCode),
		c.logger.Field().Int64("elapsedMs", time.Since(start).Milliseconds()))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}
