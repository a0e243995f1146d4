// Package extractor forwards received customer documents to the external
// extraction service that pulls structured data out of them.
//
// Uploads are best effort: a failed extraction never blocks the conversation,
// the document already lives in the store.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout is the per-upload HTTP timeout.
const DefaultTimeout = 60 * time.Second

// Opts holds configuration options for the extractor client.
type Opts struct {
	URL        string // extraction service upload endpoint
	HTTPClient *http.Client
}

// Option defines a configuration option for the extractor client.
type Option func(*Opts)

// WithURL sets the extraction service upload endpoint.
func WithURL(url string) Option {
	return func(o *Opts) {
		o.URL = url
	}
}

// WithHTTPClient overrides the HTTP client used for uploads.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) {
		o.HTTPClient = c
	}
}

// Client uploads documents to the extraction service.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates an extractor client. Falls back to EXTRACTOR_URL from the
// environment; an empty URL disables uploads entirely.
func NewClient(opts ...Option) *Client {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	url := cfg.URL
	if url == "" {
		url = os.Getenv("EXTRACTOR_URL")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	slog.Debug("extractor.NewClient created", "url_set", url != "")
	return &Client{url: url, httpClient: httpClient}
}

// Enabled reports whether an upload endpoint is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.url != ""
}

// Upload sends a document to the extraction service with its classification
// and owning conversation. Callers typically run this in a goroutine.
func (c *Client) Upload(ctx context.Context, docType, phone string, documentID int64, filename string, content []byte) error {
	if !c.Enabled() {
		slog.Debug("extractor.Upload skipped, no endpoint configured")
		return nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("doc_type", docType); err != nil {
		return fmt.Errorf("failed to build upload body: %w", err)
	}
	part, err := mw.CreateFormFile("document", filename)
	if err != nil {
		return fmt.Errorf("failed to build upload body: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("failed to build upload body: %w", err)
	}
	if err := mw.WriteField("convo", phone); err != nil {
		return fmt.Errorf("failed to build upload body: %w", err)
	}
	if err := mw.WriteField("document_id", strconv.FormatInt(documentID, 10)); err != nil {
		return fmt.Errorf("failed to build upload body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to build upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &buf)
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Idempotency-Key", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("extractor.Upload request failed", "error", err, "doc_type", docType, "document_id", documentID)
		return fmt.Errorf("extraction upload failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		slog.Error("extractor.Upload rejected", "status", resp.StatusCode, "doc_type", docType, "document_id", documentID)
		return fmt.Errorf("extraction upload returned status %d: %s", resp.StatusCode, string(body))
	}
	slog.Debug("extractor.Upload completed", "doc_type", docType, "document_id", documentID)
	return nil
}
