// Package cloudapi wraps the WhatsApp Business Cloud API (Meta Graph API)
// for sending messages and moving media in and out of the platform.
//
// Outbound calls go through a circuit breaker and retry with exponential
// backoff, so a flapping Graph API endpoint does not stall conversations.
package cloudapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// Constants for Cloud API client configuration
const (
	// DefaultBaseURL is the Meta Graph API host.
	DefaultBaseURL = "https://graph.facebook.com"
	// DefaultSendVersion is the Graph API version used for message sends and media uploads.
	DefaultSendVersion = "v13.0"
	// DefaultMediaVersion is the Graph API version used for media metadata lookups.
	DefaultMediaVersion = "v12.0"
	// DefaultMaxRetries bounds retry attempts per outbound call.
	DefaultMaxRetries = 3
	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second
)

// Opts holds configuration options for the Cloud API client.
type Opts struct {
	Token         string // Graph API access token
	PhoneNumberID string // business phone number id the messages are sent from
	BaseURL       string // Graph API host, overridable for tests
	HTTPClient    *http.Client
	MaxRetries    int
}

// Option defines a configuration option for the Cloud API client.
type Option func(*Opts)

// WithToken sets the Graph API access token.
func WithToken(token string) Option {
	return func(o *Opts) {
		o.Token = token
	}
}

// WithPhoneNumberID sets the business phone number id.
func WithPhoneNumberID(id string) Option {
	return func(o *Opts) {
		o.PhoneNumberID = id
	}
}

// WithBaseURL overrides the Graph API host.
func WithBaseURL(url string) Option {
	return func(o *Opts) {
		o.BaseURL = url
	}
}

// WithHTTPClient overrides the HTTP client used for Graph API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) {
		o.HTTPClient = c
	}
}

// WithMaxRetries bounds retry attempts per outbound call.
func WithMaxRetries(n int) Option {
	return func(o *Opts) {
		o.MaxRetries = n
	}
}

// Client talks to the WhatsApp Business Cloud API.
type Client struct {
	token         string
	phoneNumberID string
	baseURL       string
	httpClient    *http.Client
	maxRetries    int
	breaker       *gobreaker.CircuitBreaker
}

// NewClient creates a new Cloud API client, applying any provided options.
// Falls back to WHATSAPP_TOKEN and WHATSAPP_PHONE_NUMBER_ID from the
// environment when not set explicitly.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("cloudapi.NewClient options set", "token_set", cfg.Token != "", "phone_number_id_set", cfg.PhoneNumberID != "", "base_url_set", cfg.BaseURL != "")

	token := cfg.Token
	if token == "" {
		token = os.Getenv("WHATSAPP_TOKEN")
		slog.Debug("cloudapi.NewClient token not provided, using environment variable", "env_set", token != "")
	}
	if token == "" {
		return nil, fmt.Errorf("whatsapp access token is required")
	}
	phoneNumberID := cfg.PhoneNumberID
	if phoneNumberID == "" {
		phoneNumberID = os.Getenv("WHATSAPP_PHONE_NUMBER_ID")
		slog.Debug("cloudapi.NewClient phone number id not provided, using environment variable", "env_set", phoneNumberID != "")
	}
	if phoneNumberID == "" {
		return nil, fmt.Errorf("whatsapp phone number id is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "whatsapp-cloud-api",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
	})

	slog.Debug("cloudapi.NewClient client created", "base_url", baseURL, "max_retries", maxRetries)
	return &Client{
		token:         token,
		phoneNumberID: phoneNumberID,
		baseURL:       baseURL,
		httpClient:    httpClient,
		maxRetries:    maxRetries,
		breaker:       breaker,
	}, nil
}

// PhoneNumberID returns the business phone number id this client sends from.
func (c *Client) PhoneNumberID() string {
	return c.phoneNumberID
}

// SendText sends a plain text message to the recipient.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	if to == "" {
		return fmt.Errorf("recipient cannot be empty")
	}
	if body == "" {
		return fmt.Errorf("message body cannot be empty")
	}
	slog.Debug("cloudapi.SendText sending", "to", to, "body_length", len(body))
	payload := textMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Text:             textBody{Body: body},
	}
	if err := c.sendMessage(ctx, payload); err != nil {
		slog.Error("cloudapi.SendText failed", "error", err, "to", to)
		return fmt.Errorf("failed to send text message to %s: %w", to, err)
	}
	slog.Debug("cloudapi.SendText sent", "to", to)
	return nil
}

// SendDocumentByID sends an already-uploaded document to the recipient.
// The media id must come from a prior UploadMedia call.
func (c *Client) SendDocumentByID(ctx context.Context, to, mediaID, filename string) error {
	if to == "" {
		return fmt.Errorf("recipient cannot be empty")
	}
	if mediaID == "" {
		return fmt.Errorf("media id cannot be empty")
	}
	slog.Debug("cloudapi.SendDocumentByID sending", "to", to, "media_id", mediaID, "filename", filename)
	payload := documentMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "document",
		Document:         documentRef{ID: mediaID, Filename: filename},
	}
	if err := c.sendMessage(ctx, payload); err != nil {
		slog.Error("cloudapi.SendDocumentByID failed", "error", err, "to", to, "media_id", mediaID)
		return fmt.Errorf("failed to send document to %s: %w", to, err)
	}
	slog.Debug("cloudapi.SendDocumentByID sent", "to", to, "media_id", mediaID)
	return nil
}

// SendList sends an interactive list message to the recipient.
func (c *Client) SendList(ctx context.Context, to string, list List) error {
	if to == "" {
		return fmt.Errorf("recipient cannot be empty")
	}
	if len(list.Sections) == 0 {
		return fmt.Errorf("list message requires at least one section")
	}
	slog.Debug("cloudapi.SendList sending", "to", to, "sections", len(list.Sections))
	payload := newListMessage(to, list)
	if err := c.sendMessage(ctx, payload); err != nil {
		slog.Error("cloudapi.SendList failed", "error", err, "to", to)
		return fmt.Errorf("failed to send list message to %s: %w", to, err)
	}
	slog.Debug("cloudapi.SendList sent", "to", to)
	return nil
}

// UploadMedia uploads a file to the Cloud API media endpoint and returns
// the media id WhatsApp assigned to it.
func (c *Client) UploadMedia(ctx context.Context, filename, mimeType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("media content cannot be empty")
	}
	slog.Debug("cloudapi.UploadMedia uploading", "filename", filename, "mime_type", mimeType, "size", len(data))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to build multipart body: %w", err)
	}
	if err := mw.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", fmt.Errorf("failed to build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to build multipart body: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/media", c.baseURL, DefaultSendVersion, c.phoneNumberID)
	var mediaID string
	err = c.execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf.Bytes()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+c.token)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("media upload returned status %d: %s", resp.StatusCode, string(body))
		}
		var parsed struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return fmt.Errorf("failed to decode media upload response: %w", err)
		}
		if parsed.ID == "" {
			return fmt.Errorf("media upload response missing id")
		}
		mediaID = parsed.ID
		return nil
	})
	if err != nil {
		slog.Error("cloudapi.UploadMedia failed", "error", err, "filename", filename)
		return "", fmt.Errorf("failed to upload media: %w", err)
	}
	slog.Debug("cloudapi.UploadMedia uploaded", "media_id", mediaID)
	return mediaID, nil
}

// FetchMedia downloads an inbound media object by id. The Cloud API serves
// media in two steps: a metadata lookup yields a short-lived URL, which is
// then fetched with the same bearer token. Returns the content and MIME type.
func (c *Client) FetchMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	if mediaID == "" {
		return nil, "", fmt.Errorf("media id cannot be empty")
	}
	slog.Debug("cloudapi.FetchMedia fetching metadata", "media_id", mediaID)

	metaURL := fmt.Sprintf("%s/%s/%s", c.baseURL, DefaultMediaVersion, mediaID)
	var meta struct {
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
	}
	err := c.execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, metaURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("media metadata lookup returned status %d: %s", resp.StatusCode, string(body))
		}
		return json.NewDecoder(resp.Body).Decode(&meta)
	})
	if err != nil {
		slog.Error("cloudapi.FetchMedia metadata lookup failed", "error", err, "media_id", mediaID)
		return nil, "", fmt.Errorf("failed to look up media %s: %w", mediaID, err)
	}
	if meta.URL == "" {
		return nil, "", fmt.Errorf("media metadata for %s missing download url", mediaID)
	}

	slog.Debug("cloudapi.FetchMedia downloading", "media_id", mediaID, "mime_type", meta.MimeType)
	var content []byte
	err = c.execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("media download returned status %d", resp.StatusCode)
		}
		content, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		slog.Error("cloudapi.FetchMedia download failed", "error", err, "media_id", mediaID)
		return nil, "", fmt.Errorf("failed to download media %s: %w", mediaID, err)
	}
	slog.Debug("cloudapi.FetchMedia downloaded", "media_id", mediaID, "size", len(content))
	return content, meta.MimeType, nil
}

// sendMessage posts a message payload to the /messages endpoint.
func (c *Client) sendMessage(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode message payload: %w", err)
	}
	url := fmt.Sprintf("%s/%s/%s/messages?access_token=%s", c.baseURL, DefaultSendVersion, c.phoneNumberID, c.token)
	return c.execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("message send returned status %d: %s", resp.StatusCode, string(respBody))
		}
		return nil
	})
}

// execute runs fn through the circuit breaker with bounded exponential
// backoff retries. Context cancellation stops the retry loop.
func (c *Client) execute(ctx context.Context, fn func() error) error {
	_, err := c.breaker.Execute(func() (any, error) {
		bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)), ctx)
		return nil, backoff.Retry(fn, bo)
	})
	return err
}
