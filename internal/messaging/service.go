// Package messaging provides a pluggable delivery abstraction over the
// WhatsApp transports, so the conversation engine does not care whether
// replies go out through the Cloud API, Twilio or a linked device.
package messaging

import (
	"context"

	"github.com/ribera-digital/bankline/internal/cloudapi"
)

// Sender delivers assistant replies to a phone number.
type Sender interface {
	// SendText sends a plain text message.
	SendText(ctx context.Context, to, body string) error

	// SendDocument sends a previously uploaded document by media id.
	SendDocument(ctx context.Context, to, mediaID, filename string) error

	// SendList sends an interactive list of options.
	SendList(ctx context.Context, to string, list cloudapi.List) error
}

// MediaStore moves media blobs in and out of the messaging platform.
type MediaStore interface {
	// UploadMedia pushes a file to the platform and returns its media id.
	UploadMedia(ctx context.Context, filename, mimeType string, data []byte) (string, error)

	// FetchMedia downloads an inbound media object and returns its content
	// and MIME type.
	FetchMedia(ctx context.Context, mediaID string) ([]byte, string, error)
}

// CloudClient is the surface of the Cloud API client the services need.
type CloudClient interface {
	SendText(ctx context.Context, to, body string) error
	SendDocumentByID(ctx context.Context, to, mediaID, filename string) error
	SendList(ctx context.Context, to string, list cloudapi.List) error
	UploadMedia(ctx context.Context, filename, mimeType string, data []byte) (string, error)
	FetchMedia(ctx context.Context, mediaID string) ([]byte, string, error)
}

// TextSender is the minimal surface of the text-only transports
// (linked device, Twilio).
type TextSender interface {
	SendMessage(ctx context.Context, to string, body string) error
}
