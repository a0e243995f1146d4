package messaging

import (
	"context"
	"log/slog"

	"github.com/ribera-digital/bankline/internal/cloudapi"
)

// CloudService implements Sender and MediaStore on top of the Cloud API
// client. It is a thin pass-through; the client already handles retries.
type CloudService struct {
	client CloudClient
}

// NewCloudService wraps a Cloud API client.
func NewCloudService(client CloudClient) *CloudService {
	slog.Debug("CloudService created")
	return &CloudService{client: client}
}

func (s *CloudService) SendText(ctx context.Context, to, body string) error {
	return s.client.SendText(ctx, to, body)
}

func (s *CloudService) SendDocument(ctx context.Context, to, mediaID, filename string) error {
	return s.client.SendDocumentByID(ctx, to, mediaID, filename)
}

func (s *CloudService) SendList(ctx context.Context, to string, list cloudapi.List) error {
	return s.client.SendList(ctx, to, list)
}

func (s *CloudService) UploadMedia(ctx context.Context, filename, mimeType string, data []byte) (string, error) {
	return s.client.UploadMedia(ctx, filename, mimeType, data)
}

func (s *CloudService) FetchMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	return s.client.FetchMedia(ctx, mediaID)
}
