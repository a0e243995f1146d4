package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ribera-digital/bankline/internal/cloudapi"
)

// TextService adapts a text-only transport (linked device or Twilio) to the
// Sender interface. Documents degrade to a short note and interactive lists
// degrade to a numbered menu.
type TextService struct {
	client TextSender
}

// NewTextService wraps a text-only transport.
func NewTextService(client TextSender) *TextService {
	slog.Debug("TextService created")
	return &TextService{client: client}
}

func (s *TextService) SendText(ctx context.Context, to, body string) error {
	return s.client.SendMessage(ctx, to, body)
}

// SendDocument cannot attach files over a text-only transport, so it sends
// the filename as a reference instead.
func (s *TextService) SendDocument(ctx context.Context, to, mediaID, filename string) error {
	slog.Debug("TextService degrading document send to text", "to", to, "filename", filename)
	return s.client.SendMessage(ctx, to, fmt.Sprintf("📄 %s", filename))
}

// SendList renders the interactive list as a numbered text menu.
func (s *TextService) SendList(ctx context.Context, to string, list cloudapi.List) error {
	var b strings.Builder
	if list.Header != "" {
		b.WriteString(list.Header)
		b.WriteString("\n")
	}
	if list.Body != "" {
		b.WriteString(list.Body)
		b.WriteString("\n")
	}
	n := 0
	for _, section := range list.Sections {
		for _, row := range section.Rows {
			n++
			fmt.Fprintf(&b, "%d. %s", n, row.Title)
			if row.Description != "" {
				fmt.Fprintf(&b, " (%s)", row.Description)
			}
			b.WriteString("\n")
		}
	}
	if list.Footer != "" {
		b.WriteString(list.Footer)
	}
	slog.Debug("TextService degrading list send to text menu", "to", to, "options", n)
	return s.client.SendMessage(ctx, to, strings.TrimRight(b.String(), "\n"))
}
