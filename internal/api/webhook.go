package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ribera-digital/bankline/internal/models"
	"github.com/ribera-digital/bankline/internal/util"
)

// Webhook wire shapes for the Cloud API notification payload.

type webhookPayload struct {
	Entry []webhookEntry `json:"entry"`
}

type webhookEntry struct {
	Changes []webhookChange `json:"changes"`
}

type webhookChange struct {
	Value webhookValue `json:"value"`
}

type webhookValue struct {
	Metadata struct {
		PhoneNumberID string `json:"phone_number_id"`
	} `json:"metadata"`
	Contacts []struct {
		WaID    string `json:"wa_id"`
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
	} `json:"contacts"`
	Messages []webhookMessage `json:"messages"`
}

type webhookMessage struct {
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
	Document struct {
		ID       string `json:"id"`
		MimeType string `json:"mime_type"`
	} `json:"document"`
	Image struct {
		ID       string `json:"id"`
		MimeType string `json:"mime_type"`
	} `json:"image"`
	Interactive struct {
		ListReply struct {
			ID string `json:"id"`
		} `json:"list_reply"`
		ButtonReply struct {
			ID string `json:"id"`
		} `json:"button_reply"`
	} `json:"interactive"`
}

// verifyWebhookHandler answers the Meta webhook subscription handshake.
func (s *Server) verifyWebhookHandler(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "" || token == "" {
		slog.Warn("Server.verifyWebhookHandler: missing verification parameters")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if mode != "subscribe" || token != s.verifyToken {
		slog.Warn("Server.verifyWebhookHandler: verification token mismatch", "mode", mode)
		w.WriteHeader(http.StatusForbidden)
		return
	}
	slog.Info("Server.verifyWebhookHandler: webhook verified")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// receiveWebhookHandler ingests one Cloud API notification. It always answers
// 200 immediately; Meta retries any other status and the turn is processed
// asynchronously anyway.
func (s *Server) receiveWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Server.receiveWebhookHandler: undecodable payload", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusOK)

	value, ok := extractValue(payload)
	if !ok {
		slog.Debug("Server.receiveWebhookHandler: notification carries no messages")
		return
	}
	if value.Metadata.PhoneNumberID != s.phoneNumberID {
		slog.Warn("Server.receiveWebhookHandler: notification for unknown phone number id", "phone_number_id", value.Metadata.PhoneNumberID)
		return
	}
	if len(value.Contacts) == 0 {
		slog.Warn("Server.receiveWebhookHandler: notification carries no contact")
		return
	}

	phone := util.NormalizePhone(value.Contacts[0].WaID)
	name := value.Contacts[0].Profile.Name
	msg := value.Messages[0]

	turn, supported := buildTurn(phone, name, msg)
	if !supported {
		slog.Debug("Server.receiveWebhookHandler: unsupported message type", "type", msg.Type)
		go func() {
			if err := s.engine.HandleUnsupported(context.Background(), phone, name); err != nil {
				slog.Error("Server.receiveWebhookHandler: unsupported-type reply failed", "error", err)
			}
		}()
		return
	}

	go func() {
		if err := s.engine.Handle(context.Background(), turn); err != nil {
			slog.Error("Server.receiveWebhookHandler: turn handling failed", "error", err, "phone", phone)
		}
	}()
}

// extractValue pulls the first change value that carries messages.
func extractValue(payload webhookPayload) (webhookValue, bool) {
	if len(payload.Entry) == 0 || len(payload.Entry[0].Changes) == 0 {
		return webhookValue{}, false
	}
	value := payload.Entry[0].Changes[0].Value
	if len(value.Messages) == 0 {
		return webhookValue{}, false
	}
	return value, true
}

// buildTurn maps a webhook message onto an engine turn.
func buildTurn(phone, name string, msg webhookMessage) (models.Turn, bool) {
	turn := models.Turn{Phone: phone, Name: name}
	switch msg.Type {
	case "text":
		turn.Type = models.TurnText
		turn.Text = msg.Text.Body
	case "interactive":
		turn.Type = models.TurnInteractive
		turn.Text = msg.Interactive.ListReply.ID
		if turn.Text == "" {
			turn.Text = msg.Interactive.ButtonReply.ID
		}
	case "document":
		turn.Type = models.TurnDocument
		turn.MediaID = msg.Document.ID
		turn.MimeType = msg.Document.MimeType
	case "image":
		turn.Type = models.TurnImage
		turn.MediaID = msg.Image.ID
		turn.MimeType = msg.Image.MimeType
	default:
		return models.Turn{}, false
	}
	return turn, true
}
