package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ribera-digital/bankline/internal/models"
)

// docOrder is the fixed order documents are requested in.
var docOrder = []struct {
	docType     string
	requirement string
}{
	{models.DocID, reqID},
	{models.DocProofOfAddress, reqAddress},
	{models.DocProofOfIncome, reqIncome},
	{models.DocPhoto, reqPhoto},
}

// docNeeds flags which document types a flow requires.
type docNeeds map[string]bool

// Per-flow document checklists. Quotes validate income, account opening
// validates identity with a photo instead.
var (
	quoteDocs = docNeeds{
		models.DocID:             true,
		models.DocProofOfAddress: true,
		models.DocProofOfIncome:  true,
	}
	newAccountDocs = docNeeds{
		models.DocID:             true,
		models.DocProofOfAddress: true,
		models.DocPhoto:          true,
	}
)

// checkDocuments walks the checklist in order and prompts for the first
// missing document. Returns true when a prompt was sent, false when the
// checklist is satisfied.
func (e *Engine) checkDocuments(ctx context.Context, convo models.Conversation, usage string, needs docNeeds) (bool, error) {
	for _, req := range docOrder {
		if !needs[req.docType] {
			continue
		}
		has, err := e.store.HasDocument(convo.Phone, req.docType)
		if err != nil {
			slog.Error("flow document check failed", "error", err, "phone", convo.Phone, "doc_type", req.docType)
			return false, fmt.Errorf("failed to check document %s: %w", req.docType, err)
		}
		if has {
			continue
		}

		slog.Debug("flow requesting document", "phone", convo.Phone, "doc_type", req.docType)
		prompt, err := e.generate(ctx, convo.Phone, docPromptContext(usage, req.requirement), "")
		if err != nil {
			prompt = "Para continuar" + req.requirement + "."
		}
		return true, e.reply(ctx, convo.Phone, prompt)
	}
	return false, nil
}

// mediaNeeds returns the document checklist for the active flow, or nil when
// the flow does not collect documents.
func mediaNeeds(status models.Status) docNeeds {
	switch status {
	case models.StatusMortgageQuote, models.StatusAutoQuote:
		return quoteDocs
	case models.StatusNewAccount:
		return newAccountDocs
	default:
		return nil
	}
}

// handleMedia stores an uploaded file under the first missing document slot
// of the active flow and acknowledges it. Returns false when the conversation
// is not in a document-collecting flow.
func (e *Engine) handleMedia(ctx context.Context, convo models.Conversation, turn models.Turn) (bool, error) {
	needs := mediaNeeds(convo.Status)
	if needs == nil {
		return false, nil
	}
	if e.media == nil {
		slog.Warn("flow media received but transport has no media store", "phone", convo.Phone)
		return false, e.reply(ctx, convo.Phone, msgMediaError)
	}

	docType := ""
	for _, req := range docOrder {
		if !needs[req.docType] {
			continue
		}
		has, err := e.store.HasDocument(convo.Phone, req.docType)
		if err != nil {
			return false, fmt.Errorf("failed to check document %s: %w", req.docType, err)
		}
		if !has {
			docType = req.docType
			break
		}
	}
	if docType == "" {
		slog.Debug("flow media received with checklist complete, ignoring", "phone", convo.Phone)
		return true, nil
	}

	content, mimeType, err := e.media.FetchMedia(ctx, turn.MediaID)
	if err != nil {
		slog.Error("flow failed to fetch inbound media", "error", err, "phone", convo.Phone, "media_id", turn.MediaID)
		return false, e.reply(ctx, convo.Phone, msgMediaError)
	}
	if turn.MimeType != "" {
		mimeType = turn.MimeType
	}

	docID, err := e.store.SaveDocument(models.Document{
		Phone:    convo.Phone,
		Type:     docType,
		MimeType: mimeType,
		Data:     content,
	})
	if err != nil {
		slog.Error("flow failed to store document", "error", err, "phone", convo.Phone, "doc_type", docType)
		return false, e.reply(ctx, convo.Phone, msgMediaError)
	}
	slog.Info("flow document stored", "phone", convo.Phone, "doc_type", docType, "document_id", docID)

	if e.extract.Enabled() {
		// Best effort: extraction failures never block the conversation.
		go func() {
			if err := e.extract.Upload(context.Background(), docType, convo.Phone, docID, fmt.Sprintf("doc-%d", docID), content); err != nil {
				slog.Warn("flow extraction upload failed", "error", err, "document_id", docID)
			}
		}()
	}

	if err := e.reply(ctx, convo.Phone, fmt.Sprintf("Gracias, hemos recibido tu %s.", docType)); err != nil {
		return false, err
	}
	return true, nil
}
