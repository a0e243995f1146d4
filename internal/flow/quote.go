package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ribera-digital/bankline/internal/docgen"
	"github.com/ribera-digital/bankline/internal/models"
)

// Required quote fields per category.
var (
	mortgageQuoteFields = []string{"price", "postal_code", "term"}
	autoQuoteFields     = []string{"brand", "model", "year", "price", "term"}
)

func quoteFields(category string) []string {
	if category == models.QuoteAuto {
		return autoQuoteFields
	}
	return mortgageQuoteFields
}

// startQuote opens a quote record and asks for the asset value.
func (e *Engine) startQuote(ctx context.Context, convo models.Conversation, category string) error {
	status := models.StatusMortgageQuote
	intro, ask := msgQuoteMortgageIntro, msgQuoteAskProperty
	if category == models.QuoteAuto {
		status = models.StatusAutoQuote
		intro, ask = msgQuoteAutoIntro, msgQuoteAskVehicle
	}
	if err := e.setStatus(convo.Phone, status); err != nil {
		return err
	}
	if _, err := e.store.FindOrCreateFlow(models.FlowQuote, convo.Phone, map[string]string{"category": category}); err != nil {
		return fmt.Errorf("failed to open quote record: %w", err)
	}
	return e.replyAll(ctx, convo.Phone, intro, ask)
}

// continueQuote runs one slot-filling turn of the quote flow. Once the record
// is complete the conversation shifts to the document checklist; when every
// document is on file the request closes with a tracking number.
func (e *Engine) continueQuote(ctx context.Context, convo models.Conversation, category, text string) error {
	turn, err := e.fillSlots(ctx, convo, slotConfig{
		kind:     models.FlowQuote,
		label:    "quote",
		seed:     map[string]string{"category": category},
		keys:     quoteKeys,
		required: quoteFields(category),
		context:  func(rec models.FlowRecord) string { return quoteContext(category, rec) },
	}, text)
	if err != nil {
		return err
	}

	if !turn.parsed {
		if turn.wasComplete {
			return e.validateQuoteDocuments(ctx, convo, turn.rec)
		}
		return e.reply(ctx, convo.Phone, turn.response)
	}
	if !turn.complete {
		return e.relayProgress(ctx, convo.Phone, turn)
	}
	return e.deliverQuote(ctx, convo, category, turn.rec, turn.update.Message)
}

// deliverQuote renders the amortization PDF and sends it with the follow-up
// validation offer.
func (e *Engine) deliverQuote(ctx context.Context, convo models.Conversation, category string, rec models.FlowRecord, message string) error {
	if message != "" {
		if err := e.reply(ctx, convo.Phone, message); err != nil {
			return err
		}
	}

	price, err := strconv.ParseFloat(rec.Field("price"), 64)
	if err != nil {
		slog.Error("flow quote price unparseable", "error", err, "phone", convo.Phone, "price", rec.Field("price"))
		return fmt.Errorf("quote record has invalid price %q: %w", rec.Field("price"), err)
	}
	term, err := strconv.Atoi(rec.Field("term"))
	if err != nil {
		slog.Error("flow quote term unparseable", "error", err, "phone", convo.Phone, "term", rec.Field("term"))
		return fmt.Errorf("quote record has invalid term %q: %w", rec.Field("term"), err)
	}

	periods := term
	title := "Cotización de crédito automotriz"
	filename := "Cotización automotriz.pdf"
	if category == models.QuoteMortgage {
		// Mortgage terms are quoted in years.
		periods = term * 12
		title = "Cotización de crédito hipotecario"
		filename = "Cotización hipotecario.pdf"
	}

	content, err := docgen.QuotePDF(title, price, periods)
	if err != nil {
		return fmt.Errorf("failed to render quote pdf: %w", err)
	}

	if e.media != nil {
		e.pause(ctx, e.sendDelay)
		mediaID, err := e.media.UploadMedia(ctx, docgen.QuoteFilename(time.Now()), "application/pdf", content)
		if err != nil {
			slog.Error("flow failed to upload quote pdf", "error", err, "phone", convo.Phone)
			return fmt.Errorf("failed to upload quote pdf: %w", err)
		}
		if err := e.sender.SendDocument(ctx, convo.Phone, mediaID, filename); err != nil {
			return fmt.Errorf("failed to send quote pdf: %w", err)
		}
	} else {
		slog.Warn("flow quote pdf skipped, transport has no media store", "phone", convo.Phone)
	}

	e.pause(ctx, 2*e.sendDelay)
	return e.reply(ctx, convo.Phone, msgQuoteFollowUp)
}

// validateQuoteDocuments walks the quote document checklist; once satisfied
// the request closes with its tracking number.
func (e *Engine) validateQuoteDocuments(ctx context.Context, convo models.Conversation, rec models.FlowRecord) error {
	prompted, err := e.checkDocuments(ctx, convo, docUsageQuote, quoteDocs)
	if err != nil {
		return err
	}
	if prompted {
		return nil
	}

	slog.Info("flow quote request completed", "phone", convo.Phone, "quote_id", rec.ID)
	if err := e.replyAll(ctx, convo.Phone,
		fmt.Sprintf(msgQuoteDocsComplete, rec.ID),
		msgQuoteApproved,
		msgAnythingElse,
	); err != nil {
		return err
	}
	return e.finishFlow(convo.Phone, models.FlowQuote)
}
