package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ribera-digital/bankline/internal/models"
)

var (
	additionalCardFields = []string{"holder_name", "relation", "credit_limit", "tax_id"}
	blockedCardFields    = []string{"card_number", "card_type"}
)

// startAdditionalCard opens the additional card request.
func (e *Engine) startAdditionalCard(ctx context.Context, convo models.Conversation) error {
	if err := e.setStatus(convo.Phone, models.StatusAdditionalCard); err != nil {
		return err
	}
	if _, err := e.store.FindOrCreateFlow(models.FlowAdditionalCard, convo.Phone, nil); err != nil {
		return fmt.Errorf("failed to open additional card record: %w", err)
	}
	return e.reply(ctx, convo.Phone, msgAdditionalCardIntro)
}

// continueAdditionalCard runs one slot-filling turn of the card request.
func (e *Engine) continueAdditionalCard(ctx context.Context, convo models.Conversation, text string) error {
	turn, err := e.fillSlots(ctx, convo, slotConfig{
		kind:     models.FlowAdditionalCard,
		label:    "additional card",
		keys:     additionalCardKeys,
		required: additionalCardFields,
		context:  additionalCardContext,
	}, text)
	if err != nil {
		return err
	}
	if !turn.parsed {
		return e.reply(ctx, convo.Phone, turn.response)
	}
	if !turn.complete {
		return e.relayProgress(ctx, convo.Phone, turn)
	}

	slog.Info("flow additional card request completed", "phone", convo.Phone, "record_id", turn.rec.ID)
	if turn.update.Message != "" {
		if err := e.reply(ctx, convo.Phone, turn.update.Message); err != nil {
			return err
		}
	}
	if err := e.replyAll(ctx, convo.Phone, msgAdditionalCardPickup, msgAnything); err != nil {
		return err
	}
	return e.finishFlow(convo.Phone, models.FlowAdditionalCard)
}

// startBlockedCard opens the lost card report. There is no fixed greeting,
// the model answers the report message directly in the same turn.
func (e *Engine) startBlockedCard(ctx context.Context, convo models.Conversation, text string) error {
	if err := e.setStatus(convo.Phone, models.StatusBlockedCard); err != nil {
		return err
	}
	if _, err := e.store.FindOrCreateFlow(models.FlowBlockedCard, convo.Phone, nil); err != nil {
		return fmt.Errorf("failed to open blocked card record: %w", err)
	}
	convo.Status = models.StatusBlockedCard
	return e.continueBlockedCard(ctx, convo, text)
}

// continueBlockedCard runs one slot-filling turn of the lost card report.
// Completion files the report for back-office follow-up.
func (e *Engine) continueBlockedCard(ctx context.Context, convo models.Conversation, text string) error {
	turn, err := e.fillSlots(ctx, convo, slotConfig{
		kind:     models.FlowBlockedCard,
		label:    "blocked card",
		keys:     blockedCardKeys,
		required: blockedCardFields,
		context:  blockedCardContext,
	}, text)
	if err != nil {
		return err
	}
	if !turn.parsed {
		return e.reply(ctx, convo.Phone, turn.response)
	}
	if !turn.complete {
		return e.relayProgress(ctx, convo.Phone, turn)
	}

	report := models.CardReport{
		Phone:      convo.Phone,
		CardNumber: turn.rec.Field("card_number"),
		CardType:   turn.rec.Field("card_type"),
		Status:     models.CardReportNew,
	}
	if err := e.store.SaveCardReport(report); err != nil {
		slog.Error("flow failed to file card report", "error", err, "phone", convo.Phone)
		return fmt.Errorf("failed to file card report: %w", err)
	}
	slog.Info("flow card report filed", "phone", convo.Phone, "card_number", report.CardNumber)

	if turn.update.Message != "" {
		if err := e.reply(ctx, convo.Phone, turn.update.Message); err != nil {
			return err
		}
	}
	if err := e.replyAll(ctx, convo.Phone, msgBlockedCardUnblock, msgAnything); err != nil {
		return err
	}
	return e.finishFlow(convo.Phone, models.FlowBlockedCard)
}
