package flow

import (
	"context"
	"log/slog"

	"github.com/ribera-digital/bankline/internal/models"
)

// interceptCancel runs before the active flow handler and asks the model
// whether the user wants to abandon the operation. A cancel closes every open
// flow record, so a later flow of the same kind starts from a fresh record.
// Model failures and unparseable responses count as "not cancelled".
func (e *Engine) interceptCancel(ctx context.Context, convo models.Conversation, text string) (bool, error) {
	response, err := e.generate(ctx, convo.Phone, cancelContext(), text)
	if err != nil {
		slog.Warn("flow cancel check failed, continuing flow", "error", err, "phone", convo.Phone)
		return false, nil
	}

	action, message, ok := parseAction(response)
	if !ok || action != "cancel" {
		return false, nil
	}

	if err := e.store.CloseAllFlows(convo.Phone); err != nil {
		slog.Error("flow cancel failed to close records", "error", err, "phone", convo.Phone)
		return false, err
	}
	if err := e.setStatus(convo.Phone, models.StatusIdle); err != nil {
		return false, err
	}
	if message == "" {
		message = msgAnything
	}
	return true, e.reply(ctx, convo.Phone, message)
}
