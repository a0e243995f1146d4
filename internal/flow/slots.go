package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ribera-digital/bankline/internal/models"
)

// slotConfig describes one data-collection flow: the record it fills, the
// structured-response key map, the columns that must be set before the flow
// can finish, and the prompt built from the current record.
type slotConfig struct {
	kind     models.FlowKind
	label    string
	seed     map[string]string
	keys     map[string]string
	required []string
	context  func(rec models.FlowRecord) string
}

// slotTurn is the outcome of one slot-filling turn.
type slotTurn struct {
	rec         models.FlowRecord
	update      FieldUpdate
	response    string
	parsed      bool
	complete    bool
	wasComplete bool
}

// fillSlots runs one data-collection turn: loads the open record, asks the
// model, and applies any parsed field update to the record.
func (e *Engine) fillSlots(ctx context.Context, convo models.Conversation, cfg slotConfig, text string) (slotTurn, error) {
	rec, err := e.store.FindOrCreateFlow(cfg.kind, convo.Phone, cfg.seed)
	if err != nil {
		return slotTurn{}, fmt.Errorf("failed to open %s record: %w", cfg.label, err)
	}
	turn := slotTurn{rec: rec, wasComplete: rec.Complete(cfg.required...)}

	response, err := e.generate(ctx, convo.Phone, cfg.context(rec), text)
	if err != nil {
		return slotTurn{}, err
	}
	turn.response = response

	update, ok := ParseFieldUpdate(response, cfg.keys)
	if !ok {
		turn.complete = turn.wasComplete
		return turn, nil
	}
	turn.parsed = true
	turn.update = update

	if len(update.Fields) > 0 {
		if err := e.store.UpdateFlowFields(cfg.kind, convo.Phone, update.Fields); err != nil {
			slog.Error("flow failed to update record fields", "error", err, "flow", cfg.label, "phone", convo.Phone)
			return slotTurn{}, fmt.Errorf("failed to update %s record: %w", cfg.label, err)
		}
		for col, val := range update.Fields {
			turn.rec.Fields[col] = val
		}
	}
	turn.complete = turn.rec.Complete(cfg.required...)
	return turn, nil
}

// relayProgress answers a mid-collection turn: the model's message when it
// produced one, silence otherwise.
func (e *Engine) relayProgress(ctx context.Context, phone string, turn slotTurn) error {
	if turn.update.Message == "" {
		return nil
	}
	return e.reply(ctx, phone, turn.update.Message)
}
