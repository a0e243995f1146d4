package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ribera-digital/bankline/internal/models"
)

// Stage ceilings for the two step-counter flows. The counter never advances
// past its ceiling, repeated confirmations just replay the final message.
const (
	advanceMaxStage = 4
	utilityMaxStage = 5
)

// startPayrollAdvance opens the staged record and asks for the amount.
func (e *Engine) startPayrollAdvance(ctx context.Context, convo models.Conversation) error {
	if err := e.setStatus(convo.Phone, models.StatusPayrollAdvance); err != nil {
		return err
	}
	if _, err := e.store.FindOrCreateFlow(models.FlowStaged, convo.Phone, nil); err != nil {
		return fmt.Errorf("failed to open staged record: %w", err)
	}
	return e.reply(ctx, convo.Phone, msgAdvanceIntro)
}

// continuePayrollAdvance validates the user's reply for the current stage and
// advances through term, rate confirmation and the signature hand-off.
func (e *Engine) continuePayrollAdvance(ctx context.Context, convo models.Conversation, text string) error {
	rec, err := e.store.FindOrCreateFlow(models.FlowStaged, convo.Phone, nil)
	if err != nil {
		return fmt.Errorf("failed to open staged record: %w", err)
	}

	response, err := e.generate(ctx, convo.Phone, advanceContext(rec.Stage), text)
	if err != nil {
		return err
	}
	if !parseAdvance(response) {
		return e.reply(ctx, convo.Phone, response)
	}

	stage, err := e.store.AdvanceStage(convo.Phone, advanceMaxStage)
	if err != nil {
		slog.Error("flow failed to advance stage", "error", err, "phone", convo.Phone)
		return fmt.Errorf("failed to advance stage: %w", err)
	}
	slog.Debug("flow payroll advance stage", "phone", convo.Phone, "stage", stage)

	switch stage {
	case 2:
		return e.reply(ctx, convo.Phone, msgAdvanceTerm)
	case 3:
		return e.replyAll(ctx, convo.Phone, msgAdvanceRate, msgAdvanceProceed)
	default:
		// The flow stays open until the signature form comes back.
		return e.replyAll(ctx, convo.Phone,
			msgAdvanceReady,
			msgSignatureLink+e.signingURL+convo.Phone,
		)
	}
}

// startUtilityPayment opens the staged record and confirms the service.
func (e *Engine) startUtilityPayment(ctx context.Context, convo models.Conversation) error {
	if err := e.setStatus(convo.Phone, models.StatusUtilityPayment); err != nil {
		return err
	}
	if _, err := e.store.FindOrCreateFlow(models.FlowStaged, convo.Phone, nil); err != nil {
		return fmt.Errorf("failed to open staged record: %w", err)
	}
	return e.replyAll(ctx, convo.Phone, msgUtilityIntro, msgUtilityService)
}

// continueUtilityPayment walks the bill payment confirmations through amount,
// account, password and the final confirmation key.
func (e *Engine) continueUtilityPayment(ctx context.Context, convo models.Conversation, text string) error {
	rec, err := e.store.FindOrCreateFlow(models.FlowStaged, convo.Phone, nil)
	if err != nil {
		return fmt.Errorf("failed to open staged record: %w", err)
	}

	response, err := e.generate(ctx, convo.Phone, utilityContext(rec.Stage), text)
	if err != nil {
		return err
	}
	if !parseAdvance(response) {
		return e.reply(ctx, convo.Phone, response)
	}

	stage, err := e.store.AdvanceStage(convo.Phone, utilityMaxStage)
	if err != nil {
		slog.Error("flow failed to advance stage", "error", err, "phone", convo.Phone)
		return fmt.Errorf("failed to advance stage: %w", err)
	}
	slog.Debug("flow utility payment stage", "phone", convo.Phone, "stage", stage)

	switch stage {
	case 2:
		return e.reply(ctx, convo.Phone, msgUtilityBalance)
	case 3:
		return e.reply(ctx, convo.Phone, msgUtilityAccount)
	case 4:
		return e.reply(ctx, convo.Phone, msgUtilityPassword)
	default:
		slog.Info("flow utility payment completed", "phone", convo.Phone, "record_id", rec.ID)
		if err := e.replyAll(ctx, convo.Phone, msgUtilityDone, msgAnything); err != nil {
			return err
		}
		return e.finishFlow(convo.Phone, models.FlowStaged)
	}
}
