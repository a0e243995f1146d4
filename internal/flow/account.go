package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ribera-digital/bankline/internal/models"
)

// newAccountFields are the slots the account opening collects; form_signed is
// set by the signature endpoint, not by conversation.
var newAccountFields = []string{"is_new", "account_type", "profession", "transactions", "monthly_amount", "pep"}

const docUsageNewAccount = "Estas ayudando a un cliente a abrir una cuenta"

// startNewAccount opens an account record and greets the customer.
func (e *Engine) startNewAccount(ctx context.Context, convo models.Conversation) error {
	if err := e.setStatus(convo.Phone, models.StatusNewAccount); err != nil {
		return err
	}
	if _, err := e.store.FindOrCreateFlow(models.FlowNewAccount, convo.Phone, nil); err != nil {
		return fmt.Errorf("failed to open account record: %w", err)
	}
	return e.reply(ctx, convo.Phone, msgNewAccountIntro)
}

// continueNewAccount runs one turn of the account opening. Once the account
// type and banking history are known the flow also starts collecting
// documents; a complete record hands off to the signature form, and the flow
// only closes when the signature arrives through the dashboard endpoint.
func (e *Engine) continueNewAccount(ctx context.Context, convo models.Conversation, text string) error {
	rec, err := e.store.FindOrCreateFlow(models.FlowNewAccount, convo.Phone, nil)
	if err != nil {
		return fmt.Errorf("failed to open account record: %w", err)
	}

	docStage := rec.Field("account_type") != "" && rec.Field("is_new") != ""
	if docStage {
		prompted, err := e.checkDocuments(ctx, convo, docUsageNewAccount, newAccountDocs)
		if err != nil {
			return err
		}
		if prompted {
			return nil
		}
	}

	turn, err := e.fillSlots(ctx, convo, slotConfig{
		kind:     models.FlowNewAccount,
		label:    "account",
		keys:     newAccountKeys,
		required: newAccountFields,
		context: func(rec models.FlowRecord) string {
			signing := rec.Complete(newAccountFields...) && rec.Field("form_signed") != "true"
			return newAccountContext(rec, signing)
		},
	}, text)
	if err != nil {
		return err
	}
	if !turn.parsed {
		return e.reply(ctx, convo.Phone, turn.response)
	}

	unsigned := turn.rec.Field("form_signed") != "true"
	if turn.complete && unsigned && !turn.wasComplete {
		slog.Info("flow account data complete, requesting signature", "phone", convo.Phone, "account_id", turn.rec.ID)
		return e.replyAll(ctx, convo.Phone,
			msgNewAccountReady,
			msgSignatureLink+e.signingURL+convo.Phone,
		)
	}
	return e.relayProgress(ctx, convo.Phone, turn)
}

// CompleteSignature finishes the flows waiting on a signature form: the
// account opening when one is open, otherwise the payroll advance. Called by
// the dashboard signature endpoint after the signature document is stored.
func (e *Engine) CompleteSignature(ctx context.Context, phone string) error {
	unlock := e.locks.Lock(phone)
	defer unlock()

	accountClosed, err := e.store.CloseFlow(models.FlowNewAccount, phone)
	if err != nil {
		return fmt.Errorf("failed to close account flow: %w", err)
	}
	if _, err := e.store.CloseFlow(models.FlowStaged, phone); err != nil {
		return fmt.Errorf("failed to close staged flow: %w", err)
	}

	congrats := msgAdvanceDisbursed
	if accountClosed {
		congrats = msgAccountCongrats
	}
	slog.Info("flow signature completed", "phone", phone, "account_flow", accountClosed)
	if err := e.replyAll(ctx, phone, msgSignatureSaved, congrats, msgAnything); err != nil {
		return err
	}
	return e.setStatus(phone, models.StatusIdle)
}
