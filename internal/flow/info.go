package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ribera-digital/bankline/internal/docgen"
	"github.com/ribera-digital/bankline/internal/models"
)

const statementFilename = "Edo_Cta_Banorte.pdf"

// runBranchHours answers a schedule question in place; no status change.
func (e *Engine) runBranchHours(ctx context.Context, convo models.Conversation, text string) error {
	response, err := e.generate(ctx, convo.Phone, hoursContext(), text)
	if err != nil {
		return err
	}
	if message, ok := parseStringField(response, "message"); ok {
		return e.reply(ctx, convo.Phone, message)
	}
	return e.reply(ctx, convo.Phone, response)
}

// startMovementsSummary marks the summary in progress and runs it. On a
// parseable answer the summary completes in the same turn; otherwise the
// conversation stays in the state and retries on the next message.
func (e *Engine) startMovementsSummary(ctx context.Context, convo models.Conversation, text string) error {
	if err := e.setStatus(convo.Phone, models.StatusMovementsSummary); err != nil {
		return err
	}
	convo.Status = models.StatusMovementsSummary
	return e.runMovementsSummary(ctx, convo, text)
}

func (e *Engine) runMovementsSummary(ctx context.Context, convo models.Conversation, text string) error {
	response, err := e.generate(ctx, convo.Phone, movementsContext(), text)
	if err != nil {
		return err
	}
	intro, ok := parseStringField(response, "finalMessage")
	if !ok {
		return e.reply(ctx, convo.Phone, response)
	}
	if err := e.replyAll(ctx, convo.Phone, intro, movementsSummary, msgMovementsDetails, msgAnything); err != nil {
		return err
	}
	return e.setStatus(convo.Phone, models.StatusIdle)
}

// startDeactivateCard marks deactivation in progress and runs the first turn.
func (e *Engine) startDeactivateCard(ctx context.Context, convo models.Conversation, text string) error {
	if err := e.setStatus(convo.Phone, models.StatusDeactivateCard); err != nil {
		return err
	}
	convo.Status = models.StatusDeactivateCard
	return e.runDeactivateCard(ctx, convo, text)
}

func (e *Engine) runDeactivateCard(ctx context.Context, convo models.Conversation, text string) error {
	response, err := e.generate(ctx, convo.Phone, deactivateContext(), text)
	if err != nil {
		return err
	}
	number, ok := parseStringField(response, "number")
	if !ok {
		return e.reply(ctx, convo.Phone, response)
	}
	slog.Info("flow additional card deactivated", "phone", convo.Phone, "card_number", number)
	if err := e.replyAll(ctx, convo.Phone,
		fmt.Sprintf("La tarjeta ****%sestá ahora desactivada. Para reactivarla puedes indicármelo según lo necesites.", number),
		msgAnything,
	); err != nil {
		return err
	}
	return e.setStatus(convo.Phone, models.StatusIdle)
}

// startStatementCopy asks for the banking key before releasing the statement.
func (e *Engine) startStatementCopy(ctx context.Context, convo models.Conversation) error {
	if err := e.setStatus(convo.Phone, models.StatusStatementCopy); err != nil {
		return err
	}
	return e.reply(ctx, convo.Phone, msgStatementIntro)
}

// continueStatementCopy accepts any key and delivers the latest statement.
func (e *Engine) continueStatementCopy(ctx context.Context, convo models.Conversation, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if err := e.reply(ctx, convo.Phone, msgStatementHeader); err != nil {
		return err
	}
	if err := e.sendStatement(ctx, convo); err != nil {
		slog.Error("flow statement delivery failed", "error", err, "phone", convo.Phone)
		return e.reply(ctx, convo.Phone, msgStatementError)
	}
	if err := e.replyAll(ctx, convo.Phone, msgStatementFooter, msgAnything); err != nil {
		return err
	}
	return e.setStatus(convo.Phone, models.StatusIdle)
}

func (e *Engine) sendStatement(ctx context.Context, convo models.Conversation) error {
	if e.media == nil {
		return fmt.Errorf("transport has no media store")
	}
	content, err := docgen.StatementPDF(convo.Name, "****4242", statementMovements())
	if err != nil {
		return fmt.Errorf("failed to render statement: %w", err)
	}
	mediaID, err := e.media.UploadMedia(ctx, statementFilename, "application/pdf", content)
	if err != nil {
		return fmt.Errorf("failed to upload statement: %w", err)
	}
	return e.sender.SendDocument(ctx, convo.Phone, mediaID, statementFilename)
}

// statementMovements splits the demo movement lines into statement rows.
func statementMovements() [][2]string {
	lines := strings.Split(movementsSummary, "\n")
	rows := make([][2]string, 0, len(lines))
	for _, line := range lines {
		idx := strings.LastIndex(line, " - ")
		if idx < 0 {
			rows = append(rows, [2]string{line, ""})
			continue
		}
		rows = append(rows, [2]string{line[:idx], line[idx+3:]})
	}
	return rows
}

// startPromos sends the monthly promotions and stays in the state to answer
// follow-up questions.
func (e *Engine) startPromos(ctx context.Context, convo models.Conversation) error {
	if err := e.setStatus(convo.Phone, models.StatusMonthlyPromos); err != nil {
		return err
	}
	return e.replyAll(ctx, convo.Phone,
		msgPromosHeader,
		msgPromoMSI,
		msgPromoFood,
		msgPromoTravel,
		msgPromosFooter,
	)
}

// continuePromos answers one follow-up and returns to idle.
func (e *Engine) continuePromos(ctx context.Context, convo models.Conversation, text string) error {
	response, err := e.generate(ctx, convo.Phone, promosContext(), text)
	if err != nil {
		return err
	}
	if err := e.reply(ctx, convo.Phone, response); err != nil {
		return err
	}
	return e.setStatus(convo.Phone, models.StatusIdle)
}
