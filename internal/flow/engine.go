// Package flow implements the conversation engine: it routes every inbound
// WhatsApp turn through cancel interception, document intake and the active
// flow handler, and produces the assistant's replies.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ribera-digital/bankline/internal/extractor"
	"github.com/ribera-digital/bankline/internal/genai"
	"github.com/ribera-digital/bankline/internal/messaging"
	"github.com/ribera-digital/bankline/internal/models"
	"github.com/ribera-digital/bankline/internal/store"
)

// Engine defaults.
const (
	// DefaultSigningURL is the signature form base; the phone number is
	// appended as the convo query value.
	DefaultSigningURL = "https://firmasaptiva.vulcanics.mx/firma?convo="
	// DefaultSendDelay paces the quote document delivery so the PDF arrives
	// after the accompanying text has been read.
	DefaultSendDelay = 3 * time.Second
	// HistoryWindow is how many recent messages the model sees.
	HistoryWindow = 5
)

// Opts holds configuration options for the engine.
type Opts struct {
	SigningURL string
	SendDelay  time.Duration
	Media      messaging.MediaStore
	Extractor  *extractor.Client
}

// Option defines a configuration option for the engine.
type Option func(*Opts)

// WithSigningURL overrides the signature form base URL.
func WithSigningURL(url string) Option {
	return func(o *Opts) { o.SigningURL = url }
}

// WithSendDelay overrides the pacing delay for document sends.
func WithSendDelay(d time.Duration) Option {
	return func(o *Opts) { o.SendDelay = d }
}

// WithMediaStore enables media transfer (quote PDFs, inbound documents).
func WithMediaStore(m messaging.MediaStore) Option {
	return func(o *Opts) { o.Media = m }
}

// WithExtractor forwards received documents to the extraction service.
func WithExtractor(e *extractor.Client) Option {
	return func(o *Opts) { o.Extractor = e }
}

// Engine drives the conversation state machine.
type Engine struct {
	store      store.Store
	llm        genai.Generator
	sender     messaging.Sender
	media      messaging.MediaStore
	extract    *extractor.Client
	signingURL string
	sendDelay  time.Duration
	locks      *keyedMutex
}

// NewEngine wires the engine dependencies.
func NewEngine(st store.Store, llm genai.Generator, sender messaging.Sender, opts ...Option) *Engine {
	cfg := Opts{
		SigningURL: DefaultSigningURL,
		SendDelay:  DefaultSendDelay,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("flow.NewEngine created", "media_enabled", cfg.Media != nil, "extractor_enabled", cfg.Extractor.Enabled(), "send_delay", cfg.SendDelay)
	return &Engine{
		store:      st,
		llm:        llm,
		sender:     sender,
		media:      cfg.Media,
		extract:    cfg.Extractor,
		signingURL: cfg.SigningURL,
		sendDelay:  cfg.SendDelay,
		locks:      newKeyedMutex(),
	}
}

// Handle processes one inbound turn end to end. Turns for the same phone
// number are serialized; turns for different numbers run concurrently.
func (e *Engine) Handle(ctx context.Context, turn models.Turn) error {
	unlock := e.locks.Lock(turn.Phone)
	defer unlock()

	slog.Debug("flow.Handle turn received", "phone", turn.Phone, "type", turn.Type, "has_text", turn.Text != "")

	convo, err := e.store.FindOrCreateConversation(turn.Phone, turn.Name)
	if err != nil {
		slog.Error("flow.Handle failed to load conversation", "error", err, "phone", turn.Phone)
		return fmt.Errorf("failed to load conversation for %s: %w", turn.Phone, err)
	}

	if turn.Text != "" {
		if err := e.store.SaveMessage(convo.Phone, models.OriginUser, turn.Text); err != nil {
			slog.Error("flow.Handle failed to save user message", "error", err, "phone", convo.Phone)
			return fmt.Errorf("failed to save user message: %w", err)
		}
	}

	if convo.Status != models.StatusIdle && turn.Text != "" {
		cancelled, err := e.interceptCancel(ctx, convo, turn.Text)
		if err != nil {
			return err
		}
		if cancelled {
			slog.Info("flow.Handle flow cancelled", "phone", convo.Phone, "status", convo.Status)
			return nil
		}
	}

	if turn.IsMedia() {
		handled, err := e.handleMedia(ctx, convo, turn)
		if err != nil {
			return err
		}
		if !handled {
			slog.Debug("flow.Handle media ignored outside document flow", "phone", convo.Phone, "status", convo.Status)
			return nil
		}
		// Fall through: a stored document can complete the active flow's
		// document checklist, so the handler runs with a blank message.
	}

	return e.dispatch(ctx, convo, turn.Text)
}

// HandleUnsupported answers a message type the assistant cannot read.
func (e *Engine) HandleUnsupported(ctx context.Context, phone, name string) error {
	unlock := e.locks.Lock(phone)
	defer unlock()

	if _, err := e.store.FindOrCreateConversation(phone, name); err != nil {
		return fmt.Errorf("failed to load conversation for %s: %w", phone, err)
	}
	return e.reply(ctx, phone, msgUnsupportedType)
}

// dispatch routes the turn to the handler for the conversation's status.
func (e *Engine) dispatch(ctx context.Context, convo models.Conversation, text string) error {
	slog.Debug("flow.dispatch", "phone", convo.Phone, "status", convo.Status)
	switch convo.Status {
	case models.StatusIdle:
		return e.handleIdle(ctx, convo, text)
	case models.StatusMortgageQuote:
		return e.continueQuote(ctx, convo, models.QuoteMortgage, text)
	case models.StatusAutoQuote:
		return e.continueQuote(ctx, convo, models.QuoteAuto, text)
	case models.StatusNewAccount:
		return e.continueNewAccount(ctx, convo, text)
	case models.StatusAdditionalCard:
		return e.continueAdditionalCard(ctx, convo, text)
	case models.StatusBlockedCard:
		return e.continueBlockedCard(ctx, convo, text)
	case models.StatusPayrollAdvance:
		return e.continuePayrollAdvance(ctx, convo, text)
	case models.StatusUtilityPayment:
		return e.continueUtilityPayment(ctx, convo, text)
	case models.StatusMovementsSummary:
		return e.runMovementsSummary(ctx, convo, text)
	case models.StatusDeactivateCard:
		return e.runDeactivateCard(ctx, convo, text)
	case models.StatusMonthlyPromos:
		return e.continuePromos(ctx, convo, text)
	case models.StatusStatementCopy:
		return e.continueStatementCopy(ctx, convo, text)
	default:
		slog.Warn("flow.dispatch unknown status, resetting to idle", "phone", convo.Phone, "status", convo.Status)
		if err := e.setStatus(convo.Phone, models.StatusIdle); err != nil {
			return err
		}
		convo.Status = models.StatusIdle
		return e.handleIdle(ctx, convo, text)
	}
}

// reply persists a bot message and delivers it. Every assistant reply goes
// through here so the conversation log stays complete.
func (e *Engine) reply(ctx context.Context, phone, body string) error {
	if err := e.store.SaveMessage(phone, models.OriginBot, body); err != nil {
		slog.Error("flow.reply failed to save bot message", "error", err, "phone", phone)
		return fmt.Errorf("failed to save bot message: %w", err)
	}
	if err := e.sender.SendText(ctx, phone, body); err != nil {
		return fmt.Errorf("failed to deliver reply: %w", err)
	}
	return nil
}

// replyAll sends a sequence of replies, stopping at the first failure.
func (e *Engine) replyAll(ctx context.Context, phone string, bodies ...string) error {
	for _, body := range bodies {
		if err := e.reply(ctx, phone, body); err != nil {
			return err
		}
	}
	return nil
}

// generate runs the model with the conversation's recent history window.
func (e *Engine) generate(ctx context.Context, phone, stateContext, userMessage string) (string, error) {
	history, err := e.store.RecentMessages(phone, HistoryWindow)
	if err != nil {
		slog.Error("flow.generate failed to load history", "error", err, "phone", phone)
		return "", fmt.Errorf("failed to load message history: %w", err)
	}
	response, err := e.llm.Respond(ctx, stateContext, history, userMessage)
	if err != nil {
		slog.Error("flow.generate model call failed", "error", err, "phone", phone)
		return "", fmt.Errorf("model call failed: %w", err)
	}
	return response, nil
}

func (e *Engine) setStatus(phone string, status models.Status) error {
	slog.Info("flow status change", "phone", phone, "status", status)
	if err := e.store.UpdateConversationStatus(phone, status); err != nil {
		slog.Error("flow failed to update status", "error", err, "phone", phone, "status", status)
		return fmt.Errorf("failed to update conversation status: %w", err)
	}
	return nil
}

// finishFlow closes a flow record and returns the conversation to idle.
func (e *Engine) finishFlow(phone string, kind models.FlowKind) error {
	if _, err := e.store.CloseFlow(kind, phone); err != nil {
		slog.Error("flow failed to close record", "error", err, "phone", phone, "kind", kind)
		return fmt.Errorf("failed to close %s flow: %w", kind, err)
	}
	return e.setStatus(phone, models.StatusIdle)
}

// pause sleeps for the given duration unless the context ends first.
func (e *Engine) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
