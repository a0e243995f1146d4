package flow

import (
	"context"
	"log/slog"

	"github.com/ribera-digital/bankline/internal/cloudapi"
	"github.com/ribera-digital/bankline/internal/models"
)

// Action ids recognized by the idle intent classifier. Interactive list rows
// carry these ids directly, so they double as the menu row ids.
const (
	actionMortgage       = "hipotecario"
	actionAuto           = "automotriz"
	actionAdditionalCard = "tarjeta_adicional"
	actionReportCard     = "reportar_tarjeta_extraviada"
	actionUnblockCard    = "desbloquear_tarjeta_extraviada"
	actionBranchHours    = "horarios_sucursales"
	actionMovements      = "resumen_movimientos"
	actionOpenAccount    = "abrir_cuenta"
	actionDeactivateCard = "desactivar_tarjeta_adicional"
	actionPayUtility     = "pagar_luz"
	actionStatementCopy  = "copia_estado_cuenta"
	actionPayrollAdvance = "adelanto_nomina"
	actionMonthlyPromos  = "ofertas_mes"
	actionFlushData      = "borrar_todo"
	actionGreeting       = "saludo"
	actionFarewell       = "despedida"
)

// knownActions guards against the classifier inventing action ids.
var knownActions = map[string]bool{
	actionMortgage: true, actionAuto: true, actionAdditionalCard: true,
	actionReportCard: true, actionUnblockCard: true, actionBranchHours: true,
	actionMovements: true, actionOpenAccount: true, actionDeactivateCard: true,
	actionPayUtility: true, actionStatementCopy: true, actionPayrollAdvance: true,
	actionMonthlyPromos: true, actionFlushData: true, actionGreeting: true,
	actionFarewell: true,
}

// handleIdle classifies a message with no active flow and dispatches the
// matching action. Interactive selections skip classification, the row id is
// the action.
func (e *Engine) handleIdle(ctx context.Context, convo models.Conversation, text string) error {
	if text == "" {
		return nil
	}

	if knownActions[text] {
		return e.dispatchAction(ctx, convo, text, "")
	}

	response, err := e.generate(ctx, convo.Phone, idleContext(), text)
	if err != nil {
		return err
	}
	action, message, ok := parseAction(response)
	if !ok {
		slog.Debug("flow idle classification unparseable, relaying", "phone", convo.Phone)
		return e.reply(ctx, convo.Phone, response)
	}
	return e.dispatchAction(ctx, convo, action, message)
}

// dispatchAction starts the flow or one-shot behind an action id.
func (e *Engine) dispatchAction(ctx context.Context, convo models.Conversation, action, message string) error {
	slog.Info("flow action dispatched", "phone", convo.Phone, "action", action)
	switch action {
	case actionMortgage:
		return e.startQuote(ctx, convo, models.QuoteMortgage)
	case actionAuto:
		return e.startQuote(ctx, convo, models.QuoteAuto)
	case actionAdditionalCard:
		return e.startAdditionalCard(ctx, convo)
	case actionReportCard:
		return e.startBlockedCard(ctx, convo, message)
	case actionUnblockCard:
		return e.reply(ctx, convo.Phone, msgUnblockDone)
	case actionBranchHours:
		return e.runBranchHours(ctx, convo, message)
	case actionMovements:
		return e.startMovementsSummary(ctx, convo, message)
	case actionOpenAccount:
		return e.startNewAccount(ctx, convo)
	case actionDeactivateCard:
		return e.startDeactivateCard(ctx, convo, message)
	case actionPayUtility:
		return e.startUtilityPayment(ctx, convo)
	case actionStatementCopy:
		return e.startStatementCopy(ctx, convo)
	case actionPayrollAdvance:
		return e.startPayrollAdvance(ctx, convo)
	case actionMonthlyPromos:
		return e.startPromos(ctx, convo)
	case actionFlushData:
		return e.flushUserData(ctx, convo)
	case actionGreeting:
		return e.greet(ctx, convo)
	case actionFarewell:
		return e.reply(ctx, convo.Phone, msgFarewell)
	default:
		if message != "" {
			return e.reply(ctx, convo.Phone, message)
		}
		return e.reply(ctx, convo.Phone, msgWelcome)
	}
}

// greet welcomes the user and shows the options menu.
func (e *Engine) greet(ctx context.Context, convo models.Conversation) error {
	if err := e.reply(ctx, convo.Phone, msgWelcome); err != nil {
		return err
	}
	if err := e.sender.SendList(ctx, convo.Phone, actionMenu()); err != nil {
		slog.Warn("flow failed to send options menu", "error", err, "phone", convo.Phone)
	}
	return nil
}

// flushUserData erases the conversation's documents and messages.
func (e *Engine) flushUserData(ctx context.Context, convo models.Conversation) error {
	if err := e.store.FlushUserData(convo.Phone); err != nil {
		slog.Error("flow failed to flush user data", "error", err, "phone", convo.Phone)
		return err
	}
	slog.Info("flow user data flushed", "phone", convo.Phone)
	return e.reply(ctx, convo.Phone, msgDataFlushed)
}

// actionMenu is the interactive options list shown on greeting.
func actionMenu() cloudapi.List {
	return cloudapi.List{
		Header: "Asistente Banorte",
		Body:   "Estas son las operaciones con las que te puedo ayudar:",
		Footer: "Elige una opción o escríbeme directamente",
		Sections: []cloudapi.Section{
			{
				Title: "Créditos",
				Rows: []cloudapi.Row{
					{ID: actionMortgage, Title: "Crédito hipotecario", Description: "Cotiza el crédito para tu casa"},
					{ID: actionAuto, Title: "Crédito automotriz", Description: "Cotiza el crédito para tu auto"},
					{ID: actionPayrollAdvance, Title: "Adelanto de nómina", Description: "Hasta 10 veces tu nómina"},
				},
			},
			{
				Title: "Cuentas y tarjetas",
				Rows: []cloudapi.Row{
					{ID: actionOpenAccount, Title: "Abrir una cuenta"},
					{ID: actionAdditionalCard, Title: "Tarjeta adicional"},
					{ID: actionReportCard, Title: "Reportar tarjeta extraviada"},
					{ID: actionUnblockCard, Title: "Desbloquear tarjeta"},
					{ID: actionDeactivateCard, Title: "Desactivar tarjeta adicional"},
				},
			},
			{
				Title: "Consultas y pagos",
				Rows: []cloudapi.Row{
					{ID: actionPayUtility, Title: "Pagar recibo de luz"},
					{ID: actionMovements, Title: "Resumen de movimientos"},
					{ID: actionStatementCopy, Title: "Copia de estado de cuenta"},
					{ID: actionBranchHours, Title: "Horarios de sucursales"},
					{ID: actionMonthlyPromos, Title: "Promociones del mes"},
				},
			},
		},
	}
}
