// Package models defines the core data structures shared across bankline modules.
//
// It contains the conversation state machine types, flow records, stored
// documents, message log entries, and the webhook/dashboard wire formats.
package models

import "time"

// Status identifies the active flow of a conversation. Exactly one flow can be
// active per phone number at a time; StatusIdle means no flow is active and the
// next message is routed through intent classification.
type Status string

// Conversation status values. The idle value and the per-flow values are part
// of the persisted schema, so they must remain stable.
const (
	StatusIdle             Status = "Nuevo Chat"
	StatusMortgageQuote    Status = "hipotecario"
	StatusAutoQuote        Status = "automotriz"
	StatusNewAccount       Status = "nuevaCuenta"
	StatusAdditionalCard   Status = "tarjetaAdicional"
	StatusBlockedCard      Status = "tarjetaExtraviada"
	StatusPayrollAdvance   Status = "adelantoNomina"
	StatusUtilityPayment   Status = "pagarLuz"
	StatusMovementsSummary Status = "resumenMovimientos"
	StatusDeactivateCard   Status = "desactivarTarjetaAdicional"
	StatusMonthlyPromos    Status = "ofertasMes"
	StatusStatementCopy    Status = "ultimoEstadoCuenta"
)

// Conversation is the per-phone dialogue state. Phone is the canonical
// identifier used to key every other record.
type Conversation struct {
	ID        int64     `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FlowKind names one of the flow record tables.
type FlowKind string

const (
	FlowQuote          FlowKind = "quote"
	FlowAdditionalCard FlowKind = "additional_card"
	FlowBlockedCard    FlowKind = "blocked_card"
	FlowNewAccount     FlowKind = "new_account"
	// FlowStaged backs the two stage-counter flows (payroll advance and
	// utility payment); they share one record per conversation.
	FlowStaged FlowKind = "staged"
)

// Flow record lifecycle states. A record is created open and is closed exactly
// once, either on completion or by the cancel interceptor.
const (
	FlowOpen   = "En Proceso"
	FlowClosed = "Enviado"
)

// Quote categories stored in the quotes table.
const (
	QuoteMortgage = "hipotecario"
	QuoteAuto     = "automotriz"
)

// FlowRecord is one row of a flow table. Fields holds the data columns keyed
// by column name; values accumulate monotonically while the record is open.
type FlowRecord struct {
	ID     int64
	Phone  string
	Status string
	Fields map[string]string
	Stage  int
}

// Field returns the named field or the empty string.
func (r FlowRecord) Field(name string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

// Complete reports whether every named field is non-empty.
func (r FlowRecord) Complete(fields ...string) bool {
	for _, f := range fields {
		if r.Field(f) == "" {
			return false
		}
	}
	return true
}

// Message origins for the conversation log.
const (
	OriginUser = "User"
	OriginBot  = "Bot"
)

// Message is one entry of the conversation log. The most recent entries form
// the history window handed to the language model.
type Message struct {
	Phone     string    `json:"phone"`
	Origin    string    `json:"origin"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Document types collected during document-gated flows, in the fixed order the
// requirement checker asks for them.
const (
	DocID             = "ID"
	DocProofOfAddress = "Comprobante de Domicilio"
	DocProofOfIncome  = "Comprobante de Ingresos"
	DocPhoto          = "Foto"
	DocSignature      = "Firma"
)

// Document is an uploaded file tied to a conversation.
type Document struct {
	ID        int64     `json:"id"`
	Phone     string    `json:"phone"`
	Type      string    `json:"type"`
	MimeType  string    `json:"mime_type"`
	Data      []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentInfo is Document without the blob, for listing endpoints.
type DocumentInfo struct {
	ID        int64     `json:"id"`
	Phone     string    `json:"phone"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// CardReport records a card reported as lost, for back-office follow-up.
type CardReport struct {
	ID         int64     `json:"id"`
	Phone      string    `json:"phone"`
	CardNumber string    `json:"card_number"`
	CardType   string    `json:"card_type"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// CardReportNew is the status a report carries when first saved.
const CardReportNew = "Nuevo"

// TurnType classifies an inbound webhook message.
type TurnType string

const (
	TurnText        TurnType = "text"
	TurnDocument    TurnType = "document"
	TurnImage       TurnType = "image"
	TurnInteractive TurnType = "interactive"
)

// Turn is one inbound user event after webhook extraction. Text carries the
// message body for text turns and the selected row or button id for
// interactive turns; MediaID and MimeType are set for document/image turns.
type Turn struct {
	Type     TurnType
	Phone    string
	Name     string
	Text     string
	MediaID  string
	MimeType string
}

// IsMedia reports whether the turn carries an uploaded file.
func (t Turn) IsMedia() bool {
	return t.Type == TurnDocument || t.Type == TurnImage
}

// APIResponse is the standard JSON envelope for dashboard endpoints.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a success response with an optional result.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: "ok", Result: result}
}

// Error creates an error response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: "error", Message: message}
}
