// Package store provides storage backends for bankline.
//
// It includes an in-memory store for tests and development, plus SQLite and
// PostgreSQL backed stores for persistent deployments.
package store

import (
	"errors"
	"strings"

	"github.com/ribera-digital/bankline/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrUnknownField is returned when a flow field patch names a column outside
// the flow's allow-list.
var ErrUnknownField = errors.New("unknown flow field")

// Store is the persistence abstraction used by the flow engine and the API.
// Conversations are keyed by canonical phone number.
type Store interface {
	// FindOrCreateConversation returns the conversation for phone, creating an
	// idle one on first contact. The stored name is updated when it changes.
	FindOrCreateConversation(phone, name string) (models.Conversation, error)
	UpdateConversationStatus(phone string, status models.Status) error
	ListConversations() ([]models.Conversation, error)

	SaveMessage(phone, origin, body string) error
	// RecentMessages returns up to limit most recent entries ordered oldest to
	// newest, ready to be rendered as LLM history.
	RecentMessages(phone string, limit int) ([]models.Message, error)

	// FindOrCreateFlow returns the open flow record of the given kind, creating
	// one seeded with the given initial fields when none is open.
	FindOrCreateFlow(kind models.FlowKind, phone string, seed map[string]string) (models.FlowRecord, error)
	// UpdateFlowFields patches data columns of the open record. Keys must be in
	// the flow's column allow-list; values are written as given, so callers
	// filter empties to keep accumulation monotonic.
	UpdateFlowFields(kind models.FlowKind, phone string, fields map[string]string) error
	// AdvanceStage increments the staged flow counter, clamped at maxStage, and
	// returns the new value.
	AdvanceStage(phone string, maxStage int) (int, error)
	// CloseFlow marks the open record of the kind as sent. Returns whether a
	// record was actually open; closing an already-closed flow is a no-op.
	CloseFlow(kind models.FlowKind, phone string) (bool, error)
	CloseAllFlows(phone string) error

	SaveDocument(doc models.Document) (int64, error)
	GetDocument(id int64) (models.Document, error)
	ListDocuments() ([]models.DocumentInfo, error)
	HasDocument(phone, docType string) (bool, error)

	SaveCardReport(report models.CardReport) error
	ListCardReports() ([]models.CardReport, error)
	UpdateCardReportStatus(id int64, status string) (bool, error)

	// SaveSignature stores the signature document and marks the open new
	// account form as signed, in one transaction.
	SaveSignature(phone string, data []byte) (int64, error)
	// FlushUserData deletes the conversation's documents and messages in one
	// transaction. Flow records and the conversation row are kept.
	FlushUserData(phone string) error

	Close() error
}

// flowTable describes one flow record table and its data column allow-list.
type flowTable struct {
	name    string
	columns []string
	staged  bool
}

var flowTables = map[models.FlowKind]flowTable{
	models.FlowQuote: {
		name:    "quotes",
		columns: []string{"category", "brand", "model", "year", "price", "term", "postal_code"},
	},
	models.FlowAdditionalCard: {
		name:    "additional_cards",
		columns: []string{"holder_name", "relation", "credit_limit", "tax_id"},
	},
	models.FlowBlockedCard: {
		name:    "blocked_cards",
		columns: []string{"card_number", "card_type"},
	},
	models.FlowNewAccount: {
		name:    "new_accounts",
		columns: []string{"is_new", "account_type", "profession", "transactions", "monthly_amount", "pep", "form_signed"},
	},
	models.FlowStaged: {
		name:   "staged_flows",
		staged: true,
	},
}

// allowsColumn reports whether col is a data column of the table.
func (t flowTable) allowsColumn(col string) bool {
	for _, c := range t.columns {
		if c == col {
			return true
		}
	}
	return false
}

// DetectDSNType determines whether a DSN targets PostgreSQL or SQLite.
// PostgreSQL DSNs use URL schemes or key=value form; everything else is
// treated as an SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}
