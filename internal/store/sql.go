// Package store provides storage backends for bankline.
//
// This file implements the SQL logic shared by the SQLite and PostgreSQL
// stores. Queries are written with ? placeholders and rebound per driver.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ribera-digital/bankline/internal/models"
)

type sqlStore struct {
	db *sql.DB
	// q rewrites ? placeholders into the driver's positional form.
	q func(string) string
}

func (s *sqlStore) FindOrCreateConversation(phone, name string) (models.Conversation, error) {
	c, err := s.getConversation(phone)
	if errors.Is(err, ErrNotFound) {
		_, err = s.db.Exec(s.q(`INSERT INTO conversations (phone, name) VALUES (?, ?)`), phone, name)
		if err != nil {
			slog.Error("store: create conversation failed", "error", err, "phone", phone)
			return models.Conversation{}, fmt.Errorf("failed to create conversation for %s: %w", phone, err)
		}
		slog.Info("store: conversation created", "phone", phone)
		return s.getConversation(phone)
	}
	if err != nil {
		return models.Conversation{}, err
	}
	if name != "" && c.Name != name {
		if _, err := s.db.Exec(s.q(`UPDATE conversations SET name = ? WHERE phone = ?`), name, phone); err != nil {
			slog.Error("store: update conversation name failed", "error", err, "phone", phone)
			return models.Conversation{}, fmt.Errorf("failed to update conversation name: %w", err)
		}
		c.Name = name
	}
	return c, nil
}

func (s *sqlStore) getConversation(phone string) (models.Conversation, error) {
	var c models.Conversation
	err := s.db.QueryRow(
		s.q(`SELECT id, phone, name, status, created_at, updated_at FROM conversations WHERE phone = ?`),
		phone,
	).Scan(&c.ID, &c.Phone, &c.Name, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrNotFound
	}
	if err != nil {
		slog.Error("store: get conversation failed", "error", err, "phone", phone)
		return models.Conversation{}, fmt.Errorf("failed to query conversation %s: %w", phone, err)
	}
	return c, nil
}

func (s *sqlStore) UpdateConversationStatus(phone string, status models.Status) error {
	res, err := s.db.Exec(
		s.q(`UPDATE conversations SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE phone = ?`),
		string(status), phone,
	)
	if err != nil {
		slog.Error("store: update conversation status failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to update status for %s: %w", phone, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	slog.Info("store: conversation status updated", "phone", phone, "status", status)
	return nil
}

func (s *sqlStore) ListConversations() ([]models.Conversation, error) {
	rows, err := s.db.Query(s.q(`SELECT id, phone, name, status, created_at, updated_at FROM conversations ORDER BY id`))
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()
	var out []models.Conversation
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.Phone, &c.Name, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqlStore) SaveMessage(phone, origin, body string) error {
	_, err := s.db.Exec(s.q(`INSERT INTO messages (phone, origin, body) VALUES (?, ?, ?)`), phone, origin, body)
	if err != nil {
		slog.Error("store: save message failed", "error", err, "phone", phone, "origin", origin)
		return fmt.Errorf("failed to save message for %s: %w", phone, err)
	}
	return nil
}

func (s *sqlStore) RecentMessages(phone string, limit int) ([]models.Message, error) {
	rows, err := s.db.Query(
		s.q(`SELECT phone, origin, body, created_at FROM messages WHERE phone = ? ORDER BY id DESC LIMIT ?`),
		phone, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages for %s: %w", phone, err)
	}
	defer rows.Close()
	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.Phone, &m.Origin, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Newest-first from the query; the history window reads oldest to newest.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *sqlStore) openFlow(t flowTable, phone string) (models.FlowRecord, error) {
	r := models.FlowRecord{Fields: make(map[string]string)}
	if t.staged {
		err := s.db.QueryRow(
			s.q(`SELECT id, phone, status, stage FROM staged_flows WHERE phone = ? AND status = ? ORDER BY id DESC LIMIT 1`),
			phone, models.FlowOpen,
		).Scan(&r.ID, &r.Phone, &r.Status, &r.Stage)
		if errors.Is(err, sql.ErrNoRows) {
			return r, ErrNotFound
		}
		if err != nil {
			return r, fmt.Errorf("failed to query %s for %s: %w", t.name, phone, err)
		}
		return r, nil
	}

	query := fmt.Sprintf(
		`SELECT id, phone, status, %s FROM %s WHERE phone = ? AND status = ? ORDER BY id DESC LIMIT 1`,
		strings.Join(t.columns, ", "), t.name,
	)
	dest := []interface{}{&r.ID, &r.Phone, &r.Status}
	vals := make([]sql.NullString, len(t.columns))
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	err := s.db.QueryRow(s.q(query), phone, models.FlowOpen).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	if err != nil {
		return r, fmt.Errorf("failed to query %s for %s: %w", t.name, phone, err)
	}
	for i, col := range t.columns {
		r.Fields[col] = vals[i].String
	}
	return r, nil
}

func (s *sqlStore) FindOrCreateFlow(kind models.FlowKind, phone string, seed map[string]string) (models.FlowRecord, error) {
	t, ok := flowTables[kind]
	if !ok {
		return models.FlowRecord{}, fmt.Errorf("unknown flow kind %q", kind)
	}
	rec, err := s.openFlow(t, phone)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return models.FlowRecord{}, err
	}

	cols := []string{"phone"}
	args := []interface{}{phone}
	for _, k := range sortedKeys(seed) {
		if !t.staged && !t.allowsColumn(k) {
			return models.FlowRecord{}, fmt.Errorf("seed field %q: %w", k, ErrUnknownField)
		}
		cols = append(cols, k)
		args = append(args, seed[k])
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s)`,
		t.name, strings.Join(cols, ", "), placeholders(len(cols)),
	)
	if _, err := s.db.Exec(s.q(query), args...); err != nil {
		slog.Error("store: create flow record failed", "error", err, "kind", kind, "phone", phone)
		return models.FlowRecord{}, fmt.Errorf("failed to create %s record for %s: %w", t.name, phone, err)
	}
	slog.Info("store: flow record created", "kind", kind, "phone", phone)
	return s.openFlow(t, phone)
}

func (s *sqlStore) UpdateFlowFields(kind models.FlowKind, phone string, fields map[string]string) error {
	t, ok := flowTables[kind]
	if !ok {
		return fmt.Errorf("unknown flow kind %q", kind)
	}
	if len(fields) == 0 {
		return nil
	}
	var sets []string
	var args []interface{}
	for _, k := range sortedKeys(fields) {
		if !t.allowsColumn(k) {
			return fmt.Errorf("field %q: %w", k, ErrUnknownField)
		}
		sets = append(sets, k+" = ?")
		args = append(args, fields[k])
	}
	args = append(args, phone, models.FlowOpen)
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE phone = ? AND status = ?`, t.name, strings.Join(sets, ", "))
	res, err := s.db.Exec(s.q(query), args...)
	if err != nil {
		slog.Error("store: update flow fields failed", "error", err, "kind", kind, "phone", phone)
		return fmt.Errorf("failed to update %s for %s: %w", t.name, phone, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	slog.Debug("store: flow fields updated", "kind", kind, "phone", phone, "fields", len(fields))
	return nil
}

func (s *sqlStore) AdvanceStage(phone string, maxStage int) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin stage transaction: %w", err)
	}
	defer tx.Rollback()

	var stage int
	err = tx.QueryRow(
		s.q(`SELECT stage FROM staged_flows WHERE phone = ? AND status = ? ORDER BY id DESC LIMIT 1`),
		phone, models.FlowOpen,
	).Scan(&stage)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read stage for %s: %w", phone, err)
	}
	if stage < maxStage {
		stage++
		if _, err := tx.Exec(
			s.q(`UPDATE staged_flows SET stage = ? WHERE phone = ? AND status = ?`),
			stage, phone, models.FlowOpen,
		); err != nil {
			return 0, fmt.Errorf("failed to advance stage for %s: %w", phone, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit stage transaction: %w", err)
	}
	slog.Debug("store: stage advanced", "phone", phone, "stage", stage)
	return stage, nil
}

func (s *sqlStore) CloseFlow(kind models.FlowKind, phone string) (bool, error) {
	t, ok := flowTables[kind]
	if !ok {
		return false, fmt.Errorf("unknown flow kind %q", kind)
	}
	res, err := s.db.Exec(
		s.q(fmt.Sprintf(`UPDATE %s SET status = ? WHERE phone = ? AND status = ?`, t.name)),
		models.FlowClosed, phone, models.FlowOpen,
	)
	if err != nil {
		slog.Error("store: close flow failed", "error", err, "kind", kind, "phone", phone)
		return false, fmt.Errorf("failed to close %s for %s: %w", t.name, phone, err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		slog.Info("store: flow closed", "kind", kind, "phone", phone)
	}
	return n > 0, nil
}

func (s *sqlStore) CloseAllFlows(phone string) error {
	for kind := range flowTables {
		if _, err := s.CloseFlow(kind, phone); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqlStore) SaveDocument(doc models.Document) (int64, error) {
	var id int64
	err := s.db.QueryRow(
		s.q(`INSERT INTO documents (phone, doc_type, mime_type, content) VALUES (?, ?, ?, ?) RETURNING id`),
		doc.Phone, doc.Type, doc.MimeType, doc.Data,
	).Scan(&id)
	if err != nil {
		slog.Error("store: save document failed", "error", err, "phone", doc.Phone, "type", doc.Type)
		return 0, fmt.Errorf("failed to save document for %s: %w", doc.Phone, err)
	}
	slog.Info("store: document saved", "phone", doc.Phone, "type", doc.Type, "id", id)
	return id, nil
}

func (s *sqlStore) GetDocument(id int64) (models.Document, error) {
	var d models.Document
	err := s.db.QueryRow(
		s.q(`SELECT id, phone, doc_type, mime_type, content, created_at FROM documents WHERE id = ?`),
		id,
	).Scan(&d.ID, &d.Phone, &d.Type, &d.MimeType, &d.Data, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Document{}, ErrNotFound
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to query document %d: %w", id, err)
	}
	return d, nil
}

func (s *sqlStore) ListDocuments() ([]models.DocumentInfo, error) {
	rows, err := s.db.Query(s.q(`SELECT id, phone, doc_type, created_at FROM documents ORDER BY id`))
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()
	var out []models.DocumentInfo
	for rows.Next() {
		var d models.DocumentInfo
		if err := rows.Scan(&d.ID, &d.Phone, &d.Type, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *sqlStore) HasDocument(phone, docType string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		s.q(`SELECT COUNT(1) FROM documents WHERE phone = ? AND doc_type = ?`),
		phone, docType,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check document %q for %s: %w", docType, phone, err)
	}
	return n > 0, nil
}

func (s *sqlStore) SaveCardReport(report models.CardReport) error {
	status := report.Status
	if status == "" {
		status = models.CardReportNew
	}
	_, err := s.db.Exec(
		s.q(`INSERT INTO card_reports (phone, card_number, card_type, status) VALUES (?, ?, ?, ?)`),
		report.Phone, report.CardNumber, report.CardType, status,
	)
	if err != nil {
		slog.Error("store: save card report failed", "error", err, "phone", report.Phone)
		return fmt.Errorf("failed to save card report for %s: %w", report.Phone, err)
	}
	slog.Info("store: card report saved", "phone", report.Phone)
	return nil
}

func (s *sqlStore) ListCardReports() ([]models.CardReport, error) {
	rows, err := s.db.Query(s.q(`SELECT id, phone, card_number, card_type, status, created_at FROM card_reports ORDER BY id`))
	if err != nil {
		return nil, fmt.Errorf("failed to query card reports: %w", err)
	}
	defer rows.Close()
	var out []models.CardReport
	for rows.Next() {
		var r models.CardReport
		if err := rows.Scan(&r.ID, &r.Phone, &r.CardNumber, &r.CardType, &r.Status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan card report row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqlStore) UpdateCardReportStatus(id int64, status string) (bool, error) {
	res, err := s.db.Exec(s.q(`UPDATE card_reports SET status = ? WHERE id = ?`), status, id)
	if err != nil {
		return false, fmt.Errorf("failed to update card report %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *sqlStore) SaveSignature(phone string, data []byte) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin signature transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRow(
		s.q(`INSERT INTO documents (phone, doc_type, mime_type, content) VALUES (?, ?, ?, ?) RETURNING id`),
		phone, models.DocSignature, "image/png", data,
	).Scan(&id)
	if err != nil {
		slog.Error("store: save signature failed", "error", err, "phone", phone)
		return 0, fmt.Errorf("failed to save signature for %s: %w", phone, err)
	}
	if _, err := tx.Exec(
		s.q(`UPDATE new_accounts SET form_signed = 'true' WHERE phone = ? AND status = ?`),
		phone, models.FlowOpen,
	); err != nil {
		return 0, fmt.Errorf("failed to mark account form signed for %s: %w", phone, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit signature transaction: %w", err)
	}
	slog.Info("store: signature saved", "phone", phone, "id", id)
	return id, nil
}

func (s *sqlStore) FlushUserData(phone string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin flush transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(s.q(`DELETE FROM documents WHERE phone = ?`), phone); err != nil {
		return fmt.Errorf("failed to delete documents for %s: %w", phone, err)
	}
	if _, err := tx.Exec(s.q(`DELETE FROM messages WHERE phone = ?`), phone); err != nil {
		return fmt.Errorf("failed to delete messages for %s: %w", phone, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit flush transaction: %w", err)
	}
	slog.Info("store: user data flushed", "phone", phone)
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
