package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/ribera-digital/bankline/internal/models"
)

// InMemoryStore keeps all records in process memory. It implements the full
// Store interface and is used by tests and local development runs.
type InMemoryStore struct {
	mu            sync.Mutex
	nextID        int64
	conversations map[string]*models.Conversation
	messages      []models.Message
	flows         map[models.FlowKind][]*models.FlowRecord
	documents     []models.Document
	cardReports   []models.CardReport
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]*models.Conversation),
		flows:         make(map[models.FlowKind][]*models.FlowRecord),
	}
}

func (s *InMemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *InMemoryStore) FindOrCreateConversation(phone, name string) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conversations[phone]; ok {
		if name != "" && c.Name != name {
			c.Name = name
			c.UpdatedAt = time.Now()
		}
		return *c, nil
	}
	c := &models.Conversation{
		ID:        s.id(),
		Phone:     phone,
		Name:      name,
		Status:    models.StatusIdle,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.conversations[phone] = c
	return *c, nil
}

func (s *InMemoryStore) UpdateConversationStatus(phone string, status models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[phone]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) ListConversations() ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, *c)
	}
	return out, nil
}

func (s *InMemoryStore) SaveMessage(phone, origin, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, models.Message{
		Phone:     phone,
		Origin:    origin,
		Body:      body,
		CreatedAt: time.Now(),
	})
	return nil
}

func (s *InMemoryStore) RecentMessages(phone string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []models.Message
	for _, m := range s.messages {
		if m.Phone == phone {
			matched = append(matched, m)
		}
	}
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

func (s *InMemoryStore) openFlow(kind models.FlowKind, phone string) *models.FlowRecord {
	for _, r := range s.flows[kind] {
		if r.Phone == phone && r.Status == models.FlowOpen {
			return r
		}
	}
	return nil
}

func (s *InMemoryStore) FindOrCreateFlow(kind models.FlowKind, phone string, seed map[string]string) (models.FlowRecord, error) {
	table, ok := flowTables[kind]
	if !ok {
		return models.FlowRecord{}, fmt.Errorf("unknown flow kind %q", kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.openFlow(kind, phone); r != nil {
		return copyRecord(r), nil
	}
	r := &models.FlowRecord{
		ID:     s.id(),
		Phone:  phone,
		Status: models.FlowOpen,
		Fields: make(map[string]string),
		Stage:  1,
	}
	for k, v := range seed {
		if !table.staged && !table.allowsColumn(k) {
			return models.FlowRecord{}, fmt.Errorf("seed field %q: %w", k, ErrUnknownField)
		}
		r.Fields[k] = v
	}
	s.flows[kind] = append(s.flows[kind], r)
	return copyRecord(r), nil
}

func (s *InMemoryStore) UpdateFlowFields(kind models.FlowKind, phone string, fields map[string]string) error {
	table, ok := flowTables[kind]
	if !ok {
		return fmt.Errorf("unknown flow kind %q", kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.openFlow(kind, phone)
	if r == nil {
		return ErrNotFound
	}
	for k, v := range fields {
		if !table.allowsColumn(k) {
			return fmt.Errorf("field %q: %w", k, ErrUnknownField)
		}
		r.Fields[k] = v
	}
	return nil
}

func (s *InMemoryStore) AdvanceStage(phone string, maxStage int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.openFlow(models.FlowStaged, phone)
	if r == nil {
		return 0, ErrNotFound
	}
	if r.Stage < maxStage {
		r.Stage++
	}
	return r.Stage, nil
}

func (s *InMemoryStore) CloseFlow(kind models.FlowKind, phone string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.openFlow(kind, phone)
	if r == nil {
		return false, nil
	}
	r.Status = models.FlowClosed
	return true, nil
}

func (s *InMemoryStore) CloseAllFlows(phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for kind := range flowTables {
		if r := s.openFlow(kind, phone); r != nil {
			r.Status = models.FlowClosed
		}
	}
	return nil
}

func (s *InMemoryStore) SaveDocument(doc models.Document) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.ID = s.id()
	doc.CreatedAt = time.Now()
	s.documents = append(s.documents, doc)
	return doc.ID, nil
}

func (s *InMemoryStore) GetDocument(id int64) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.documents {
		if d.ID == id {
			return d, nil
		}
	}
	return models.Document{}, ErrNotFound
}

func (s *InMemoryStore) ListDocuments() ([]models.DocumentInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DocumentInfo, 0, len(s.documents))
	for _, d := range s.documents {
		out = append(out, models.DocumentInfo{ID: d.ID, Phone: d.Phone, Type: d.Type, CreatedAt: d.CreatedAt})
	}
	return out, nil
}

func (s *InMemoryStore) HasDocument(phone, docType string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.documents {
		if d.Phone == phone && d.Type == docType {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) SaveCardReport(report models.CardReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	report.ID = s.id()
	report.CreatedAt = time.Now()
	if report.Status == "" {
		report.Status = models.CardReportNew
	}
	s.cardReports = append(s.cardReports, report)
	return nil
}

func (s *InMemoryStore) ListCardReports() ([]models.CardReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CardReport, len(s.cardReports))
	copy(out, s.cardReports)
	return out, nil
}

func (s *InMemoryStore) UpdateCardReportStatus(id int64, status string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cardReports {
		if s.cardReports[i].ID == id {
			s.cardReports[i].Status = status
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) SaveSignature(phone string, data []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.documents = append(s.documents, models.Document{
		ID:        id,
		Phone:     phone,
		Type:      models.DocSignature,
		MimeType:  "image/png",
		Data:      data,
		CreatedAt: time.Now(),
	})
	if r := s.openFlow(models.FlowNewAccount, phone); r != nil {
		r.Fields["form_signed"] = "true"
	}
	return id, nil
}

func (s *InMemoryStore) FlushUserData(phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.documents[:0]
	for _, d := range s.documents {
		if d.Phone != phone {
			docs = append(docs, d)
		}
	}
	s.documents = docs
	msgs := s.messages[:0]
	for _, m := range s.messages {
		if m.Phone != phone {
			msgs = append(msgs, m)
		}
	}
	s.messages = msgs
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

func copyRecord(r *models.FlowRecord) models.FlowRecord {
	out := *r
	out.Fields = make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	return out
}
