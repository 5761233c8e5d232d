package services

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/marisol-bistro/marisol-pos-api/models"
)

// AuditEntry describes one mutation for the audit trail.
type AuditEntry struct {
	TableName string
	RecordID  uint
	Action    string
	OldValues interface{}
	NewValues interface{}
	Actor     Actor
}

// AuditService persists audit records off the request path. Writes are
// best-effort: a full queue or a failing database write is logged and
// dropped, never surfaced to the caller.
type AuditService struct {
	db      *gorm.DB
	queue   chan models.AuditLog
	done    chan struct{}
	closeMu sync.Mutex
	closed  bool
}

// NewAuditService starts the single background writer.
func NewAuditService(db *gorm.DB) *AuditService {
	s := &AuditService{
		db:    db,
		queue: make(chan models.AuditLog, 256),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Record enqueues one audit entry. It never blocks and never returns an
// error; audit failure must not fail the primary operation.
func (s *AuditService) Record(entry AuditEntry) {
	if s == nil {
		return
	}

	row := models.AuditLog{
		TableName: entry.TableName,
		RecordID:  entry.RecordID,
		Action:    entry.Action,
		OldValues: marshalValues(entry.OldValues),
		NewValues: marshalValues(entry.NewValues),
		UserID:    entry.Actor.UserID,
		IPAddress: entry.Actor.IPAddress,
	}
	if row.UserID == "" {
		row.UserID = "system"
	}

	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- row:
	default:
		log.Warn().Str("table", entry.TableName).Str("action", entry.Action).
			Msg("audit queue full, dropping entry")
	}
}

func (s *AuditService) run() {
	defer close(s.done)
	for row := range s.queue {
		if err := s.db.Create(&row).Error; err != nil {
			log.Error().Err(err).Str("table", row.TableName).Str("action", row.Action).
				Msg("failed to persist audit entry")
		}
	}
}

// Close stops accepting entries and waits for the queue to drain.
func (s *AuditService) Close() {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.closeMu.Unlock()
	<-s.done
}

// List returns recent audit entries, newest first.
func (s *AuditService) List(limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []models.AuditLog
	if err := s.db.Order("id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func marshalValues(v interface{}) *string {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal audit values")
		return nil
	}
	s := string(b)
	return &s
}
