package models

import (
	"time"
)

// AuditLog records one mutation: what changed, who did it and from where.
// Old/new values are JSON snapshots. Rows are append-only; nothing in the
// application updates or deletes them. The struct carries a TableName field
// (the mutated table), so it relies on gorm's derived table name
// "audit_logs" instead of a TableName method.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TableName string    `gorm:"not null;index" json:"table_name"`
	RecordID  uint      `gorm:"index" json:"record_id"`
	Action    string    `gorm:"not null" json:"action"` // create | update | cancel | adjust | ...
	OldValues *string   `gorm:"type:text" json:"old_values,omitempty"`
	NewValues *string   `gorm:"type:text" json:"new_values,omitempty"`
	UserID    string    `gorm:"not null;default:'system'" json:"user_id"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
}

// IntegrityReport stores one aggregated run of the scheduled integrity
// checks. Detection only; nothing auto-corrects based on these rows.
type IntegrityReport struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RanAt     time.Time `gorm:"not null" json:"ran_at"`
	Status    string    `gorm:"not null" json:"status"` // PASS | WARN | FAIL | ERROR
	Summary   string    `gorm:"type:text" json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the IntegrityReport model
func (IntegrityReport) TableName() string {
	return "integrity_reports"
}
