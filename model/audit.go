package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditEvent is an immutable record of a sensitive action outcome.
// Rows are write-only; nothing updates them after creation.
type AuditEvent struct {
	ID           int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID      string         `gorm:"index:idx_audit_trace;size:36" json:"trace_id"`
	TamerID      int64          `gorm:"index:idx_audit_tamer;not null" json:"tamer_id"`
	TamerName    string         `gorm:"size:32" json:"tamer_name"`
	TargetID     *int64         `json:"target_id"`
	TargetName   string         `gorm:"size:32" json:"target_name"`
	Action       string         `gorm:"size:64;not null" json:"action"`
	Success      bool           `gorm:"not null" json:"success"`
	Severity     int            `gorm:"default:0" json:"severity"` // 0=low 1=medium 2=high
	Details      datatypes.JSON `json:"details"`
	IP           string         `gorm:"size:45" json:"ip"`
	CreatedAt    time.Time      `gorm:"index:idx_audit_created;autoCreateTime:milli" json:"created_at"`
}
