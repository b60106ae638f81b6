package model

import "time"

// Audit entry types written by the flag service.
const (
	AuditFlagCreated     = "flag.created"
	AuditFlagUpdated     = "flag.updated"
	AuditFlagToggled     = "flag.toggled"
	AuditFlagDeleted     = "flag.deleted"
	AuditFlagImported    = "flag.imported"
	AuditFlagExported    = "flag.exported"
	AuditOverrideCreated = "override.created"
	AuditOverrideDeleted = "override.deleted"
)

type AuditLog struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	Type      string    `gorm:"size:32;not null;index" json:"type"`
	Message   string    `gorm:"type:text" json:"message"`
	FlagID    uint64    `gorm:"index" json:"flag_id"`
	ActorID   uint64    `gorm:"index" json:"actor_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
