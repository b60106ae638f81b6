package model

import "time"

// Override is a per-user value that supersedes the flag default for that user.
// The unique index backs the at-most-one-per-(flag,user) invariant; the
// service layer enforces supersede-on-recreate on top of it.
type Override struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	FlagID    uint64    `gorm:"not null;uniqueIndex:idx_override_flag_user" json:"flag_id"`
	UserID    uint64    `gorm:"not null;uniqueIndex:idx_override_flag_user" json:"user_id"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
