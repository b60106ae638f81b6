package model

import "time"

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type Organization struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Membership links a user to an organization with a role. Consumed read-only
// by the flag service; membership management lives outside this core.
type Membership struct {
	ID             uint64    `gorm:"primaryKey" json:"id"`
	OrganizationID uint64    `gorm:"not null;uniqueIndex:idx_membership_org_user" json:"organization_id"`
	UserID         uint64    `gorm:"not null;uniqueIndex:idx_membership_org_user" json:"user_id"`
	Role           string    `gorm:"size:16;not null;default:member" json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}
