package model

import (
	"errors"
	"time"
)

// ScopeKind says who owns a flag. A flag is owned by exactly one user or
// exactly one organization, never both and never neither.
type ScopeKind int

const (
	ScopePersonal ScopeKind = iota
	ScopeOrganizational
)

// Scope is the validated ownership of a flag. Construct through PersonalScope
// or OrganizationScope; the zero value is a personal scope with user id 0 and
// is rejected by Validate.
type Scope struct {
	Kind   ScopeKind
	UserID uint64
	OrgID  uint64
}

func PersonalScope(userID uint64) Scope {
	return Scope{Kind: ScopePersonal, UserID: userID}
}

func OrganizationScope(orgID uint64) Scope {
	return Scope{Kind: ScopeOrganizational, OrgID: orgID}
}

func (s Scope) Validate() error {
	switch s.Kind {
	case ScopePersonal:
		if s.UserID == 0 || s.OrgID != 0 {
			return errors.New("personal scope requires a user id and no organization id")
		}
	case ScopeOrganizational:
		if s.OrgID == 0 || s.UserID != 0 {
			return errors.New("organizational scope requires an organization id and no user id")
		}
	default:
		return errors.New("unknown scope kind")
	}
	return nil
}

// Flag is the persisted feature flag. The two nullable owner columns are the
// storage encoding of Scope; Scope()/SetScope keep them mutually exclusive.
type Flag struct {
	ID             uint64    `gorm:"primaryKey" json:"id"`
	Key            string    `gorm:"size:128;not null;index:idx_flag_scope_key" json:"key"`
	Type           string    `gorm:"size:16;not null" json:"type"`
	DefaultValue   string    `gorm:"type:text" json:"default_value"`
	Description    string    `gorm:"size:512" json:"description"`
	Enabled        bool      `gorm:"not null;default:false" json:"enabled"`
	OwnerUserID    *uint64   `gorm:"index:idx_flag_scope_key" json:"owner_user_id,omitempty"`
	OrganizationID *uint64   `gorm:"index:idx_flag_scope_key" json:"organization_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewFlag builds a flag in a validated scope. The enabled bit always starts
// false; enabling is a separate toggle.
func NewFlag(key, flagType, defaultValue, description string, scope Scope) (*Flag, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	f := &Flag{
		Key:          key,
		Type:         flagType,
		DefaultValue: defaultValue,
		Description:  description,
		Enabled:      false,
	}
	f.SetScope(scope)
	return f, nil
}

func (f *Flag) SetScope(scope Scope) {
	f.OwnerUserID = nil
	f.OrganizationID = nil
	switch scope.Kind {
	case ScopePersonal:
		uid := scope.UserID
		f.OwnerUserID = &uid
	case ScopeOrganizational:
		oid := scope.OrgID
		f.OrganizationID = &oid
	}
}

func (f *Flag) Scope() Scope {
	if f.OrganizationID != nil {
		return OrganizationScope(*f.OrganizationID)
	}
	if f.OwnerUserID != nil {
		return PersonalScope(*f.OwnerUserID)
	}
	return Scope{}
}

func (f *Flag) IsOrganizational() bool {
	return f.OrganizationID != nil
}
