package v1

import "time"

// Flag value types.
const (
	TypeBoolean = "boolean"
	TypeString  = "string"
	TypeNumber  = "number"
	TypeJSON    = "json"
)

// FlagView is the full flag representation embedded in created/updated events
// and returned by the read API.
type FlagView struct {
	ID             uint64    `json:"id"`
	Key            string    `json:"key"`
	Type           string    `json:"type"`
	DefaultValue   string    `json:"default_value"`
	Description    string    `json:"description"`
	Enabled        bool      `json:"enabled"`
	OwnerUserID    uint64    `json:"owner_user_id,omitempty"`
	OrganizationID uint64    `json:"organization_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FlagDeleted is the payload of a feature_flag.deleted event. The flag body is
// gone by the time the event fires, so only ids travel.
type FlagDeleted struct {
	ID     uint64 `json:"id"`
	UserID uint64 `json:"user_id"`
}

// OverrideView travels on override.created / override.deleted events.
type OverrideView struct {
	ID     uint64 `json:"id"`
	FlagID uint64 `json:"flag_id"`
	UserID uint64 `json:"user_id"`
	Value  string `json:"value"`
}

// ResolvedFlag is one entry of a user's resolved view: the effective value
// after layering any override on top of the flag default.
type ResolvedFlag struct {
	Key         string `json:"key"`
	Type        string `json:"type"`
	Value       string `json:"value"`
	Enabled     bool   `json:"enabled"`
	Overridden  bool   `json:"overridden"`
	Description string `json:"description,omitempty"`
}

func ValidType(t string) bool {
	switch t {
	case TypeBoolean, TypeString, TypeNumber, TypeJSON:
		return true
	}
	return false
}
