package resp

import (
	"time"

	v1 "flagpole/pkg/api/v1"
)

type FlagResponse struct {
	Flag v1.FlagView `json:"flag"`
}

type FlagListResponse struct {
	Flags []v1.FlagView `json:"flags"`
}

type ResolvedViewResponse struct {
	Flags map[string]v1.ResolvedFlag `json:"flags"`
}

type OverrideResponse struct {
	Override v1.OverrideView `json:"override"`
}

type AuditLogItem struct {
	ID        uint64    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	FlagID    uint64    `json:"flag_id"`
	ActorID   uint64    `json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}
