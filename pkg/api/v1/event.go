package v1

import "encoding/json"

// Event names carried on the push channel. The envelope shape is a stable
// contract with SDK clients; renaming an event is a breaking change.
const (
	EventFlagCreated     = "feature_flag.created"
	EventFlagUpdated     = "feature_flag.updated"
	EventFlagDeleted     = "feature_flag.deleted"
	EventOverrideCreated = "feature_flag.override.created"
	EventOverrideUpdated = "feature_flag.override.updated"
	EventOverrideDeleted = "feature_flag.override.deleted"
)

// Envelope is the wire shape of every pushed event.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
