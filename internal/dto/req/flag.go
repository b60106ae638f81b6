package req

type CreateFlagRequest struct {
	Key            string `json:"key" binding:"required"`
	Type           string `json:"type" binding:"required"`
	DefaultValue   string `json:"default_value"`
	Description    string `json:"description"`
	OrganizationID uint64 `json:"organization_id"`
}

type UpdateFlagRequest struct {
	Key          *string `json:"key"`
	DefaultValue *string `json:"default_value"`
	Description  *string `json:"description"`
}

type CreateOverrideRequest struct {
	UserID uint64 `json:"user_id" binding:"required"`
	Value  string `json:"value"`
}

type ImportFlagRequest struct {
	OrganizationID uint64 `json:"organization_id" binding:"required"`
}
