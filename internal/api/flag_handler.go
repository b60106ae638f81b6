package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"flagpole/internal/dto/req"
	"flagpole/internal/dto/resp"
	"flagpole/internal/model"
	"flagpole/internal/service"
	v1 "flagpole/pkg/api/v1"

	"github.com/gin-gonic/gin"
)

// FlagProvider is the surface of the flag service consumed by the handlers.
type FlagProvider interface {
	GetFlag(ctx context.Context, id, userID uint64) (*model.Flag, error)
	CreateFlag(ctx context.Context, params service.CreateFlagParams, ownerID uint64) (*model.Flag, error)
	UpdateFlag(ctx context.Context, id uint64, params service.UpdateFlagParams, userID uint64) (*model.Flag, error)
	ToggleFlag(ctx context.Context, id, userID uint64) (*model.Flag, error)
	IsFlagEnabled(ctx context.Context, id, userID uint64) (bool, error)
	DeleteFlag(ctx context.Context, id, userID uint64) error
	CreateOverride(ctx context.Context, flagID, targetUserID uint64, value string, actorID uint64) (*model.Override, error)
	DeleteOverride(ctx context.Context, overrideID, actorID uint64) error
	GetFlagsWithOverrides(ctx context.Context, userID uint64) (map[string]v1.ResolvedFlag, error)
	ListFlagsForUser(ctx context.Context, userID uint64) ([]model.Flag, error)
	ListFlagsForOrganization(ctx context.Context, orgID, userID uint64) ([]model.Flag, error)
	ImportFlagToOrganization(ctx context.Context, flagID, orgID, userID uint64) (*model.Flag, error)
	ExportFlagToPersonal(ctx context.Context, flagID, userID uint64) (*model.Flag, error)
	ListAudits(ctx context.Context, flagID, userID uint64) ([]model.AuditLog, error)
	Health(ctx context.Context) error
	CacheAvailable(ctx context.Context) bool
}

type FlagHandler struct {
	service FlagProvider
}

func NewFlagHandler(service FlagProvider) *FlagHandler {
	return &FlagHandler{service: service}
}

func (h *FlagHandler) CreateFlag(c *gin.Context) {
	var r req.CreateFlagRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	flag, err := h.service.CreateFlag(c.Request.Context(), service.CreateFlagParams{
		Key:            r.Key,
		Type:           r.Type,
		DefaultValue:   r.DefaultValue,
		Description:    r.Description,
		OrganizationID: r.OrganizationID,
	}, service.GetOperatorID(c.Request.Context()))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp.FlagResponse{Flag: service.FlagView(flag)})
}

func (h *FlagHandler) GetFlag(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	flag, err := h.service.GetFlag(c.Request.Context(), id, service.GetOperatorID(c.Request.Context()))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.FlagResponse{Flag: service.FlagView(flag)})
}

func (h *FlagHandler) UpdateFlag(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var r req.UpdateFlagRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	flag, err := h.service.UpdateFlag(c.Request.Context(), id, service.UpdateFlagParams{
		Key:          r.Key,
		DefaultValue: r.DefaultValue,
		Description:  r.Description,
	}, service.GetOperatorID(c.Request.Context()))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.FlagResponse{Flag: service.FlagView(flag)})
}

func (h *FlagHandler) ToggleFlag(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	flag, err := h.service.ToggleFlag(c.Request.Context(), id, service.GetOperatorID(c.Request.Context()))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.FlagResponse{Flag: service.FlagView(flag)})
}

func (h *FlagHandler) GetFlagEnabled(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	enabled, err := h.service.IsFlagEnabled(c.Request.Context(), id, service.GetOperatorID(c.Request.Context()))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": enabled})
}

func (h *FlagHandler) DeleteFlag(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteFlag(c.Request.Context(), id, service.GetOperatorID(c.Request.Context())); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *FlagHandler) CreateOverride(c *gin.Context) {
	flagID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var r req.CreateOverrideRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	override, err := h.service.CreateOverride(c.Request.Context(), flagID, r.UserID, r.Value,
		service.GetOperatorID(c.Request.Context()))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp.OverrideResponse{Override: v1.OverrideView{
		ID:     override.ID,
		FlagID: override.FlagID,
		UserID: override.UserID,
		Value:  override.Value,
	}})
}

func (h *FlagHandler) DeleteOverride(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteOverride(c.Request.Context(), id, service.GetOperatorID(c.Request.Context())); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *FlagHandler) ListMyFlags(c *gin.Context) {
	flags, err := h.service.ListFlagsForUser(c.Request.Context(), service.GetOperatorID(c.Request.Context()))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.FlagListResponse{Flags: flagViews(flags)})
}

func (h *FlagHandler) GetResolvedView(c *gin.Context) {
	view, err := h.service.GetFlagsWithOverrides(c.Request.Context(), service.GetOperatorID(c.Request.Context()))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.ResolvedViewResponse{Flags: view})
}

func (h *FlagHandler) ListOrganizationFlags(c *gin.Context) {
	orgID, ok := pathID(c, "id")
	if !ok {
		return
	}
	flags, err := h.service.ListFlagsForOrganization(c.Request.Context(), orgID,
		service.GetOperatorID(c.Request.Context()))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.FlagListResponse{Flags: flagViews(flags)})
}

func (h *FlagHandler) ImportFlag(c *gin.Context) {
	flagID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var r req.ImportFlagRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	flag, err := h.service.ImportFlagToOrganization(c.Request.Context(), flagID, r.OrganizationID,
		service.GetOperatorID(c.Request.Context()))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.FlagResponse{Flag: service.FlagView(flag)})
}

func (h *FlagHandler) ExportFlag(c *gin.Context) {
	flagID, ok := pathID(c, "id")
	if !ok {
		return
	}
	flag, err := h.service.ExportFlagToPersonal(c.Request.Context(), flagID,
		service.GetOperatorID(c.Request.Context()))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.FlagResponse{Flag: service.FlagView(flag)})
}

func (h *FlagHandler) ListAudits(c *gin.Context) {
	flagID, ok := pathID(c, "id")
	if !ok {
		return
	}
	entries, err := h.service.ListAudits(c.Request.Context(), flagID, service.GetOperatorID(c.Request.Context()))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	items := make([]resp.AuditLogItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, resp.AuditLogItem{
			ID:        e.ID,
			Type:      e.Type,
			Message:   e.Message,
			FlagID:    e.FlagID,
			ActorID:   e.ActorID,
			CreatedAt: e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, items)
}

func (h *FlagHandler) HealthCheck(c *gin.Context) {
	if err := h.service.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"cache":  h.service.CacheAvailable(c.Request.Context()),
	})
}

func flagViews(flags []model.Flag) []v1.FlagView {
	views := make([]v1.FlagView, 0, len(flags))
	for i := range flags {
		views = append(views, service.FlagView(&flags[i]))
	}
	return views
}

func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// abortWithServiceError maps the service's typed failures onto HTTP status
// codes. Anything outside the taxonomy is a 500.
func abortWithServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, service.ErrAccessDenied):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
