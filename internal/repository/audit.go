package repository

import (
	"context"

	"flagpole/internal/model"

	"gorm.io/gorm"
)

// AuditInterface defines the interface for audit log persistence.
type AuditInterface interface {
	Create(ctx context.Context, entry *model.AuditLog) error
	ListByFlag(ctx context.Context, flagID uint64) ([]model.AuditLog, error)
	WithTx(tx *gorm.DB) any
}

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, entry *model.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *AuditRepository) ListByFlag(ctx context.Context, flagID uint64) ([]model.AuditLog, error) {
	var entries []model.AuditLog
	err := r.db.WithContext(ctx).
		Where("flag_id = ?", flagID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}

func (r *AuditRepository) WithTx(tx *gorm.DB) any {
	return &AuditRepository{db: tx}
}
