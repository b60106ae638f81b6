package repository

import (
	"context"
	"errors"

	"flagpole/internal/model"

	"gorm.io/gorm"
)

// OverrideInterface is the persistence contract for per-user overrides. The
// store guarantees (flag, user) uniqueness; supersede semantics live in the
// service layer.
type OverrideInterface interface {
	FindByID(ctx context.Context, id uint64) (*model.Override, error)
	FindByFlagAndUser(ctx context.Context, flagID, userID uint64) (*model.Override, error)
	ListByFlag(ctx context.Context, flagID uint64) ([]model.Override, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Override, error)
	Create(ctx context.Context, override *model.Override) error
	DeleteByID(ctx context.Context, id uint64) error
	DeleteByFlagAndUser(ctx context.Context, flagID, userID uint64) error
	WithTx(tx *gorm.DB) any
}

type OverrideRepository struct {
	db *gorm.DB
}

func NewOverrideRepository(db *gorm.DB) *OverrideRepository {
	return &OverrideRepository{db: db}
}

func (r *OverrideRepository) FindByID(ctx context.Context, id uint64) (*model.Override, error) {
	var o model.Override
	if err := r.db.WithContext(ctx).First(&o, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (r *OverrideRepository) FindByFlagAndUser(ctx context.Context, flagID, userID uint64) (*model.Override, error) {
	var o model.Override
	err := r.db.WithContext(ctx).
		Where("flag_id = ? AND user_id = ?", flagID, userID).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (r *OverrideRepository) ListByFlag(ctx context.Context, flagID uint64) ([]model.Override, error) {
	var overrides []model.Override
	err := r.db.WithContext(ctx).Where("flag_id = ?", flagID).Find(&overrides).Error
	return overrides, err
}

func (r *OverrideRepository) ListByUser(ctx context.Context, userID uint64) ([]model.Override, error) {
	var overrides []model.Override
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&overrides).Error
	return overrides, err
}

func (r *OverrideRepository) Create(ctx context.Context, override *model.Override) error {
	return r.db.WithContext(ctx).Create(override).Error
}

func (r *OverrideRepository) DeleteByID(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&model.Override{}, id).Error
}

func (r *OverrideRepository) DeleteByFlagAndUser(ctx context.Context, flagID, userID uint64) error {
	return r.db.WithContext(ctx).
		Where("flag_id = ? AND user_id = ?", flagID, userID).
		Delete(&model.Override{}).Error
}

func (r *OverrideRepository) WithTx(tx *gorm.DB) any {
	return &OverrideRepository{db: tx}
}
