package repository

import (
	"context"
	"errors"

	"flagpole/internal/model"

	"gorm.io/gorm"
)

// FlagInterface is the persistence contract for flags. Implementations return
// (nil, nil) for a missing row; only infrastructure faults surface as errors.
type FlagInterface interface {
	GetByID(ctx context.Context, id uint64) (*model.Flag, error)
	ExistsInScope(ctx context.Context, key string, scope model.Scope) (bool, error)
	ListByOwner(ctx context.Context, userID uint64) ([]model.Flag, error)
	ListByOrganization(ctx context.Context, orgID uint64) ([]model.Flag, error)
	ListVisibleToUser(ctx context.Context, userID uint64, orgIDs []uint64) ([]model.Flag, error)
	Create(ctx context.Context, flag *model.Flag) error
	Save(ctx context.Context, flag *model.Flag) error
	Delete(ctx context.Context, id uint64) error
	IsEnabled(ctx context.Context, id uint64) (bool, error)
	SetEnabled(ctx context.Context, id uint64, enabled bool) error
	PingContext(ctx context.Context) error
	WithTx(tx *gorm.DB) any
}

type FlagRepository struct {
	db *gorm.DB
}

func NewFlagRepository(db *gorm.DB) *FlagRepository {
	return &FlagRepository{db: db}
}

func (r *FlagRepository) GetByID(ctx context.Context, id uint64) (*model.Flag, error) {
	var flag model.Flag
	if err := r.db.WithContext(ctx).First(&flag, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &flag, nil
}

func (r *FlagRepository) ExistsInScope(ctx context.Context, key string, scope model.Scope) (bool, error) {
	query := r.db.WithContext(ctx).Model(&model.Flag{}).Where("`key` = ?", key)
	switch scope.Kind {
	case model.ScopePersonal:
		query = query.Where("owner_user_id = ?", scope.UserID)
	case model.ScopeOrganizational:
		query = query.Where("organization_id = ?", scope.OrgID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *FlagRepository) ListByOwner(ctx context.Context, userID uint64) ([]model.Flag, error) {
	var flags []model.Flag
	err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", userID).
		Order("`key` ASC").
		Find(&flags).Error
	return flags, err
}

func (r *FlagRepository) ListByOrganization(ctx context.Context, orgID uint64) ([]model.Flag, error) {
	var flags []model.Flag
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("`key` ASC").
		Find(&flags).Error
	return flags, err
}

// ListVisibleToUser returns, in one pass, every flag the user can see:
// their personal flags plus the flags of every organization they belong to.
func (r *FlagRepository) ListVisibleToUser(ctx context.Context, userID uint64, orgIDs []uint64) ([]model.Flag, error) {
	var flags []model.Flag
	query := r.db.WithContext(ctx)
	if len(orgIDs) > 0 {
		query = query.Where("owner_user_id = ? OR organization_id IN ?", userID, orgIDs)
	} else {
		query = query.Where("owner_user_id = ?", userID)
	}
	err := query.Order("`key` ASC").Find(&flags).Error
	return flags, err
}

func (r *FlagRepository) Create(ctx context.Context, flag *model.Flag) error {
	return r.db.WithContext(ctx).Create(flag).Error
}

func (r *FlagRepository) Save(ctx context.Context, flag *model.Flag) error {
	return r.db.WithContext(ctx).Save(flag).Error
}

// Delete removes the flag with its overrides and audit rows in one
// transaction.
func (r *FlagRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("flag_id = ?", id).Delete(&model.Override{}).Error; err != nil {
			return err
		}
		if err := tx.Where("flag_id = ?", id).Delete(&model.AuditLog{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Flag{}, id).Error
	})
}

// IsEnabled reads just the enabled column. A missing flag reads as disabled.
func (r *FlagRepository) IsEnabled(ctx context.Context, id uint64) (bool, error) {
	var flag model.Flag
	err := r.db.WithContext(ctx).Select("enabled").First(&flag, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return flag.Enabled, nil
}

func (r *FlagRepository) SetEnabled(ctx context.Context, id uint64, enabled bool) error {
	return r.db.WithContext(ctx).
		Model(&model.Flag{}).
		Where("id = ?", id).
		Update("enabled", enabled).Error
}

func (r *FlagRepository) PingContext(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *FlagRepository) WithTx(tx *gorm.DB) any {
	return &FlagRepository{db: tx}
}
