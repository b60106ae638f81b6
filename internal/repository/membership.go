package repository

import (
	"context"

	"flagpole/internal/model"

	"gorm.io/gorm"
)

// MembershipInterface exposes organization membership read-only; the flag
// service only ever asks questions about it.
type MembershipInterface interface {
	IsMember(ctx context.Context, orgID, userID uint64) (bool, error)
	IsAdmin(ctx context.Context, orgID, userID uint64) (bool, error)
	OrganizationIDs(ctx context.Context, userID uint64) ([]uint64, error)
}

type MembershipRepository struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

func (r *MembershipRepository) IsMember(ctx context.Context, orgID, userID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Membership{}).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *MembershipRepository) IsAdmin(ctx context.Context, orgID, userID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Membership{}).
		Where("organization_id = ? AND user_id = ? AND role = ?", orgID, userID, model.RoleAdmin).
		Count(&count).Error
	return count > 0, err
}

func (r *MembershipRepository) OrganizationIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&model.Membership{}).
		Where("user_id = ?", userID).
		Pluck("organization_id", &ids).Error
	return ids, err
}
