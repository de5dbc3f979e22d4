package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"koinonia.app/platform/internal/model"
)

// MembershipRepo provides community membership row access.
type MembershipRepo struct {
	db *gorm.DB
}

// NewMembershipRepo creates a membership repository.
func NewMembershipRepo(db *gorm.DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

// Find returns the membership row for (communityID, userID), if any.
func (r *MembershipRepo) Find(ctx context.Context, communityID, userID uint64) (*model.CommunityMember, error) {
	var m model.CommunityMember
	err := r.db.WithContext(ctx).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a membership row.
func (r *MembershipRepo) Create(ctx context.Context, m *model.CommunityMember) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// Save persists all fields of an existing row.
func (r *MembershipRepo) Save(ctx context.Context, m *model.CommunityMember) error {
	return r.db.WithContext(ctx).Save(m).Error
}

// Delete removes a membership row by id.
func (r *MembershipRepo) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&model.CommunityMember{}, id).Error
}

// DeleteByCommunity removes every membership row of a community. Used when a
// sole-member owner leaves and the community is soft-deleted.
func (r *MembershipRepo) DeleteByCommunity(ctx context.Context, communityID uint64) error {
	return r.db.WithContext(ctx).
		Where("community_id = ?", communityID).
		Delete(&model.CommunityMember{}).Error
}

// CountByStatus counts memberships of a community in the given status.
func (r *MembershipRepo) CountByStatus(ctx context.Context, communityID uint64, status string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.CommunityMember{}).
		Where("community_id = ? AND status = ?", communityID, status).
		Count(&n).Error
	return n, err
}

// ListByStatus returns memberships of a community in the given status,
// oldest first (join order).
func (r *MembershipRepo) ListByStatus(ctx context.Context, communityID uint64, status string) ([]model.CommunityMember, error) {
	var out []model.CommunityMember
	err := r.db.WithContext(ctx).
		Where("community_id = ? AND status = ?", communityID, status).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

// ApprovedUserIDs returns the user ids of all APPROVED members.
func (r *MembershipRepo) ApprovedUserIDs(ctx context.Context, communityID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&model.CommunityMember{}).
		Where("community_id = ? AND status = ?", communityID, model.MembershipApproved).
		Order("id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// ApprovedByRole returns user ids of APPROVED members holding the given role.
func (r *MembershipRepo) ApprovedByRole(ctx context.Context, communityID uint64, role string) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&model.CommunityMember{}).
		Where("community_id = ? AND status = ? AND role = ?", communityID, model.MembershipApproved, role).
		Order("id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// FirstApprovedExcept returns the oldest APPROVED membership row of the given
// role excluding one user, or nil when none exists. Role may be empty to
// match any role. Used for ownership transfer candidate selection.
func (r *MembershipRepo) FirstApprovedExcept(ctx context.Context, communityID uint64, role string, excludeUserID uint64) (*model.CommunityMember, error) {
	q := r.db.WithContext(ctx).
		Where("community_id = ? AND status = ? AND user_id <> ?", communityID, model.MembershipApproved, excludeUserID)
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var m model.CommunityMember
	if err := q.Order("id ASC").First(&m).Error; err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// PendingRequest is a PENDING membership joined with minimal profile fields.
type PendingRequest struct {
	MembershipID uint64    `json:"membership_id"`
	UserID       uint64    `json:"user_id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	RequestedAt  time.Time `json:"requested_at"`
}

// PendingWithUsers returns PENDING requests joined with user profile fields,
// oldest request first.
func (r *MembershipRepo) PendingWithUsers(ctx context.Context, communityID uint64) ([]PendingRequest, error) {
	var out []PendingRequest
	err := r.db.WithContext(ctx).Model(&model.CommunityMember{}).
		Select("community_members.id AS membership_id, community_members.user_id, users.username, users.display_name, community_members.created_at AS requested_at").
		Joins("JOIN users ON users.id = community_members.user_id").
		Where("community_members.community_id = ? AND community_members.status = ?", communityID, model.MembershipPending).
		Order("community_members.id ASC").
		Scan(&out).Error
	return out, err
}

// Transaction runs fn inside a database transaction with transactional
// repository instances bound to it.
func (r *MembershipRepo) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
