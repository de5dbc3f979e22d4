// Package repository contains the gorm data access layer. All membership,
// event, and notification writes go through these repositories — no other
// code path touches the tables directly.
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"koinonia.app/platform/internal/model"
)

// ErrRecordNotFound aliases gorm's sentinel so callers don't import gorm.
var ErrRecordNotFound = gorm.ErrRecordNotFound

// IsNotFound reports whether err is a missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// CommunityRepo provides community row access.
type CommunityRepo struct {
	db *gorm.DB
}

// NewCommunityRepo creates a community repository.
func NewCommunityRepo(db *gorm.DB) *CommunityRepo {
	return &CommunityRepo{db: db}
}

// GetByID fetches a live (not soft-deleted) community.
func (r *CommunityRepo) GetByID(ctx context.Context, id uint64) (*model.Community, error) {
	var c model.Community
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a community.
func (r *CommunityRepo) Create(ctx context.Context, c *model.Community) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// SoftDelete marks a community deleted. Memberships are removed separately by
// the membership state machine within the same transaction.
func (r *CommunityRepo) SoftDelete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&model.Community{}, id).Error
}

// List returns live communities, newest first.
func (r *CommunityRepo) List(ctx context.Context, offset, limit int) ([]model.Community, error) {
	var out []model.Community
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
