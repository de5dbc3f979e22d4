package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"koinonia.app/platform/internal/model"
)

// ActivityRepo provides the aggregate activity reads the scheduled jobs need.
// It never writes: posts and answers are owned by their feature handlers.
type ActivityRepo struct {
	db *gorm.DB
}

// NewActivityRepo creates an activity repository.
func NewActivityRepo(db *gorm.DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

// CommunityActivity is a per-community post count over a window.
type CommunityActivity struct {
	CommunityID uint64
	PostCount   int64
}

// ActiveCommunitiesSince returns live communities with at least minPosts
// posts created after the cutoff, busiest first.
func (r *ActivityRepo) ActiveCommunitiesSince(ctx context.Context, cutoff time.Time, minPosts int64) ([]CommunityActivity, error) {
	var out []CommunityActivity
	err := r.db.WithContext(ctx).Model(&model.Post{}).
		Select("community_id, COUNT(*) AS post_count").
		Where("created_at >= ?", cutoff).
		Group("community_id").
		Having("COUNT(*) >= ?", minPosts).
		Order("post_count DESC").
		Scan(&out).Error
	return out, err
}

// PostCountByAuthorSince counts posts a user authored after the cutoff.
func (r *ActivityRepo) PostCountByAuthorSince(ctx context.Context, authorID uint64, cutoff time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Post{}).
		Where("author_id = ? AND created_at >= ?", authorID, cutoff).
		Count(&n).Error
	return n, err
}

// TopAnswerSince returns the most upvoted apologetics answer created after
// the cutoff, or nil when the window is empty.
func (r *ActivityRepo) TopAnswerSince(ctx context.Context, cutoff time.Time) (*model.ApologeticsAnswer, error) {
	var a model.ApologeticsAnswer
	err := r.db.WithContext(ctx).
		Where("created_at >= ?", cutoff).
		Order("upvotes DESC, id DESC").
		First(&a).Error
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}
