package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"koinonia.app/platform/internal/model"
)

// UserRepo provides user and push token row access.
type UserRepo struct {
	db *gorm.DB
}

// NewUserRepo creates a user repository.
func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetByID fetches a user.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail fetches a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a user.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

// Save persists all fields of an existing user.
func (r *UserRepo) Save(ctx context.Context, u *model.User) error {
	return r.db.WithContext(ctx).Save(u).Error
}

// UpdatePreferences writes the per-category notification flags.
func (r *UserRepo) UpdatePreferences(ctx context.Context, userID uint64, dm, community, forum, feed bool) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"notify_dm":        dm,
			"notify_community": community,
			"notify_forum":     forum,
			"notify_feed":      feed,
		}).Error
}

// TouchLastActive stamps the user's last activity time.
func (r *UserRepo) TouchLastActive(ctx context.Context, userID uint64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Update("last_active_at", at).Error
}

// WithCoordinates returns users that have stored coordinates.
func (r *UserRepo) WithCoordinates(ctx context.Context) ([]model.User, error) {
	var out []model.User
	err := r.db.WithContext(ctx).
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Find(&out).Error
	return out, err
}

// InactiveSince returns ids of users whose last activity is older than the
// cutoff (or who never recorded activity).
func (r *UserRepo) InactiveSince(ctx context.Context, cutoff time.Time) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("last_active_at IS NULL OR last_active_at < ?", cutoff).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// AllIDs returns every user id.
func (r *UserRepo) AllIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// PushTokens returns the registered push tokens for a user.
func (r *UserRepo) PushTokens(ctx context.Context, userID uint64) ([]string, error) {
	var tokens []string
	err := r.db.WithContext(ctx).Model(&model.PushToken{}).
		Where("user_id = ?", userID).
		Order("id ASC").
		Pluck("token", &tokens).Error
	return tokens, err
}

// RegisterPushToken stores a device token, moving it to the user if it was
// previously registered by another account on the same device.
func (r *UserRepo) RegisterPushToken(ctx context.Context, userID uint64, token, platform string) error {
	var existing model.PushToken
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&existing).Error
	if err == nil {
		existing.UserID = userID
		existing.Platform = platform
		return r.db.WithContext(ctx).Save(&existing).Error
	}
	if !IsNotFound(err) {
		return err
	}
	return r.db.WithContext(ctx).Create(&model.PushToken{
		UserID:   userID,
		Token:    token,
		Platform: platform,
	}).Error
}
