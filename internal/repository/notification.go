package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"koinonia.app/platform/internal/model"
)

// NotificationRepo provides notification row access.
type NotificationRepo struct {
	db *gorm.DB
}

// NewNotificationRepo creates a notification repository.
func NewNotificationRepo(db *gorm.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Create inserts a notification row.
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// GetByID fetches a notification.
func (r *NotificationRepo) GetByID(ctx context.Context, id uint64) (*model.Notification, error) {
	var n model.Notification
	if err := r.db.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// FindUnreadByDedupe returns the newest unread notification for the user with
// the given dedupe key, or nil when none exists.
func (r *NotificationRepo) FindUnreadByDedupe(ctx context.Context, userID uint64, dedupeKey string) (*model.Notification, error) {
	var n model.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND dedupe_key = ? AND is_read = ?", userID, dedupeKey, false).
		Order("id DESC").
		First(&n).Error
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

// List returns the user's notifications newest-first by id. Fetches limit+1
// rows so the caller can compute the next cursor. cursor 0 starts from the top.
func (r *NotificationRepo) List(ctx context.Context, userID uint64, limit int, cursor uint64, unreadOnly bool) ([]model.Notification, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var out []model.Notification
	err := q.Order("id DESC").Limit(limit + 1).Find(&out).Error
	return out, err
}

// UnreadCount counts the user's unread notifications.
func (r *NotificationRepo) UnreadCount(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, err
}

// MarkRead flags a notification read.
func (r *NotificationRepo) MarkRead(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ?", id).
		Update("is_read", true).Error
}

// MarkAllRead flags every unread notification of the user read and returns
// the number of affected rows.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// Delete removes a notification row.
func (r *NotificationRepo) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&model.Notification{}, id).Error
}

// DeleteOlderThan removes notifications created before the cutoff and returns
// the number of deleted rows. Used by the retention sweep.
func (r *NotificationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&model.Notification{})
	return res.RowsAffected, res.Error
}

// ExistsBySourceSince reports whether any notification tagged with the given
// source type and dedupe key was created after the cutoff. This is the
// persisted half of the dedup gate: it survives process restarts.
func (r *NotificationRepo) ExistsBySourceSince(ctx context.Context, sourceType, dedupeKey string, cutoff time.Time) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("source_type = ? AND dedupe_key = ? AND created_at >= ?", sourceType, dedupeKey, cutoff).
		Count(&n).Error
	return n > 0, err
}

// IsUniqueViolation reports whether err is a unique-constraint violation.
// The dedupe-key check-then-insert window is a documented race; the partial
// unique index is the canonical enforcement and this converts its violation
// into the DUPLICATE outcome.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
