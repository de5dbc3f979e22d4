// Package notification implements the platform notification system: the
// single-entry-point store for in-app inbox records, the preference-aware
// dispatcher that fans out to push tokens, recipient targeting helpers, and
// the cross-restart dedup gate used by scheduled jobs.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"koinonia.app/platform/internal/domain"
	"koinonia.app/platform/internal/model"
	"koinonia.app/platform/internal/pkg/logger"
	"koinonia.app/platform/internal/repository"
)

// Store is the single entry point for notification rows. No other code path
// writes the notifications table.
type Store struct {
	repo *repository.NotificationRepo
}

// NewStore creates a notification store.
func NewStore(repo *repository.NotificationRepo) *Store {
	return &Store{repo: repo}
}

// CreateParams holds the fields for creating a notification.
type CreateParams struct {
	UserID     uint64
	Title      string
	Body       string
	Data       map[string]string
	Category   string
	SourceType string
	SourceID   uint64
	DedupeKey  string
}

// Create inserts a notification. When DedupeKey is set and an unread row with
// the same key already exists for the user, the existing row is returned with
// a DUPLICATE status — a success, not an error: the caller's intent is
// already satisfied. A unique-constraint violation at insert time (the
// check-then-insert race) is converted to the same DUPLICATE outcome by
// re-fetching the surviving row.
func (s *Store) Create(ctx context.Context, requestID string, p CreateParams) domain.Result[*model.Notification] {
	if p.UserID == 0 {
		return domain.Fail[*model.Notification](domain.StatusInvalidInput, requestID, "user id is required")
	}
	if p.Title == "" {
		return domain.Fail[*model.Notification](domain.StatusInvalidInput, requestID, "title is required")
	}
	if p.Body == "" {
		return domain.Fail[*model.Notification](domain.StatusInvalidInput, requestID, "body is required")
	}
	category := p.Category
	if category == "" {
		category = model.CategoryFeed
	}

	if p.DedupeKey != "" {
		existing, err := s.repo.FindUnreadByDedupe(ctx, p.UserID, p.DedupeKey)
		if err != nil {
			return domain.Errorf[*model.Notification](requestID, "dedupe lookup failed", err)
		}
		if existing != nil {
			return domain.Duplicate(requestID, existing, "unread notification with same dedupe key exists")
		}
	}

	data := ""
	if len(p.Data) > 0 {
		raw, err := json.Marshal(p.Data)
		if err != nil {
			return domain.Errorf[*model.Notification](requestID, "marshal notification data", err)
		}
		data = string(raw)
	}

	n := &model.Notification{
		UserID:     p.UserID,
		Title:      p.Title,
		Body:       p.Body,
		Data:       data,
		Category:   category,
		SourceType: p.SourceType,
		SourceID:   p.SourceID,
		DedupeKey:  p.DedupeKey,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		if p.DedupeKey != "" && repository.IsUniqueViolation(err) {
			// Lost the insert race; the surviving row is the canonical one.
			existing, ferr := s.repo.FindUnreadByDedupe(ctx, p.UserID, p.DedupeKey)
			if ferr == nil && existing != nil {
				return domain.Duplicate(requestID, existing, "insert raced an identical unread notification")
			}
		}
		return domain.Errorf[*model.Notification](requestID, "insert notification failed", err)
	}

	logger.Debug("notification created",
		zap.Uint64("user_id", p.UserID),
		zap.String("category", category),
		zap.String("dedupe_key", p.DedupeKey),
	)
	return domain.OK(requestID, n, "notification created")
}

// Page is one page of a notification listing.
type Page struct {
	Items      []model.Notification `json:"items"`
	NextCursor *uint64              `json:"next_cursor"`
}

// List returns the user's notifications newest-first by id. The cursor is the
// last-seen id; a nil NextCursor means the listing is exhausted.
func (s *Store) List(ctx context.Context, requestID string, userID uint64, limit int, cursor uint64, unreadOnly bool) domain.Result[Page] {
	if userID == 0 {
		return domain.Fail[Page](domain.StatusInvalidInput, requestID, "user id is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := s.repo.List(ctx, userID, limit, cursor, unreadOnly)
	if err != nil {
		return domain.Errorf[Page](requestID, "list notifications failed", err)
	}

	page := Page{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		last := page.Items[len(page.Items)-1].ID
		page.NextCursor = &last
	}
	return domain.OK(requestID, page, fmt.Sprintf("%d notifications", len(page.Items)))
}

// UnreadCount returns the number of unread notifications for the user.
func (s *Store) UnreadCount(ctx context.Context, requestID string, userID uint64) domain.Result[int64] {
	if userID == 0 {
		return domain.Fail[int64](domain.StatusInvalidInput, requestID, "user id is required")
	}
	n, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return domain.Errorf[int64](requestID, "count unread notifications failed", err)
	}
	return domain.OK(requestID, n, "unread count resolved")
}

// MarkAsRead flags the notification read. Acting on another user's
// notification returns NOT_AUTHORIZED; a missing id returns NOT_FOUND.
func (s *Store) MarkAsRead(ctx context.Context, requestID string, id, userID uint64) domain.Result[*model.Notification] {
	n, res := s.ownedNotification(ctx, requestID, id, userID)
	if n == nil {
		return res
	}
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return domain.Errorf[*model.Notification](requestID, "mark notification read failed", err)
	}
	n.IsRead = true
	return domain.OK(requestID, n, "notification marked read")
}

// Delete removes the notification, ownership-checked like MarkAsRead.
func (s *Store) Delete(ctx context.Context, requestID string, id, userID uint64) domain.Result[*model.Notification] {
	n, res := s.ownedNotification(ctx, requestID, id, userID)
	if n == nil {
		return res
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return domain.Errorf[*model.Notification](requestID, "delete notification failed", err)
	}
	return domain.OK(requestID, n, "notification deleted")
}

// MarkAllAsRead flags every unread notification of the user read and returns
// how many rows changed.
func (s *Store) MarkAllAsRead(ctx context.Context, requestID string, userID uint64) domain.Result[int64] {
	if userID == 0 {
		return domain.Fail[int64](domain.StatusInvalidInput, requestID, "user id is required")
	}
	affected, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return domain.Errorf[int64](requestID, "mark all read failed", err)
	}
	return domain.OK(requestID, affected, fmt.Sprintf("%d notifications marked read", affected))
}

// ownedNotification loads the row and enforces ownership. Returns a non-nil
// notification on success; otherwise the second value carries the failure.
func (s *Store) ownedNotification(ctx context.Context, requestID string, id, userID uint64) (*model.Notification, domain.Result[*model.Notification]) {
	if id == 0 || userID == 0 {
		return nil, domain.Fail[*model.Notification](domain.StatusInvalidInput, requestID, "notification id and user id are required")
	}
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.Fail[*model.Notification](domain.StatusNotFound, requestID, "notification does not exist")
		}
		return nil, domain.Errorf[*model.Notification](requestID, "load notification failed", err)
	}
	if n.UserID != userID {
		return nil, domain.Fail[*model.Notification](domain.StatusNotAuthorized, requestID, "notification belongs to another user")
	}
	return n, domain.Result[*model.Notification]{}
}
