package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"koinonia.app/platform/internal/model"
)

// EventRepo provides event and RSVP row access.
type EventRepo struct {
	db *gorm.DB
}

// NewEventRepo creates an event repository.
func NewEventRepo(db *gorm.DB) *EventRepo {
	return &EventRepo{db: db}
}

// GetByID fetches a live event.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	var e model.Event
	if err := r.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// GetAnyByID fetches an event including soft-deleted (canceled) rows, so
// callers can distinguish "canceled" from "never existed".
func (r *EventRepo) GetAnyByID(ctx context.Context, id uint64) (*model.Event, error) {
	var e model.Event
	if err := r.db.WithContext(ctx).Unscoped().First(&e, id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts an event.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// Save persists all fields of an existing event.
func (r *EventRepo) Save(ctx context.Context, e *model.Event) error {
	return r.db.WithContext(ctx).Save(e).Error
}

// Cancel marks the event CANCELED and soft-deletes it in one update.
func (r *EventRepo) Cancel(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Model(&model.Event{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     model.EventCanceled,
			"deleted_at": time.Now(),
		}).Error
}

// ListFilters narrows an event listing. Zero values mean "no filter";
// Status defaults to ACTIVE at the manager level.
type ListFilters struct {
	CommunityID *uint64
	PublicOnly  bool
	From        *time.Time
	To          *time.Time
	Status      string
	Cursor      uint64
	Limit       int
}

// ListAccessible returns events matching the filters that viewerID may see,
// ascending by id from the cursor. Access filtering is part of the query
// predicate, so a full page means a full page: public events, events the
// viewer created, and private events of communities where the viewer is an
// APPROVED member. viewerID 0 means anonymous (public only).
//
// Fetches limit+1 rows so the caller can compute the next cursor.
func (r *EventRepo) ListAccessible(ctx context.Context, f ListFilters, viewerID uint64) ([]model.Event, error) {
	q := r.db.WithContext(ctx).Model(&model.Event{})

	if f.CommunityID != nil {
		q = q.Where("community_id = ?", *f.CommunityID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("event_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("event_date <= ?", *f.To)
	}
	if f.Cursor > 0 {
		q = q.Where("id > ?", f.Cursor)
	}

	if f.PublicOnly || viewerID == 0 {
		q = q.Where("is_public = ?", true)
	} else {
		memberCommunities := r.db.Model(&model.CommunityMember{}).
			Select("community_id").
			Where("user_id = ? AND status = ?", viewerID, model.MembershipApproved)
		q = q.Where(
			"is_public = ? OR creator_id = ? OR community_id IN (?)",
			true, viewerID, memberCommunities,
		)
	}

	var out []model.Event
	err := q.Order("id ASC").Limit(f.Limit + 1).Find(&out).Error
	return out, err
}

// ConfirmedAttendeeIDs returns user ids with a going or interested RSVP.
func (r *EventRepo) ConfirmedAttendeeIDs(ctx context.Context, eventID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&model.EventRSVP{}).
		Where("event_id = ? AND status IN ?", eventID, []string{model.RSVPGoing, model.RSVPInterested}).
		Order("id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// UpsertRSVP records or updates a user's RSVP.
func (r *EventRepo) UpsertRSVP(ctx context.Context, rsvp *model.EventRSVP) error {
	var existing model.EventRSVP
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", rsvp.EventID, rsvp.UserID).
		First(&existing).Error
	if err == nil {
		existing.Status = rsvp.Status
		return r.db.WithContext(ctx).Save(&existing).Error
	}
	if !IsNotFound(err) {
		return err
	}
	return r.db.WithContext(ctx).Create(rsvp).Error
}
