// Package events implements the event lifecycle manager. Authorization
// questions about community standing are delegated to the membership state
// machine; notifications on create/update/cancel go through the dispatcher
// and are best-effort, never rolling back the primary mutation.
package events

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"koinonia.app/platform/internal/domain"
	"koinonia.app/platform/internal/membership"
	"koinonia.app/platform/internal/model"
	"koinonia.app/platform/internal/notification"
	"koinonia.app/platform/internal/pkg/logger"
	"koinonia.app/platform/internal/repository"
)

// Notifier is the slice of the dispatcher the manager needs.
type Notifier interface {
	NotifyCommunityMembers(ctx context.Context, communityID uint64, n notification.Note, exclude ...uint64) error
	NotifyEventAttendees(ctx context.Context, eventID uint64, n notification.Note, exclude ...uint64) error
}

// Manager executes event transitions.
type Manager struct {
	events      *repository.EventRepo
	users       *repository.UserRepo
	memberships *membership.Service
	notifier    Notifier // optional: nil disables side-effect notifications
}

// NewManager creates an event manager.
func NewManager(
	events *repository.EventRepo,
	users *repository.UserRepo,
	memberships *membership.Service,
	notifier Notifier,
) *Manager {
	return &Manager{
		events:      events,
		users:       users,
		memberships: memberships,
		notifier:    notifier,
	}
}

// CreateParams holds event creation input.
type CreateParams struct {
	Title       string
	Description string
	EventDate   time.Time
	StartTime   string
	EndTime     string
	Location    string
	IsVirtual   bool
	MeetingURL  string
	IsPublic    bool
	CommunityID *uint64
}

// UpdateParams carries the allow-listed mutable fields. Nil pointers mean
// "leave unchanged"; anything outside this set is not forwarded.
type UpdateParams struct {
	Title       *string
	Description *string
	EventDate   *time.Time
	StartTime   *string
	EndTime     *string
	Location    *string
	IsVirtual   *bool
	MeetingURL  *string
	IsPublic    *bool
}

// ResolveEventAccess answers whether userID may view the event. Public events
// grant access unconditionally. Private events require the requester to be
// the creator or an APPROVED member (any role) of the event's community; a
// private event without a community is creator-only. userID 0 is anonymous.
func (m *Manager) ResolveEventAccess(ctx context.Context, requestID string, eventID, userID uint64) domain.Result[*model.Event] {
	if eventID == 0 {
		return domain.Fail[*model.Event](domain.StatusInvalidInput, requestID, "event id is required")
	}

	e, err := m.events.GetByID(ctx, eventID)
	if err != nil {
		if repository.IsNotFound(err) {
			return domain.Fail[*model.Event](domain.StatusEventNotFound, requestID, "event does not exist")
		}
		return domain.Errorf[*model.Event](requestID, "event lookup failed", err)
	}

	if e.IsPublic {
		return domain.OK(requestID, e, "public event")
	}
	if userID == 0 {
		return domain.Fail[*model.Event](domain.StatusNotAuthorized, requestID, "private event requires authentication")
	}
	if e.CreatorID == userID {
		return domain.OK(requestID, e, "requester created the event")
	}
	if e.CommunityID == nil {
		return domain.Fail[*model.Event](domain.StatusNotAuthorized, requestID, "private event without community is creator-only")
	}

	res := m.memberships.ResolveMembership(ctx, requestID, *e.CommunityID, userID)
	if res.Status == domain.StatusError {
		return domain.Errorf[*model.Event](requestID, "membership check failed", nil).
			With("membership_error", res.Diagnostics)
	}
	if res.Status == domain.StatusOK && res.Data != nil && res.Data.Status == model.MembershipApproved {
		return domain.OK(requestID, e, "requester is an approved community member")
	}
	return domain.Fail[*model.Event](domain.StatusNotAuthorized, requestID, "requester is not an approved member of the event's community")
}

// CreateEvent creates an event. Community events require the actor to be an
// APPROVED owner/moderator of the community (platform admins bypass);
// platform-wide events (no community) require a platform admin. All approved
// community members except the creator are notified with a summary.
func (m *Manager) CreateEvent(ctx context.Context, requestID string, p CreateParams, actorID uint64) domain.Result[*model.Event] {
	if actorID == 0 {
		return domain.Fail[*model.Event](domain.StatusInvalidInput, requestID, "actor id is required")
	}
	if missing := firstMissingField(p); missing != "" {
		return domain.Fail[*model.Event](domain.StatusInvalidInput, requestID, "missing required field").
			With("field", missing)
	}

	actor, err := m.users.GetByID(ctx, actorID)
	if err != nil {
		if repository.IsNotFound(err) {
			return domain.Fail[*model.Event](domain.StatusUserNotFound, requestID, "actor does not exist")
		}
		return domain.Errorf[*model.Event](requestID, "actor lookup failed", err)
	}

	if p.CommunityID == nil {
		if !actor.IsAdmin {
			return domain.Fail[*model.Event](domain.StatusNotAuthorized, requestID, "platform-wide events require a platform admin")
		}
	} else if !actor.IsAdmin {
		res := m.memberships.ResolveMembership(ctx, requestID, *p.CommunityID, actorID)
		switch {
		case res.Status == domain.StatusCommunityNotFound:
			return domain.Fail[*model.Event](domain.StatusCommunityNotFound, requestID, "target community does not exist")
		case res.Status == domain.StatusError:
			return domain.Errorf[*model.Event](requestID, "membership check failed", nil).
				With("membership_error", res.Diagnostics)
		case res.Status != domain.StatusOK || res.Data == nil ||
			res.Data.Status != model.MembershipApproved ||
			(res.Data.Role != model.RoleOwner && res.Data.Role != model.RoleModerator):
			return domain.Fail[*model.Event](domain.StatusNotAuthorized, requestID, "actor must be an approved owner or moderator of the community")
		}
	} else if p.CommunityID != nil {
		// Admin bypass still requires the community to exist.
		res := m.memberships.ResolveMembership(ctx, requestID, *p.CommunityID, actorID)
		if res.Status == domain.StatusCommunityNotFound {
			return domain.Fail[*model.Event](domain.StatusCommunityNotFound, requestID, "target community does not exist")
		}
	}

	e := &model.Event{
		Title:       p.Title,
		Description: p.Description,
		EventDate:   p.EventDate,
		StartTime:   p.StartTime,
		EndTime:     p.EndTime,
		Location:    p.Location,
		IsVirtual:   p.IsVirtual,
		MeetingURL:  p.MeetingURL,
		IsPublic:    p.IsPublic,
		CommunityID: p.CommunityID,
		CreatorID:   actorID,
		Status:      model.EventActive,
	}
	if err := m.events.Create(ctx, e); err != nil {
		return domain.Errorf[*model.Event](requestID, "event insert failed", err)
	}

	if p.CommunityID != nil && m.notifier != nil {
		note := notification.Note{
			Title:      "New event: " + e.Title,
			Body:       eventSummary(e),
			Category:   notification.CategoryEvent,
			SourceType: "event",
			SourceID:   e.ID,
			DedupeKey:  fmt.Sprintf("event-created:%d", e.ID),
		}
		if err := m.notifier.NotifyCommunityMembers(ctx, *p.CommunityID, note, actorID); err != nil {
			logger.Warn("event creation notification failed",
				zap.Uint64("event_id", e.ID),
				zap.Error(err),
			)
		}
	}

	logger.Info("event created",
		zap.String("request_id", requestID),
		zap.Uint64("event_id", e.ID),
		zap.Uint64("creator_id", actorID),
	)
	return domain.OK(requestID, e, "event created")
}

// UpdateEvent applies allow-listed changes. Updating a CANCELED event is
// forbidden (EVENT_CANCELED, terminal). Authorization mirrors CreateEvent,
// plus the original creator is always permitted. A material change — title,
// date, start time, location, or virtual flag — notifies confirmed attendees
// except the actor.
func (m *Manager) UpdateEvent(ctx context.Context, requestID string, eventID uint64, p UpdateParams, actorID uint64) domain.Result[*model.Event] {
	if eventID == 0 || actorID == 0 {
		return domain.Fail[*model.Event](domain.StatusInvalidInput, requestID, "event id and actor id are required")
	}

	e, res := m.fetchMutable(ctx, requestID, eventID)
	if !res.Success {
		return res
	}

	if res := m.authorizeMutation(ctx, requestID, e, actorID); !res.Success {
		return res
	}

	material := applyUpdate(e, p)
	if err := m.events.Save(ctx, e); err != nil {
		return domain.Errorf[*model.Event](requestID, "event update failed", err)
	}

	if material && m.notifier != nil {
		note := notification.Note{
			Title:      "Event updated: " + e.Title,
			Body:       eventSummary(e),
			Category:   notification.CategoryEvent,
			SourceType: "event",
			SourceID:   e.ID,
			DedupeKey:  fmt.Sprintf("event-updated:%d:%d", e.ID, time.Now().Unix()/3600),
		}
		if err := m.notifier.NotifyEventAttendees(ctx, e.ID, note, actorID); err != nil {
			logger.Warn("event update notification failed",
				zap.Uint64("event_id", e.ID),
				zap.Error(err),
			)
		}
	}

	logger.Info("event updated",
		zap.String("request_id", requestID),
		zap.Uint64("event_id", e.ID),
		zap.Uint64("actor_id", actorID),
		zap.Bool("material_change", material),
	)
	return domain.OK(requestID, e, "event updated").
		With("material_change", material)
}

// CancelEvent cancels an event: status CANCELED plus a soft-delete timestamp,
// in one update. Only the creator or a platform admin may cancel. Confirmed
// attendees except the actor are notified.
func (m *Manager) CancelEvent(ctx context.Context, requestID string, eventID, actorID uint64) domain.Result[*model.Event] {
	if eventID == 0 || actorID == 0 {
		return domain.Fail[*model.Event](domain.StatusInvalidInput, requestID, "event id and actor id are required")
	}

	e, res := m.fetchMutable(ctx, requestID, eventID)
	if !res.Success {
		return res
	}

	if e.CreatorID != actorID {
		actor, err := m.users.GetByID(ctx, actorID)
		if err != nil {
			if repository.IsNotFound(err) {
				return domain.Fail[*model.Event](domain.StatusUserNotFound, requestID, "actor does not exist")
			}
			return domain.Errorf[*model.Event](requestID, "actor lookup failed", err)
		}
		if !actor.IsAdmin {
			return domain.Fail[*model.Event](domain.StatusNotAuthorized, requestID, "only the creator or a platform admin can cancel an event")
		}
	}

	// The soft delete hides the event from scoped queries, but RSVP rows are
	// untouched, so the attendee roll is still resolvable afterwards.
	if err := m.events.Cancel(ctx, eventID); err != nil {
		return domain.Errorf[*model.Event](requestID, "event cancel failed", err)
	}
	e.Status = model.EventCanceled

	if m.notifier != nil {
		note := notification.Note{
			Title:      "Event canceled: " + e.Title,
			Body:       fmt.Sprintf("%s on %s has been canceled", e.Title, e.EventDate.Format("Jan 2")),
			Category:   notification.CategoryEvent,
			SourceType: "event",
			SourceID:   e.ID,
			DedupeKey:  fmt.Sprintf("event-canceled:%d", e.ID),
		}
		if err := m.notifier.NotifyEventAttendees(ctx, e.ID, note, actorID); err != nil {
			logger.Warn("event cancellation notification failed",
				zap.Uint64("event_id", e.ID),
				zap.Error(err),
			)
		}
	}

	logger.Info("event canceled",
		zap.String("request_id", requestID),
		zap.Uint64("event_id", e.ID),
		zap.Uint64("actor_id", actorID),
	)
	return domain.OK(requestID, e, "event canceled")
}

// ListPage is one page of an event listing.
type ListPage struct {
	Items      []model.Event `json:"items"`
	NextCursor *uint64       `json:"next_cursor"`
}

// ListFilters narrows an event listing.
type ListFilters struct {
	CommunityID *uint64
	PublicOnly  bool
	From        *time.Time
	To          *time.Time
	Status      string
	Cursor      uint64
	Limit       int
}

// ListEvents returns events the viewer may see, ascending by id with cursor
// pagination. Access filtering is part of the query predicate, so pages are
// full whenever enough accessible events exist. Anonymous viewers (userID 0)
// see only public events. Status defaults to ACTIVE.
func (m *Manager) ListEvents(ctx context.Context, requestID string, f ListFilters, userID uint64) domain.Result[ListPage] {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Status == "" {
		f.Status = model.EventActive
	}

	rows, err := m.events.ListAccessible(ctx, repository.ListFilters{
		CommunityID: f.CommunityID,
		PublicOnly:  f.PublicOnly,
		From:        f.From,
		To:          f.To,
		Status:      f.Status,
		Cursor:      f.Cursor,
		Limit:       f.Limit,
	}, userID)
	if err != nil {
		return domain.Errorf[ListPage](requestID, "event listing failed", err)
	}

	page := ListPage{Items: rows}
	if len(rows) > f.Limit {
		page.Items = rows[:f.Limit]
		last := page.Items[len(page.Items)-1].ID
		page.NextCursor = &last
	}
	return domain.OK(requestID, page, fmt.Sprintf("%d events", len(page.Items)))
}

// --- helpers ---

// fetchMutable loads a live event for mutation. Canceled events are
// soft-deleted, so a second unscoped lookup distinguishes EVENT_CANCELED
// (terminal, never mutable) from EVENT_NOT_FOUND.
func (m *Manager) fetchMutable(ctx context.Context, requestID string, eventID uint64) (*model.Event, domain.Result[*model.Event]) {
	e, err := m.events.GetByID(ctx, eventID)
	if err == nil {
		if e.Status == model.EventCanceled {
			return nil, domain.Fail[*model.Event](domain.StatusEventCanceled, requestID, "event is canceled")
		}
		return e, domain.OK(requestID, e, "event is live")
	}
	if !repository.IsNotFound(err) {
		return nil, domain.Errorf[*model.Event](requestID, "event lookup failed", err)
	}

	any, err := m.events.GetAnyByID(ctx, eventID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.Fail[*model.Event](domain.StatusEventNotFound, requestID, "event does not exist")
		}
		return nil, domain.Errorf[*model.Event](requestID, "event lookup failed", err)
	}
	if any.Status == model.EventCanceled {
		return nil, domain.Fail[*model.Event](domain.StatusEventCanceled, requestID, "event is canceled")
	}
	return nil, domain.Fail[*model.Event](domain.StatusEventNotFound, requestID, "event does not exist")
}

// authorizeMutation permits the creator, a platform admin, or an approved
// owner/moderator of the event's community.
func (m *Manager) authorizeMutation(ctx context.Context, requestID string, e *model.Event, actorID uint64) domain.Result[*model.Event] {
	if e.CreatorID == actorID {
		return domain.OK(requestID, e, "actor created the event")
	}

	actor, err := m.users.GetByID(ctx, actorID)
	if err != nil {
		if repository.IsNotFound(err) {
			return domain.Fail[*model.Event](domain.StatusUserNotFound, requestID, "actor does not exist")
		}
		return domain.Errorf[*model.Event](requestID, "actor lookup failed", err)
	}
	if actor.IsAdmin {
		return domain.OK(requestID, e, "actor is a platform admin")
	}
	if e.CommunityID == nil {
		return domain.Fail[*model.Event](domain.StatusNotAuthorized, requestID, "platform-wide events are creator/admin-only")
	}

	res := m.memberships.ResolveMembership(ctx, requestID, *e.CommunityID, actorID)
	if res.Status == domain.StatusError {
		return domain.Errorf[*model.Event](requestID, "membership check failed", nil).
			With("membership_error", res.Diagnostics)
	}
	if res.Status == domain.StatusOK && res.Data != nil &&
		res.Data.Status == model.MembershipApproved &&
		(res.Data.Role == model.RoleOwner || res.Data.Role == model.RoleModerator) {
		return domain.OK(requestID, e, "actor moderates the community")
	}
	return domain.Fail[*model.Event](domain.StatusNotAuthorized, requestID, "actor may not modify this event")
}

// applyUpdate forwards allow-listed fields and reports whether a material
// field (title, date, start time, location, virtual flag) changed.
func applyUpdate(e *model.Event, p UpdateParams) bool {
	material := false

	if p.Title != nil && *p.Title != e.Title {
		e.Title = *p.Title
		material = true
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.EventDate != nil && !p.EventDate.Equal(e.EventDate) {
		e.EventDate = *p.EventDate
		material = true
	}
	if p.StartTime != nil && *p.StartTime != e.StartTime {
		e.StartTime = *p.StartTime
		material = true
	}
	if p.EndTime != nil {
		e.EndTime = *p.EndTime
	}
	if p.Location != nil && *p.Location != e.Location {
		e.Location = *p.Location
		material = true
	}
	if p.IsVirtual != nil && *p.IsVirtual != e.IsVirtual {
		e.IsVirtual = *p.IsVirtual
		material = true
	}
	if p.MeetingURL != nil {
		e.MeetingURL = *p.MeetingURL
	}
	if p.IsPublic != nil {
		e.IsPublic = *p.IsPublic
	}
	return material
}

func firstMissingField(p CreateParams) string {
	switch {
	case p.Title == "":
		return "title"
	case p.Description == "":
		return "description"
	case p.EventDate.IsZero():
		return "event_date"
	case p.StartTime == "":
		return "start_time"
	}
	return ""
}

func eventSummary(e *model.Event) string {
	where := e.Location
	if e.IsVirtual {
		where = "online"
	}
	return fmt.Sprintf("%s — %s at %s, %s", e.Title, e.EventDate.Format("Mon Jan 2"), e.StartTime, where)
}
