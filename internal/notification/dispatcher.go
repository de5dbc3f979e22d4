package notification

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"koinonia.app/platform/internal/model"
	"koinonia.app/platform/internal/pkg/logger"
	"koinonia.app/platform/internal/pkg/worker"
	"koinonia.app/platform/internal/push"
	"koinonia.app/platform/internal/repository"
)

// Note is the content of one logical notification, independent of recipient.
type Note struct {
	Title      string
	Body       string
	Data       map[string]string
	Category   string
	SourceType string
	SourceID   uint64
	DedupeKey  string
}

// Dispatcher wraps the Store with preference gating and push fan-out.
//
// Delivery contract: the in-app record is written first, always — a user must
// be able to find the notification in their inbox even when push delivery is
// disabled or broken. Push is best-effort on top, isolated per token.
type Dispatcher struct {
	store       *Store
	prefs       *PreferenceService
	users       *repository.UserRepo
	memberships *repository.MembershipRepo
	events      *repository.EventRepo
	sender      push.Sender
	pools       *worker.Pools
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(
	store *Store,
	prefs *PreferenceService,
	users *repository.UserRepo,
	memberships *repository.MembershipRepo,
	events *repository.EventRepo,
	sender push.Sender,
	pools *worker.Pools,
) *Dispatcher {
	return &Dispatcher{
		store:       store,
		prefs:       prefs,
		users:       users,
		memberships: memberships,
		events:      events,
		sender:      sender,
		pools:       pools,
	}
}

// NotifyUser delivers one notification to one user: in-app record first, then
// the preference gate, then one push attempt per registered token. A failure
// on one token is logged and does not abort the remaining tokens. The
// returned error reflects only the in-app write — push failures never
// propagate.
func (d *Dispatcher) NotifyUser(ctx context.Context, userID uint64, n Note) error {
	res := d.store.Create(ctx, "", CreateParams{
		UserID:     userID,
		Title:      n.Title,
		Body:       n.Body,
		Data:       n.Data,
		Category:   n.Category,
		SourceType: n.SourceType,
		SourceID:   n.SourceID,
		DedupeKey:  n.DedupeKey,
	})
	if !res.Success {
		return fmt.Errorf("create in-app notification for user %d: %s", userID, res.Reason())
	}

	// No push provider configured: the inbox write above is the delivery.
	if d.sender == nil {
		return nil
	}

	if !d.prefs.ShouldSend(ctx, userID, n.Category) {
		logger.Debug("push suppressed by preference",
			zap.Uint64("user_id", userID),
			zap.String("category", n.Category),
		)
		return nil
	}

	tokens, err := d.users.PushTokens(ctx, userID)
	if err != nil {
		logger.Warn("push token lookup failed",
			zap.Uint64("user_id", userID),
			zap.Error(err),
		)
		return nil
	}
	if len(tokens) == 0 {
		return nil
	}

	data := n.Data
	if n.SourceID != 0 {
		data = cloneData(n.Data)
		data["source_type"] = n.SourceType
		data["source_id"] = strconv.FormatUint(n.SourceID, 10)
	}

	// Push delivery is a post-commit side effect: it runs detached on the
	// push pool under the service lifecycle context, so the caller never
	// awaits the provider and a canceled request cannot strand it.
	deliver := func(ctx context.Context) {
		for _, token := range tokens {
			if err := d.sender.Send(ctx, token, n.Title, n.Body, data); err != nil {
				logger.Error("push delivery failed",
					zap.Uint64("user_id", userID),
					zap.String("token", token),
					zap.Error(err),
				)
			}
		}
	}
	if d.pools == nil {
		deliver(ctx)
		return nil
	}
	if err := d.pools.SubmitDetached("push", deliver); err != nil {
		logger.Warn("push fan-out rejected by worker pool",
			zap.Uint64("user_id", userID),
			zap.Error(err),
		)
	}
	return nil
}

// NotifyMany fans NotifyUser out to every recipient concurrently through the
// worker pool and waits for all of them to settle. One user's failure never
// affects delivery to the others; the returned error only summarizes the
// failure count for observability.
func (d *Dispatcher) NotifyMany(ctx context.Context, userIDs []uint64, n Note) error {
	if len(userIDs) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	var failCount atomic.Int64

	for _, userID := range userIDs {
		uid := userID
		wg.Add(1)
		err := d.pools.General.Submit(ctx, func(ctx context.Context) {
			defer wg.Done()
			if err := d.NotifyUser(ctx, uid, n); err != nil {
				failCount.Add(1)
				logger.Error("notification delivery failed",
					zap.Uint64("user_id", uid),
					zap.String("title", n.Title),
					zap.Error(err),
				)
			}
		})
		if err != nil {
			// Pool rejected the task (cancelled context / shutdown).
			wg.Done()
			failCount.Add(1)
		}
	}
	wg.Wait()

	if failed := failCount.Load(); failed > 0 {
		return fmt.Errorf("notification delivery failed for %d/%d recipients", failed, len(userIDs))
	}
	return nil
}

// NotifyCommunityMembers delivers to every APPROVED member of the community
// except the excluded users.
func (d *Dispatcher) NotifyCommunityMembers(ctx context.Context, communityID uint64, n Note, exclude ...uint64) error {
	ids, err := d.memberships.ApprovedUserIDs(ctx, communityID)
	if err != nil {
		return fmt.Errorf("resolve community %d members: %w", communityID, err)
	}
	return d.NotifyMany(ctx, withoutIDs(ids, exclude), n)
}

// NotifyEventAttendees delivers to every going/interested attendee of the
// event except the excluded users.
func (d *Dispatcher) NotifyEventAttendees(ctx context.Context, eventID uint64, n Note, exclude ...uint64) error {
	ids, err := d.events.ConfirmedAttendeeIDs(ctx, eventID)
	if err != nil {
		return fmt.Errorf("resolve event %d attendees: %w", eventID, err)
	}
	return d.NotifyMany(ctx, withoutIDs(ids, exclude), n)
}

// NotifyNearbyUsers delivers to users whose stored coordinates fall within
// radiusMiles of the given point, except the excluded users.
func (d *Dispatcher) NotifyNearbyUsers(ctx context.Context, lat, lon, radiusMiles float64, n Note, exclude ...uint64) error {
	candidates, err := d.users.WithCoordinates(ctx)
	if err != nil {
		return fmt.Errorf("resolve users with coordinates: %w", err)
	}

	var ids []uint64
	for _, u := range candidates {
		if u.Latitude == nil || u.Longitude == nil {
			continue
		}
		if haversineMiles(lat, lon, *u.Latitude, *u.Longitude) <= radiusMiles {
			ids = append(ids, u.ID)
		}
	}
	return d.NotifyMany(ctx, withoutIDs(ids, exclude), n)
}

func withoutIDs(ids, exclude []uint64) []uint64 {
	if len(exclude) == 0 {
		return ids
	}
	skip := make(map[uint64]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func cloneData(data map[string]string) map[string]string {
	out := make(map[string]string, len(data)+2)
	for k, v := range data {
		out[k] = v
	}
	return out
}

// Category helpers re-exported so callers don't import the model package for
// a string constant.
const (
	CategoryDM        = model.CategoryDM
	CategoryCommunity = model.CategoryCommunity
	CategoryForum     = model.CategoryForum
	CategoryFeed      = model.CategoryFeed
	CategoryEvent     = model.CategoryEvent
)
