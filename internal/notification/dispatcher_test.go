package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"koinonia.app/platform/internal/cache"
	"koinonia.app/platform/internal/model"
	"koinonia.app/platform/internal/pkg/worker"
	"koinonia.app/platform/internal/push"
	"koinonia.app/platform/internal/repository"
	"koinonia.app/platform/internal/testutil"
)

type sentPush struct {
	token string
	title string
	data  map[string]string
}

// fakeSender records push attempts; tokens in failing return an error.
type fakeSender struct {
	mu      sync.Mutex
	sends   []sentPush
	failing map[string]bool
}

func (f *fakeSender) Send(_ context.Context, token, title, _ string, data map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sentPush{token: token, title: title, data: data})
	if f.failing[token] {
		return errors.New("provider rejected token")
	}
	return nil
}

func (f *fakeSender) sent() []sentPush {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentPush, len(f.sends))
	copy(out, f.sends)
	return out
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *gorm.DB, *fakeSender) {
	t.Helper()
	sender := &fakeSender{failing: map[string]bool{}}
	d, db := newTestDispatcherWithSender(t, sender)
	return d, db, sender
}

func newTestDispatcherWithSender(t *testing.T, sender push.Sender) (*Dispatcher, *gorm.DB) {
	t.Helper()
	db := testutil.OpenDB(t)

	pools, err := worker.NewPools(context.Background(), worker.DefaultPoolConfig())
	require.NoError(t, err)
	t.Cleanup(pools.Shutdown)

	users := repository.NewUserRepo(db)
	d := NewDispatcher(
		NewStore(repository.NewNotificationRepo(db)),
		NewPreferenceService(users, cache.NewMemory(), 0),
		users,
		repository.NewMembershipRepo(db),
		repository.NewEventRepo(db),
		sender,
		pools,
	)
	return d, db
}

// waitForSends blocks until the detached push pool has delivered n attempts.
func waitForSends(t *testing.T, sender *fakeSender, n int) []sentPush {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(sender.sent()) >= n
	}, 2*time.Second, 10*time.Millisecond, "expected %d push attempts", n)
	return sender.sent()
}

func unreadCountOf(t *testing.T, db *gorm.DB, userID uint64) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error)
	return n
}

func TestNotifyUserWritesInboxAndPushes(t *testing.T) {
	d, db, sender := newTestDispatcher(t)
	ctx := context.Background()

	u := testutil.NewUser(t, db, "alice")
	testutil.NewPushToken(t, db, u.ID, "tok-1")
	testutil.NewPushToken(t, db, u.ID, "tok-2")

	err := d.NotifyUser(ctx, u.ID, Note{
		Title:      "New event",
		Body:       "Details inside",
		Category:   CategoryEvent,
		SourceType: "event",
		SourceID:   42,
	})
	require.NoError(t, err)

	assert.EqualValues(t, 1, unreadCountOf(t, db, u.ID))

	sends := waitForSends(t, sender, 2)
	require.Len(t, sends, 2, "one push per registered token")
	assert.Equal(t, "event", sends[0].data["source_type"])
	assert.Equal(t, "42", sends[0].data["source_id"])
}

func TestNotifyUserPreferenceGateSkipsPushOnly(t *testing.T) {
	d, db, sender := newTestDispatcher(t)
	ctx := context.Background()

	u := testutil.NewUser(t, db, "quiet")
	require.NoError(t, db.Model(u).Update("notify_community", false).Error)
	testutil.NewPushToken(t, db, u.ID, "tok-1")

	err := d.NotifyUser(ctx, u.ID, Note{
		Title: "Join request", Body: "b", Category: CategoryCommunity,
	})
	require.NoError(t, err)

	assert.EqualValues(t, 1, unreadCountOf(t, db, u.ID), "the inbox record is written regardless")
	assert.Empty(t, sender.sent(), "push is suppressed by preference")

	// The event category rides the community flag.
	err = d.NotifyUser(ctx, u.ID, Note{Title: "Event", Body: "b", Category: CategoryEvent})
	require.NoError(t, err)
	assert.Empty(t, sender.sent())

	// Other categories are unaffected.
	err = d.NotifyUser(ctx, u.ID, Note{Title: "DM", Body: "b", Category: CategoryDM})
	require.NoError(t, err)
	waitForSends(t, sender, 1)
}

func TestNotifyUserTokenFailureIsolation(t *testing.T) {
	d, db, sender := newTestDispatcher(t)
	ctx := context.Background()

	u := testutil.NewUser(t, db, "alice")
	testutil.NewPushToken(t, db, u.ID, "bad")
	testutil.NewPushToken(t, db, u.ID, "good")
	sender.failing["bad"] = true

	err := d.NotifyUser(ctx, u.ID, Note{Title: "t", Body: "b", Category: CategoryDM})
	require.NoError(t, err, "push failures never propagate")
	sends := waitForSends(t, sender, 2)
	assert.Len(t, sends, 2, "the bad token does not abort the good one")
}

func TestNotifyUserWithoutPushProvider(t *testing.T) {
	d, db := newTestDispatcherWithSender(t, nil)
	ctx := context.Background()

	u := testutil.NewUser(t, db, "alice")
	testutil.NewPushToken(t, db, u.ID, "tok-1")

	err := d.NotifyUser(ctx, u.ID, Note{Title: "t", Body: "b", Category: CategoryDM})
	require.NoError(t, err, "a registered token with no provider is not an error")
	assert.EqualValues(t, 1, unreadCountOf(t, db, u.ID), "the inbox write still lands")
}

type pushCtxKey struct{}

// ctxProbeSender records whether the context handed to Send carried the
// caller's request-scoped value.
type ctxProbeSender struct {
	mu       sync.Mutex
	sawValue []bool
}

func (s *ctxProbeSender) Send(ctx context.Context, _, _, _ string, _ map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sawValue = append(s.sawValue, ctx.Value(pushCtxKey{}) != nil)
	return nil
}

func TestPushDeliveryUsesServiceContext(t *testing.T) {
	sender := &ctxProbeSender{}
	d, db := newTestDispatcherWithSender(t, sender)

	u := testutil.NewUser(t, db, "alice")
	testutil.NewPushToken(t, db, u.ID, "tok-1")

	ctx := context.WithValue(context.Background(), pushCtxKey{}, "request")
	require.NoError(t, d.NotifyUser(ctx, u.ID, Note{Title: "t", Body: "b", Category: CategoryDM}))

	require.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.sawValue) == 1
	}, 2*time.Second, 10*time.Millisecond)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.False(t, sender.sawValue[0], "push runs under the service context, not the request context")
}

func TestNotifyManyFansOut(t *testing.T) {
	d, db, sender := newTestDispatcher(t)
	ctx := context.Background()

	var ids []uint64
	for _, name := range []string{"a", "b", "c"} {
		u := testutil.NewUser(t, db, name)
		testutil.NewPushToken(t, db, u.ID, "tok-"+name)
		ids = append(ids, u.ID)
	}

	err := d.NotifyMany(ctx, ids, Note{Title: "t", Body: "b", Category: CategoryFeed})
	require.NoError(t, err)

	for _, id := range ids {
		assert.EqualValues(t, 1, unreadCountOf(t, db, id))
	}
	waitForSends(t, sender, 3)
}

func TestNotifyManyCancelledContext(t *testing.T) {
	d, db, _ := newTestDispatcher(t)

	u := testutil.NewUser(t, db, "alice")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.NotifyMany(ctx, []uint64{u.ID}, Note{Title: "t", Body: "b"})
	require.Error(t, err, "rejected submissions count as failures")
	assert.Zero(t, unreadCountOf(t, db, u.ID))
}

func TestNotifyCommunityMembersTargeting(t *testing.T) {
	d, db, _ := newTestDispatcher(t)
	ctx := context.Background()

	c := testutil.NewCommunity(t, db, "parish", false)
	owner := testutil.NewUser(t, db, "owner")
	member := testutil.NewUser(t, db, "member")
	pending := testutil.NewUser(t, db, "pending")
	removed := testutil.NewUser(t, db, "removed")
	testutil.NewMember(t, db, c.ID, owner.ID, model.RoleOwner, model.MembershipApproved)
	testutil.NewMember(t, db, c.ID, member.ID, model.RoleMember, model.MembershipApproved)
	testutil.NewMember(t, db, c.ID, pending.ID, model.RoleMember, model.MembershipPending)
	testutil.NewMember(t, db, c.ID, removed.ID, model.RoleMember, model.MembershipRemoved)

	err := d.NotifyCommunityMembers(ctx, c.ID, Note{Title: "t", Body: "b"}, owner.ID)
	require.NoError(t, err)

	assert.Zero(t, unreadCountOf(t, db, owner.ID), "excluded")
	assert.EqualValues(t, 1, unreadCountOf(t, db, member.ID))
	assert.Zero(t, unreadCountOf(t, db, pending.ID), "pending members are not members yet")
	assert.Zero(t, unreadCountOf(t, db, removed.ID))
}

func TestNotifyEventAttendeesTargeting(t *testing.T) {
	d, db, _ := newTestDispatcher(t)
	ctx := context.Background()

	creator := testutil.NewUser(t, db, "creator")
	going := testutil.NewUser(t, db, "going")
	interested := testutil.NewUser(t, db, "interested")
	declined := testutil.NewUser(t, db, "declined")
	e := testutil.NewEvent(t, db, "Meet", nil, creator.ID, true)
	testutil.NewRSVP(t, db, e.ID, going.ID, model.RSVPGoing)
	testutil.NewRSVP(t, db, e.ID, interested.ID, model.RSVPInterested)
	testutil.NewRSVP(t, db, e.ID, declined.ID, model.RSVPDeclined)

	err := d.NotifyEventAttendees(ctx, e.ID, Note{Title: "t", Body: "b"}, creator.ID)
	require.NoError(t, err)

	assert.EqualValues(t, 1, unreadCountOf(t, db, going.ID))
	assert.EqualValues(t, 1, unreadCountOf(t, db, interested.ID))
	assert.Zero(t, unreadCountOf(t, db, declined.ID), "declined RSVPs are not attendees")
	assert.Zero(t, unreadCountOf(t, db, creator.ID))
}

func TestNotifyEventAttendeesAfterCancel(t *testing.T) {
	d, db, _ := newTestDispatcher(t)
	ctx := context.Background()

	creator := testutil.NewUser(t, db, "creator")
	going := testutil.NewUser(t, db, "going")
	e := testutil.NewEvent(t, db, "Meet", nil, creator.ID, true)
	testutil.NewRSVP(t, db, e.ID, going.ID, model.RSVPGoing)

	// Cancellation soft-deletes the event row but leaves RSVPs live, so the
	// attendee roll is still resolvable for the cancellation notice itself.
	require.NoError(t, repository.NewEventRepo(db).Cancel(ctx, e.ID))

	err := d.NotifyEventAttendees(ctx, e.ID, Note{Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, unreadCountOf(t, db, going.ID))
}

func TestNotifyNearbyUsers(t *testing.T) {
	d, db, _ := newTestDispatcher(t)
	ctx := context.Background()

	setCoords := func(u *model.User, lat, lon float64) {
		require.NoError(t, db.Model(u).Updates(map[string]any{"latitude": lat, "longitude": lon}).Error)
	}

	near := testutil.NewUser(t, db, "near")
	far := testutil.NewUser(t, db, "far")
	nowhere := testutil.NewUser(t, db, "nowhere")
	setCoords(near, 40.73, -73.99)  // lower Manhattan
	setCoords(far, 34.05, -118.24)  // Los Angeles

	err := d.NotifyNearbyUsers(ctx, 40.71, -74.0, 25, Note{Title: "t", Body: "b"})
	require.NoError(t, err)

	assert.EqualValues(t, 1, unreadCountOf(t, db, near.ID))
	assert.Zero(t, unreadCountOf(t, db, far.ID))
	assert.Zero(t, unreadCountOf(t, db, nowhere.ID), "users without coordinates are skipped")
}
