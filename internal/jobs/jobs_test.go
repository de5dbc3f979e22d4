package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"koinonia.app/platform/internal/cache"
	"koinonia.app/platform/internal/model"
	"koinonia.app/platform/internal/notification"
	"koinonia.app/platform/internal/pkg/worker"
	"koinonia.app/platform/internal/repository"
	"koinonia.app/platform/internal/testutil"
)

type noopSender struct{}

func (noopSender) Send(context.Context, string, string, string, map[string]string) error {
	return nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []string // recipient addresses
}

func (m *recordingMailer) Send(to, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	return nil
}

type jobEnv struct {
	db         *gorm.DB
	activity   *repository.ActivityRepo
	users      *repository.UserRepo
	notifRepo  *repository.NotificationRepo
	dispatcher *notification.Dispatcher
	gate       *notification.DedupGate
}

func newJobEnv(t *testing.T) *jobEnv {
	t.Helper()
	db := testutil.OpenDB(t)

	pools, err := worker.NewPools(context.Background(), worker.DefaultPoolConfig())
	require.NoError(t, err)
	t.Cleanup(pools.Shutdown)

	users := repository.NewUserRepo(db)
	notifRepo := repository.NewNotificationRepo(db)
	dispatcher := notification.NewDispatcher(
		notification.NewStore(notifRepo),
		notification.NewPreferenceService(users, cache.NewMemory(), 0),
		users,
		repository.NewMembershipRepo(db),
		repository.NewEventRepo(db),
		noopSender{},
		pools,
	)
	return &jobEnv{
		db:         db,
		activity:   repository.NewActivityRepo(db),
		users:      users,
		notifRepo:  notifRepo,
		dispatcher: dispatcher,
		gate:       notification.NewDedupGate(notifRepo),
	}
}

func (e *jobEnv) addPosts(t *testing.T, communityID, authorID uint64, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, e.db.Create(&model.Post{
			CommunityID: communityID,
			AuthorID:    authorID,
			Content:     "post",
		}).Error)
	}
}

func (e *jobEnv) unreadCount(t *testing.T, userID uint64) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error)
	return n
}

func TestJobKindsAndUniqueness(t *testing.T) {
	tests := []struct {
		args interface {
			Kind() string
		}
		kind string
	}{
		{EngagementNudgeArgs{}, "engagement_nudge"},
		{WeeklyDigestArgs{}, "weekly_digest"},
		{InactivityNudgeArgs{}, "inactivity_nudge"},
		{ApologeticsHighlightArgs{}, "apologetics_highlight"},
		{NotificationCleanupArgs{}, "notification_cleanup"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, tt.args.Kind())
	}

	// Every periodic job deduplicates enqueues by period.
	assert.Equal(t, 24*time.Hour, EngagementNudgeArgs{}.InsertOpts().UniqueOpts.ByPeriod)
	assert.Equal(t, 7*24*time.Hour, WeeklyDigestArgs{}.InsertOpts().UniqueOpts.ByPeriod)
	assert.Equal(t, 24*time.Hour, InactivityNudgeArgs{}.InsertOpts().UniqueOpts.ByPeriod)
	assert.Equal(t, 7*24*time.Hour, ApologeticsHighlightArgs{}.InsertOpts().UniqueOpts.ByPeriod)
	assert.Equal(t, 24*time.Hour, NotificationCleanupArgs{}.InsertOpts().UniqueOpts.ByPeriod)
}

func TestEngagementNudge(t *testing.T) {
	env := newJobEnv(t)
	ctx := context.Background()

	busy := testutil.NewCommunity(t, env.db, "busy", false)
	quiet := testutil.NewCommunity(t, env.db, "quiet", false)
	author := testutil.NewUser(t, env.db, "author")
	member := testutil.NewUser(t, env.db, "member")
	bystander := testutil.NewUser(t, env.db, "bystander")
	testutil.NewMember(t, env.db, busy.ID, author.ID, model.RoleOwner, model.MembershipApproved)
	testutil.NewMember(t, env.db, busy.ID, member.ID, model.RoleMember, model.MembershipApproved)
	testutil.NewMember(t, env.db, quiet.ID, bystander.ID, model.RoleOwner, model.MembershipApproved)

	env.addPosts(t, busy.ID, author.ID, 5)
	env.addPosts(t, quiet.ID, bystander.ID, 1)

	w := NewEngagementNudgeWorker(env.activity, env.dispatcher, env.gate, 0, 0)
	require.NoError(t, w.Work(ctx, nil))

	assert.EqualValues(t, 1, env.unreadCount(t, member.ID))
	assert.EqualValues(t, 1, env.unreadCount(t, author.ID))
	assert.Zero(t, env.unreadCount(t, bystander.ID), "below-threshold communities are skipped")

	// A timer misfire re-runs the sweep; the gate makes it a no-op.
	require.NoError(t, w.Work(ctx, nil))
	assert.EqualValues(t, 1, env.unreadCount(t, member.ID))
}

func TestEngagementNudgeGateSurvivesRestart(t *testing.T) {
	env := newJobEnv(t)
	ctx := context.Background()

	c := testutil.NewCommunity(t, env.db, "busy", false)
	u := testutil.NewUser(t, env.db, "member")
	testutil.NewMember(t, env.db, c.ID, u.ID, model.RoleOwner, model.MembershipApproved)
	env.addPosts(t, c.ID, u.ID, 5)

	w := NewEngagementNudgeWorker(env.activity, env.dispatcher, env.gate, 0, 0)
	require.NoError(t, w.Work(ctx, nil))
	require.EqualValues(t, 1, env.unreadCount(t, u.ID))

	// Fresh gate = process restart. The persisted row still dedupes.
	restarted := NewEngagementNudgeWorker(env.activity, env.dispatcher,
		notification.NewDedupGate(env.notifRepo), 0, 0)
	require.NoError(t, restarted.Work(ctx, nil))
	assert.EqualValues(t, 1, env.unreadCount(t, u.ID))
}

func TestInactivityNudge(t *testing.T) {
	env := newJobEnv(t)
	ctx := context.Background()

	dormant := testutil.NewUser(t, env.db, "dormant")
	active := testutil.NewUser(t, env.db, "active")
	old := time.Now().UTC().Add(-30 * 24 * time.Hour)
	require.NoError(t, env.db.Model(dormant).Update("last_active_at", old).Error)
	require.NoError(t, env.db.Model(active).Update("last_active_at", time.Now().UTC()).Error)

	w := NewInactivityNudgeWorker(env.users, env.dispatcher, env.gate, 0)
	require.NoError(t, w.Work(ctx, nil))

	assert.EqualValues(t, 1, env.unreadCount(t, dormant.ID))
	assert.Zero(t, env.unreadCount(t, active.ID))

	require.NoError(t, w.Work(ctx, nil))
	assert.EqualValues(t, 1, env.unreadCount(t, dormant.ID), "repeat runs within the interval are gated")
}

func TestApologeticsHighlight(t *testing.T) {
	env := newJobEnv(t)
	ctx := context.Background()

	author := testutil.NewUser(t, env.db, "author")
	reader := testutil.NewUser(t, env.db, "reader")
	require.NoError(t, env.db.Create(&model.ApologeticsAnswer{
		Question: "Why hope?", Answer: "Because.", AuthorID: author.ID, Upvotes: 3,
	}).Error)
	top := &model.ApologeticsAnswer{
		Question: "What is grace?", Answer: "Unmerited favor.", AuthorID: author.ID, Upvotes: 10,
	}
	require.NoError(t, env.db.Create(top).Error)

	w := NewApologeticsHighlightWorker(env.activity, env.users, env.dispatcher, env.gate)
	require.NoError(t, w.Work(ctx, nil))

	assert.EqualValues(t, 1, env.unreadCount(t, reader.ID))
	assert.Zero(t, env.unreadCount(t, author.ID), "the author is not notified about their own answer")

	var n model.Notification
	require.NoError(t, env.db.Where("user_id = ?", reader.ID).First(&n).Error)
	assert.Equal(t, "What is grace?", n.Body, "the top-voted answer wins")
	assert.Equal(t, top.ID, n.SourceID)

	require.NoError(t, w.Work(ctx, nil))
	assert.EqualValues(t, 1, env.unreadCount(t, reader.ID))
}

func TestApologeticsHighlightEmptyWindow(t *testing.T) {
	env := newJobEnv(t)
	testutil.NewUser(t, env.db, "reader")

	w := NewApologeticsHighlightWorker(env.activity, env.users, env.dispatcher, env.gate)
	require.NoError(t, w.Work(context.Background(), nil))

	var n int64
	require.NoError(t, env.db.Model(&model.Notification{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestWeeklyDigest(t *testing.T) {
	env := newJobEnv(t)
	ctx := context.Background()

	c := testutil.NewCommunity(t, env.db, "lively", false)
	alice := testutil.NewUser(t, env.db, "alice")
	bob := testutil.NewUser(t, env.db, "bob")
	env.addPosts(t, c.ID, alice.ID, 3)

	mailer := &recordingMailer{}
	w := NewWeeklyDigestWorker(env.activity, repository.NewCommunityRepo(env.db),
		env.users, env.dispatcher, mailer, env.gate)
	require.NoError(t, w.Work(ctx, nil))

	assert.EqualValues(t, 1, env.unreadCount(t, alice.ID))
	assert.EqualValues(t, 1, env.unreadCount(t, bob.ID))
	assert.ElementsMatch(t, []string{"alice@example.com", "bob@example.com"}, mailer.sent)

	var n model.Notification
	require.NoError(t, env.db.Where("user_id = ?", alice.ID).First(&n).Error)
	assert.Contains(t, n.Body, "lively", "the digest names the busy community")

	require.NoError(t, w.Work(ctx, nil))
	assert.Len(t, mailer.sent, 2, "the same week is never mailed twice")
}

func TestWeeklyDigestEmptyWeek(t *testing.T) {
	env := newJobEnv(t)
	u := testutil.NewUser(t, env.db, "alone")

	w := NewWeeklyDigestWorker(env.activity, repository.NewCommunityRepo(env.db),
		env.users, env.dispatcher, nil, env.gate)
	require.NoError(t, w.Work(context.Background(), nil))
	assert.Zero(t, env.unreadCount(t, u.ID))
}

func TestNotificationCleanup(t *testing.T) {
	env := newJobEnv(t)
	ctx := context.Background()
	u := testutil.NewUser(t, env.db, "alice")

	fresh := &model.Notification{UserID: u.ID, Title: "t", Body: "fresh", Category: model.CategoryFeed}
	stale := &model.Notification{UserID: u.ID, Title: "t", Body: "stale", Category: model.CategoryFeed}
	require.NoError(t, env.db.Create(fresh).Error)
	require.NoError(t, env.db.Create(stale).Error)
	old := time.Now().UTC().Add(-120 * 24 * time.Hour)
	require.NoError(t, env.db.Model(stale).Update("created_at", old).Error)

	w := NewNotificationCleanupWorker(env.notifRepo, 0)
	require.NoError(t, w.Work(ctx, nil))

	var remaining []model.Notification
	require.NoError(t, env.db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, fresh.ID, remaining[0].ID)
}
