package notification

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"koinonia.app/platform/internal/domain"
	"koinonia.app/platform/internal/model"
	"koinonia.app/platform/internal/repository"
	"koinonia.app/platform/internal/testutil"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	db := testutil.OpenDB(t)
	return NewStore(repository.NewNotificationRepo(db)), db
}

func createParams(userID uint64, dedupeKey string) CreateParams {
	return CreateParams{
		UserID:     userID,
		Title:      "Hello",
		Body:       "World",
		Category:   CategoryCommunity,
		SourceType: "community",
		SourceID:   1,
		DedupeKey:  dedupeKey,
	}
}

func TestCreateNotification(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	u := testutil.NewUser(t, db, "alice")

	res := store.Create(ctx, "r", CreateParams{
		UserID:   u.ID,
		Title:    "Welcome",
		Body:     "Glad you are here",
		Data:     map[string]string{"screen": "home"},
		Category: CategoryFeed,
	})
	require.Equal(t, domain.StatusOK, res.Status)
	assert.NotZero(t, res.Data.ID)
	assert.False(t, res.Data.IsRead)
	assert.JSONEq(t, `{"screen":"home"}`, res.Data.Data)
}

func TestCreateValidation(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	u := testutil.NewUser(t, db, "alice")

	res := store.Create(ctx, "r", CreateParams{UserID: 0, Title: "t", Body: "b"})
	assert.Equal(t, domain.StatusInvalidInput, res.Status)

	res = store.Create(ctx, "r", CreateParams{UserID: u.ID, Body: "b"})
	assert.Equal(t, domain.StatusInvalidInput, res.Status)

	res = store.Create(ctx, "r", CreateParams{UserID: u.ID, Title: "t"})
	assert.Equal(t, domain.StatusInvalidInput, res.Status)

	// Empty category falls back to feed.
	res = store.Create(ctx, "r", CreateParams{UserID: u.ID, Title: "t", Body: "b"})
	require.Equal(t, domain.StatusOK, res.Status)
	assert.Equal(t, CategoryFeed, res.Data.Category)
}

func TestCreateDeduplicatesUnread(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	u := testutil.NewUser(t, db, "alice")

	first := store.Create(ctx, "r", createParams(u.ID, "digest:42"))
	require.Equal(t, domain.StatusOK, first.Status)

	twin := store.Create(ctx, "r", createParams(u.ID, "digest:42"))
	require.Equal(t, domain.StatusDuplicate, twin.Status)
	assert.True(t, twin.Success, "a duplicate is a satisfied intent, not a failure")
	assert.Equal(t, first.Data.ID, twin.Data.ID, "the surviving row is returned")

	var rows int64
	require.NoError(t, db.Model(&model.Notification{}).Where("user_id = ?", u.ID).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}

func TestDedupeScopedPerUserAndKey(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	alice := testutil.NewUser(t, db, "alice")
	bob := testutil.NewUser(t, db, "bob")

	require.Equal(t, domain.StatusOK, store.Create(ctx, "r", createParams(alice.ID, "k1")).Status)
	assert.Equal(t, domain.StatusOK, store.Create(ctx, "r", createParams(bob.ID, "k1")).Status,
		"the same key for another user is not a duplicate")
	assert.Equal(t, domain.StatusOK, store.Create(ctx, "r", createParams(alice.ID, "k2")).Status,
		"another key for the same user is not a duplicate")
	assert.Equal(t, domain.StatusOK, store.Create(ctx, "r", CreateParams{
		UserID: alice.ID, Title: "t", Body: "b",
	}).Status, "rows without a dedupe key never deduplicate")
}

func TestMarkReadReleasesDedupeKey(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	u := testutil.NewUser(t, db, "alice")

	first := store.Create(ctx, "r", createParams(u.ID, "nudge:7"))
	require.Equal(t, domain.StatusOK, first.Status)
	require.True(t, store.MarkAsRead(ctx, "r", first.Data.ID, u.ID).Success)

	second := store.Create(ctx, "r", createParams(u.ID, "nudge:7"))
	assert.Equal(t, domain.StatusOK, second.Status, "a read row no longer blocks the key")
	assert.NotEqual(t, first.Data.ID, second.Data.ID)
}

func TestListPagination(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	u := testutil.NewUser(t, db, "alice")

	var ids []uint64
	for i := 0; i < 5; i++ {
		res := store.Create(ctx, "r", CreateParams{
			UserID: u.ID, Title: "t", Body: fmt.Sprintf("n%d", i),
		})
		require.True(t, res.Success)
		ids = append(ids, res.Data.ID)
	}

	page := store.List(ctx, "r", u.ID, 2, 0, false)
	require.Equal(t, domain.StatusOK, page.Status)
	require.Len(t, page.Data.Items, 2)
	assert.Equal(t, ids[4], page.Data.Items[0].ID, "newest first")
	require.NotNil(t, page.Data.NextCursor)

	page = store.List(ctx, "r", u.ID, 2, *page.Data.NextCursor, false)
	require.Len(t, page.Data.Items, 2)
	require.NotNil(t, page.Data.NextCursor)

	page = store.List(ctx, "r", u.ID, 2, *page.Data.NextCursor, false)
	require.Len(t, page.Data.Items, 1)
	assert.Equal(t, ids[0], page.Data.Items[0].ID)
	assert.Nil(t, page.Data.NextCursor, "the final page carries no cursor")
}

func TestListUnreadOnly(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	u := testutil.NewUser(t, db, "alice")

	read := store.Create(ctx, "r", CreateParams{UserID: u.ID, Title: "t", Body: "read"})
	require.True(t, read.Success)
	unread := store.Create(ctx, "r", CreateParams{UserID: u.ID, Title: "t", Body: "unread"})
	require.True(t, unread.Success)
	require.True(t, store.MarkAsRead(ctx, "r", read.Data.ID, u.ID).Success)

	page := store.List(ctx, "r", u.ID, 10, 0, true)
	require.Equal(t, domain.StatusOK, page.Status)
	require.Len(t, page.Data.Items, 1)
	assert.Equal(t, unread.Data.ID, page.Data.Items[0].ID)

	count := store.UnreadCount(ctx, "r", u.ID)
	require.True(t, count.Success)
	assert.EqualValues(t, 1, count.Data)
}

func TestOwnershipChecks(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	alice := testutil.NewUser(t, db, "alice")
	bob := testutil.NewUser(t, db, "bob")

	n := store.Create(ctx, "r", CreateParams{UserID: alice.ID, Title: "t", Body: "b"})
	require.True(t, n.Success)

	res := store.MarkAsRead(ctx, "r", n.Data.ID, bob.ID)
	assert.Equal(t, domain.StatusNotAuthorized, res.Status)

	res = store.Delete(ctx, "r", n.Data.ID, bob.ID)
	assert.Equal(t, domain.StatusNotAuthorized, res.Status)

	res = store.MarkAsRead(ctx, "r", 9999, alice.ID)
	assert.Equal(t, domain.StatusNotFound, res.Status)

	res = store.Delete(ctx, "r", n.Data.ID, alice.ID)
	require.Equal(t, domain.StatusOK, res.Status)
	res = store.MarkAsRead(ctx, "r", n.Data.ID, alice.ID)
	assert.Equal(t, domain.StatusNotFound, res.Status, "deleted rows are gone")
}

func TestMarkAllAsRead(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	u := testutil.NewUser(t, db, "alice")
	other := testutil.NewUser(t, db, "bob")

	for i := 0; i < 3; i++ {
		require.True(t, store.Create(ctx, "r", CreateParams{UserID: u.ID, Title: "t", Body: "b"}).Success)
	}
	require.True(t, store.Create(ctx, "r", CreateParams{UserID: other.ID, Title: "t", Body: "b"}).Success)

	res := store.MarkAllAsRead(ctx, "r", u.ID)
	require.Equal(t, domain.StatusOK, res.Status)
	assert.EqualValues(t, 3, res.Data)

	count := store.UnreadCount(ctx, "r", u.ID)
	assert.Zero(t, count.Data)
	otherCount := store.UnreadCount(ctx, "r", other.ID)
	assert.EqualValues(t, 1, otherCount.Data, "other users' rows are untouched")

	again := store.MarkAllAsRead(ctx, "r", u.ID)
	assert.Zero(t, again.Data, "a second sweep changes nothing")
}
