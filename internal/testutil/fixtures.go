package testutil

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"koinonia.app/platform/internal/model"
)

// NewUser inserts a user with sensible defaults and returns it.
func NewUser(t *testing.T, db *gorm.DB, username string) *model.User {
	t.Helper()
	u := &model.User{
		Email:           username + "@example.com",
		Username:        username,
		PasswordHash:    "x",
		DisplayName:     username,
		NotifyDM:        true,
		NotifyCommunity: true,
		NotifyForum:     true,
		NotifyFeed:      true,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// NewCommunity inserts a community.
func NewCommunity(t *testing.T, db *gorm.DB, name string, private bool) *model.Community {
	t.Helper()
	c := &model.Community{Name: name, Description: name + " community", IsPrivate: private}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create community %s: %v", name, err)
	}
	return c
}

// NewMember inserts a membership row.
func NewMember(t *testing.T, db *gorm.DB, communityID, userID uint64, role, status string) *model.CommunityMember {
	t.Helper()
	m := &model.CommunityMember{
		CommunityID: communityID,
		UserID:      userID,
		Role:        role,
		Status:      status,
		JoinedAt:    time.Now().UTC(),
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("create membership: %v", err)
	}
	return m
}

// NewEvent inserts an ACTIVE event.
func NewEvent(t *testing.T, db *gorm.DB, title string, communityID *uint64, creatorID uint64, public bool) *model.Event {
	t.Helper()
	e := &model.Event{
		Title:       title,
		Description: title + " description",
		EventDate:   time.Now().UTC().Add(72 * time.Hour),
		StartTime:   "19:00",
		Location:    "Main Hall",
		IsPublic:    public,
		CommunityID: communityID,
		CreatorID:   creatorID,
		Status:      model.EventActive,
	}
	if err := db.Create(e).Error; err != nil {
		t.Fatalf("create event %s: %v", title, err)
	}
	return e
}

// NewRSVP inserts an RSVP row.
func NewRSVP(t *testing.T, db *gorm.DB, eventID, userID uint64, status string) {
	t.Helper()
	if err := db.Create(&model.EventRSVP{EventID: eventID, UserID: userID, Status: status}).Error; err != nil {
		t.Fatalf("create rsvp: %v", err)
	}
}

// NewPushToken registers a device token for a user.
func NewPushToken(t *testing.T, db *gorm.DB, userID uint64, token string) {
	t.Helper()
	if err := db.Create(&model.PushToken{UserID: userID, Token: token, Platform: "ios"}).Error; err != nil {
		t.Fatalf("create push token: %v", err)
	}
}
