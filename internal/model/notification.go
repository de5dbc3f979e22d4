package model

import "time"

// Notification categories map to the per-user preference flags; the event
// category rides the community flag.
const (
	CategoryDM        = "dm"
	CategoryCommunity = "community"
	CategoryForum     = "forum"
	CategoryFeed      = "feed"
	CategoryEvent     = "event"
)

// Notification is an in-app inbox record. Rows are created once through the
// notification store and only mutated by mark-read/delete, always scoped to
// the owning user.
//
// DedupeKey scopes "the same logical notification": while an unread row with
// the same (user_id, dedupe_key) exists, creates collapse onto it. The
// uniqueness is enforced by a partial unique index on postgres; the insert
// race converts the constraint violation into the same DUPLICATE outcome.
type Notification struct {
	ID     uint64 `gorm:"primaryKey"`
	UserID uint64 `gorm:"not null;index"`
	Title  string `gorm:"size:255;not null"`
	Body   string `gorm:"type:text;not null"`

	// Data is a JSON object with structured payload for client navigation.
	Data string `gorm:"type:text"`

	Category   string `gorm:"size:16;not null;index"`
	IsRead     bool   `gorm:"not null;default:false;index"`
	SourceType string `gorm:"size:32;index"`
	SourceID   uint64 `gorm:"index"`
	DedupeKey  string `gorm:"size:255;index"`

	CreatedAt time.Time
}
