package model

import (
	"time"

	"gorm.io/gorm"
)

// Event status constants. A CANCELED event is terminal: it cannot be updated.
const (
	EventActive    = "ACTIVE"
	EventCanceled  = "CANCELED"
	EventCompleted = "COMPLETED"
)

// RSVP status constants. Going and interested count as confirmed attendees
// for notification purposes.
const (
	RSVPGoing      = "going"
	RSVPInterested = "interested"
	RSVPDeclined   = "declined"
)

// Event is a scheduled gathering, physical or virtual. CommunityID is nil for
// platform-wide events (app-admin only).
type Event struct {
	ID          uint64 `gorm:"primaryKey"`
	Title       string `gorm:"size:255;not null"`
	Description string `gorm:"type:text;not null"`
	EventDate   time.Time
	StartTime   string `gorm:"size:8;not null"` // HH:MM, local to the event
	EndTime     string `gorm:"size:8"`
	Location    string `gorm:"size:255"`
	IsVirtual   bool   `gorm:"not null;default:false"`
	MeetingURL  string `gorm:"size:512"`
	IsPublic    bool   `gorm:"not null;default:true"`
	CommunityID *uint64 `gorm:"index"`
	CreatorID   uint64  `gorm:"not null;index"`
	Status      string  `gorm:"size:16;not null;default:ACTIVE;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

// EventRSVP is the attendee relation. Owned by the RSVP feature; the event
// core only reads it to resolve notification recipients.
type EventRSVP struct {
	ID        uint64 `gorm:"primaryKey"`
	EventID   uint64 `gorm:"not null;index;uniqueIndex:uk_event_user"`
	UserID    uint64 `gorm:"not null;index;uniqueIndex:uk_event_user"`
	Status    string `gorm:"size:16;not null;default:going"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
