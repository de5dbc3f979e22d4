package model

import (
	"time"

	"gorm.io/gorm"
)

// Membership role constants. Exactly one active member holds RoleOwner at any
// time; ownership is derived from membership rows, not a community field.
const (
	RoleOwner     = "owner"
	RoleModerator = "moderator"
	RoleMember    = "member"
)

// Membership status constants — the admission state of a user within a
// community, distinct from role. PENDING→APPROVED on approve,
// PENDING→REJECTED on deny, APPROVED→REMOVED on remove/leave.
// Re-requesting after REJECTED/REMOVED reuses the row.
const (
	MembershipApproved = "APPROVED"
	MembershipPending  = "PENDING"
	MembershipRejected = "REJECTED"
	MembershipRemoved  = "REMOVED"
)

// Community is a faith community. A community with zero approved members is
// soft-deleted rather than dropped.
type Community struct {
	ID          uint64 `gorm:"primaryKey"`
	Name        string `gorm:"size:128;not null;index"`
	Description string `gorm:"type:text"`
	IsPrivate   bool   `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

// CommunityMember is the (community, user) membership row.
type CommunityMember struct {
	ID          uint64 `gorm:"primaryKey"`
	CommunityID uint64 `gorm:"not null;index;uniqueIndex:uk_community_user"`
	UserID      uint64 `gorm:"not null;index;uniqueIndex:uk_community_user"`
	Role        string `gorm:"size:16;not null;default:member"`
	Status      string `gorm:"size:16;not null;default:PENDING;index"`
	JoinedAt    time.Time

	// ActedBy records the admin who last transitioned the status.
	ActedBy *uint64
	ActedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
