package model

import "time"

// Post is a community feed post. The scheduled jobs read posts in aggregate
// (recent activity per community, per-user authorship) and never write them.
type Post struct {
	ID          uint64 `gorm:"primaryKey"`
	CommunityID uint64 `gorm:"not null;index"`
	AuthorID    uint64 `gorm:"not null;index"`
	Content     string `gorm:"type:text;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ApologeticsAnswer is an answered apologetics question. The highlight job
// surfaces the top-voted recent answer to the whole platform.
type ApologeticsAnswer struct {
	ID        uint64 `gorm:"primaryKey"`
	Question  string `gorm:"size:512;not null"`
	Answer    string `gorm:"type:text;not null"`
	AuthorID  uint64 `gorm:"not null;index"`
	Upvotes   int    `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
