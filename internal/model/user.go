// Package model defines the persistence types for the Koinonia platform.
package model

import "time"

// User is a platform account. Notification preference flags live on the user
// row and default to enabled; they are read through the preference cache.
type User struct {
	ID           uint64 `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;size:255;not null"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	DisplayName  string `gorm:"size:128"`
	IsAdmin      bool   `gorm:"not null;default:false"`

	// Stored coordinates for geofenced event notifications. Nullable:
	// users without a location never match a nearby query.
	Latitude  *float64
	Longitude *float64

	// Per-category notification preferences.
	NotifyDM        bool `gorm:"not null;default:true"`
	NotifyCommunity bool `gorm:"not null;default:true"`
	NotifyForum     bool `gorm:"not null;default:true"`
	NotifyFeed      bool `gorm:"not null;default:true"`

	LastActiveAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PushToken is a registered device token for push delivery.
type PushToken struct {
	ID        uint64 `gorm:"primaryKey"`
	UserID    uint64 `gorm:"not null;index"`
	Token     string `gorm:"uniqueIndex;size:255;not null"`
	Platform  string `gorm:"size:16"` // ios, android, web
	CreatedAt time.Time
	UpdatedAt time.Time
}
