// Package main provides demo data seeding for the Koinonia platform.
//
// Seeding is idempotent: existing rows are matched by their unique keys and
// left alone. Schema and River migrations are expected to have run first.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"koinonia.app/platform/internal/config"
	"koinonia.app/platform/internal/infrastructure"
	"koinonia.app/platform/internal/model"
	"koinonia.app/platform/internal/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	if err := db.AutoMigrate(ctx); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	logger.Info("Starting data seeding...")

	users, err := seedUsers(ctx, db.Gorm)
	if err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	communities, err := seedCommunities(ctx, db.Gorm, users)
	if err != nil {
		return fmt.Errorf("seed communities: %w", err)
	}
	if err := seedEvents(ctx, db.Gorm, users, communities); err != nil {
		return fmt.Errorf("seed events: %w", err)
	}

	logger.Info("Data seeding completed successfully")
	return nil
}

type demoUser struct {
	Email       string
	Username    string
	DisplayName string
	IsAdmin     bool
}

func demoUsers() []demoUser {
	return []demoUser{
		{Email: "admin@koinonia.app", Username: "admin", DisplayName: "Platform Admin", IsAdmin: true},
		{Email: "miriam@example.com", Username: "miriam", DisplayName: "Miriam K."},
		{Email: "thomas@example.com", Username: "thomas", DisplayName: "Thomas A."},
		{Email: "grace@example.com", Username: "grace", DisplayName: "Grace O."},
	}
}

func seedUsers(ctx context.Context, db *gorm.DB) (map[string]*model.User, error) {
	// One shared demo password; cost stays at the default so seeding is not
	// noticeably slow.
	hash, err := bcrypt.GenerateFromPassword([]byte("changeme-demo"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash demo password: %w", err)
	}

	out := make(map[string]*model.User, len(demoUsers()))
	for _, d := range demoUsers() {
		var u model.User
		err := db.WithContext(ctx).Where("email = ?", d.Email).First(&u).Error
		switch {
		case err == nil:
			// already seeded
		case errors.Is(err, gorm.ErrRecordNotFound):
			u = model.User{
				Email:           d.Email,
				Username:        d.Username,
				PasswordHash:    string(hash),
				DisplayName:     d.DisplayName,
				IsAdmin:         d.IsAdmin,
				NotifyDM:        true,
				NotifyCommunity: true,
				NotifyForum:     true,
				NotifyFeed:      true,
			}
			if err := db.WithContext(ctx).Create(&u).Error; err != nil {
				return nil, fmt.Errorf("create user %s: %w", d.Username, err)
			}
			logger.Info("Seeded user", zap.String("username", d.Username))
		default:
			return nil, fmt.Errorf("lookup user %s: %w", d.Username, err)
		}
		out[d.Username] = &u
	}
	return out, nil
}

func seedCommunities(ctx context.Context, db *gorm.DB, users map[string]*model.User) (map[string]*model.Community, error) {
	specs := []struct {
		Name        string
		Description string
		IsPrivate   bool
		Owner       string
	}{
		{Name: "Downtown Fellowship", Description: "Weekly gatherings and shared meals in the city center.", Owner: "miriam"},
		{Name: "Apologetics Circle", Description: "Questions, answers, and honest doubt welcome.", IsPrivate: true, Owner: "thomas"},
	}

	out := make(map[string]*model.Community, len(specs))
	for _, spec := range specs {
		var c model.Community
		err := db.WithContext(ctx).Where("name = ?", spec.Name).First(&c).Error
		switch {
		case err == nil:
			// already seeded
		case errors.Is(err, gorm.ErrRecordNotFound):
			c = model.Community{Name: spec.Name, Description: spec.Description, IsPrivate: spec.IsPrivate}
			if err := db.WithContext(ctx).Create(&c).Error; err != nil {
				return nil, fmt.Errorf("create community %s: %w", spec.Name, err)
			}
			owner := users[spec.Owner]
			m := model.CommunityMember{
				CommunityID: c.ID,
				UserID:      owner.ID,
				Role:        model.RoleOwner,
				Status:      model.MembershipApproved,
				JoinedAt:    time.Now().UTC(),
			}
			if err := db.WithContext(ctx).Create(&m).Error; err != nil {
				return nil, fmt.Errorf("create owner membership for %s: %w", spec.Name, err)
			}
			logger.Info("Seeded community",
				zap.String("name", spec.Name),
				zap.String("owner", spec.Owner),
			)
		default:
			return nil, fmt.Errorf("lookup community %s: %w", spec.Name, err)
		}
		out[spec.Name] = &c
	}
	return out, nil
}

func seedEvents(ctx context.Context, db *gorm.DB, users map[string]*model.User, communities map[string]*model.Community) error {
	fellowship := communities["Downtown Fellowship"]
	nextWeek := time.Now().UTC().AddDate(0, 0, 7).Truncate(24 * time.Hour)

	specs := []model.Event{
		{
			Title:       "Sunday Potluck",
			Description: "Bring a dish, meet the neighbors.",
			EventDate:   nextWeek,
			StartTime:   "12:30",
			EndTime:     "14:00",
			Location:    "Community hall, 3rd floor",
			IsPublic:    true,
			CommunityID: &fellowship.ID,
			CreatorID:   users["miriam"].ID,
			Status:      model.EventActive,
		},
		{
			Title:       "Evening Prayer (online)",
			Description: "Short midweek prayer call, all welcome.",
			EventDate:   nextWeek.AddDate(0, 0, 3),
			StartTime:   "20:00",
			EndTime:     "20:45",
			IsVirtual:   true,
			MeetingURL:  "https://meet.example.com/koinonia-prayer",
			IsPublic:    true,
			CreatorID:   users["admin"].ID,
			Status:      model.EventActive,
		},
	}

	for i := range specs {
		e := &specs[i]
		var existing model.Event
		err := db.WithContext(ctx).Where("title = ? AND creator_id = ?", e.Title, e.CreatorID).First(&existing).Error
		switch {
		case err == nil:
			continue
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := db.WithContext(ctx).Create(e).Error; err != nil {
				return fmt.Errorf("create event %s: %w", e.Title, err)
			}
			logger.Info("Seeded event", zap.String("title", e.Title))
		default:
			return fmt.Errorf("lookup event %s: %w", e.Title, err)
		}
	}
	return nil
}
