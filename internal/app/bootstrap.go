// Package app is the composition root: bootstrap stays orchestration-only,
// wiring repositories, services, workers, and the HTTP surface together with
// manual DI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/riverqueue/river"

	"koinonia.app/platform/internal/api/handlers"
	"koinonia.app/platform/internal/api/middleware"
	"koinonia.app/platform/internal/cache"
	"koinonia.app/platform/internal/config"
	"koinonia.app/platform/internal/events"
	"koinonia.app/platform/internal/infrastructure"
	"koinonia.app/platform/internal/jobs"
	"koinonia.app/platform/internal/mail"
	"koinonia.app/platform/internal/membership"
	"koinonia.app/platform/internal/notification"
	"koinonia.app/platform/internal/pkg/worker"
	"koinonia.app/platform/internal/push"
	"koinonia.app/platform/internal/repository"
)

// Application holds composed application dependencies.
type Application struct {
	Config *config.Config
	Router *gin.Engine
	DB     *infrastructure.DatabaseClients
	Pools  *worker.Pools
}

// Bootstrap initializes all dependencies.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
	}
	if err := db.InitRedis(ctx, cfg.Redis); err != nil {
		db.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize: cfg.Worker.GeneralPoolSize,
		PushPoolSize:    cfg.Worker.PushPoolSize,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}

	// Repositories
	users := repository.NewUserRepo(db.Gorm)
	communities := repository.NewCommunityRepo(db.Gorm)
	members := repository.NewMembershipRepo(db.Gorm)
	eventRepo := repository.NewEventRepo(db.Gorm)
	notifications := repository.NewNotificationRepo(db.Gorm)
	activity := repository.NewActivityRepo(db.Gorm)

	// Preference cache: process-local by default, shared when redis is
	// configured so invalidations reach every instance.
	var prefCache cache.Cache
	if db.Redis != nil {
		prefCache = cache.NewRedis(db.Redis, cfg.Redis.KeyPrefix+"prefs")
	} else {
		prefCache = cache.NewMemory()
	}
	prefs := notification.NewPreferenceService(users, prefCache, notification.DefaultPreferenceTTL)

	// Notification pipeline
	store := notification.NewStore(notifications)
	var sender push.Sender
	if cfg.Push.Endpoint != "" {
		sender = push.NewHTTPSender(cfg.Push.Endpoint, cfg.Push.APIKey, cfg.Push.Timeout)
	}
	dispatcher := notification.NewDispatcher(store, prefs, users, members, eventRepo, sender, pools)
	gate := notification.NewDedupGate(notifications)

	// Core services
	memberships := membership.NewService(communities, members, users, dispatcher)
	eventManager := events.NewManager(eventRepo, users, memberships, dispatcher)

	// Scheduled jobs
	var mailer mail.Mailer
	if cfg.Mail.Host != "" {
		mailer = mail.NewSMTPMailer(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, jobs.NewEngagementNudgeWorker(activity, dispatcher, gate, cfg.Jobs.ActivityWindow, cfg.Jobs.MinPosts))
	river.AddWorker(workers, jobs.NewInactivityNudgeWorker(users, dispatcher, gate, cfg.Jobs.InactivityThreshold))
	river.AddWorker(workers, jobs.NewWeeklyDigestWorker(activity, communities, users, dispatcher, mailer, gate))
	river.AddWorker(workers, jobs.NewApologeticsHighlightWorker(activity, users, dispatcher, gate))
	river.AddWorker(workers, jobs.NewNotificationCleanupWorker(notifications, cfg.Jobs.NotificationRetention))

	if err := db.InitRiverClient(workers, cfg.River); err != nil {
		pools.Shutdown()
		db.Close()
		return nil, fmt.Errorf("init river workers: %w", err)
	}
	registerPeriodicJobs(db)

	jwtCfg := middleware.JWTConfig{
		SigningKey: []byte(cfg.Auth.JWTSecret),
		Issuer:     "koinonia",
		ExpiresIn:  cfg.Auth.TokenTTL,
	}
	server := handlers.NewServer(handlers.ServerDeps{
		Pool:        db.Pool,
		JWTCfg:      jwtCfg,
		Memberships: memberships,
		Events:      eventManager,
		Store:       store,
		Prefs:       prefs,
		Users:       users,
	})

	return &Application{
		Config: cfg,
		Router: newRouter(server, jwtCfg.SigningKey),
		DB:     db,
		Pools:  pools,
	}, nil
}

// registerPeriodicJobs schedules the recurring work. Uniqueness lives in each
// job's InsertOpts, so RunOnStart cannot double-send within a period.
func registerPeriodicJobs(db *infrastructure.DatabaseClients) {
	if db.RiverClient == nil {
		return
	}
	periodic := db.RiverClient.PeriodicJobs()

	periodic.Add(river.NewPeriodicJob(
		river.PeriodicInterval(24*time.Hour),
		func() (river.JobArgs, *river.InsertOpts) {
			return jobs.EngagementNudgeArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	))
	periodic.Add(river.NewPeriodicJob(
		river.PeriodicInterval(24*time.Hour),
		func() (river.JobArgs, *river.InsertOpts) {
			return jobs.InactivityNudgeArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	))
	periodic.Add(river.NewPeriodicJob(
		river.PeriodicInterval(7*24*time.Hour),
		func() (river.JobArgs, *river.InsertOpts) {
			return jobs.WeeklyDigestArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	))
	periodic.Add(river.NewPeriodicJob(
		river.PeriodicInterval(7*24*time.Hour),
		func() (river.JobArgs, *river.InsertOpts) {
			return jobs.ApologeticsHighlightArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	))
	periodic.Add(river.NewPeriodicJob(
		river.PeriodicInterval(24*time.Hour),
		func() (river.JobArgs, *river.InsertOpts) {
			return jobs.NotificationCleanupArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	))
}
