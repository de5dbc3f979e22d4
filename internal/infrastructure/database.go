// Package infrastructure provides database and connection pool setup.
//
// One pgxpool is shared by gorm and River so transactions and connection
// limits are managed in a single place.
package infrastructure

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"koinonia.app/platform/internal/config"
	"koinonia.app/platform/internal/model"
	"koinonia.app/platform/internal/pkg/logger"
)

// DatabaseClients contains all database-related clients.
// All clients share a single pgxpool connection pool. Do not create separate
// sql.Open() and pgxpool.New() pools — that doubles connections.
type DatabaseClients struct {
	// Pool is the shared connection pool (gorm + River).
	Pool *pgxpool.Pool

	// DB is the *sql.DB wrapper around Pool, created via
	// stdlib.OpenDBFromPool so gorm reuses the pgxpool connections.
	DB *sql.DB

	// Gorm is the ORM handle backed by the shared pool.
	Gorm *gorm.DB

	// RiverClient is the River job queue client backed by the shared pool.
	RiverClient *river.Client[pgx.Tx]

	// Redis is the optional shared cache client. nil means the process-local
	// memory cache is in use.
	Redis *redis.Client
}

// NewDatabaseClients creates database clients with a shared connection pool.
func NewDatabaseClients(ctx context.Context, cfg config.DatabaseConfig) (*DatabaseClients, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = time.Minute

	// Set UTC timezone on each new connection
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET timezone = 'UTC'")
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// *sql.DB over the pool, then gorm over that. TranslateError maps the
	// driver's unique-violation to gorm.ErrDuplicatedKey, which the dedupe
	// path in the notification store relies on.
	db := stdlib.OpenDBFromPool(pool)
	gdb, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db}), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	logger.Info("Database connection pool created",
		zap.Int32("max_conns", cfg.MaxConns),
		zap.Int32("min_conns", cfg.MinConns),
	)

	return &DatabaseClients{
		Pool: pool,
		DB:   db,
		Gorm: gdb,
	}, nil
}

// AutoMigrate runs the gorm schema migration and the River queue table
// migration. Development convenience; production schemas should be managed by
// versioned migrations.
func (c *DatabaseClients) AutoMigrate(ctx context.Context) error {
	logger.Info("Running schema auto-migration...")
	if err := c.Gorm.WithContext(ctx).AutoMigrate(
		&model.User{},
		&model.PushToken{},
		&model.Community{},
		&model.CommunityMember{},
		&model.Event{},
		&model.EventRSVP{},
		&model.Post{},
		&model.ApologeticsAnswer{},
		&model.Notification{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	// Partial unique index backing unread dedupe: at most one unread
	// notification per (user, dedupe_key). Read rows release the key.
	// AutoMigrate cannot express the WHERE clause, so it is created here.
	if err := c.Gorm.WithContext(ctx).Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS uk_notifications_unread_dedupe
		 ON notifications (user_id, dedupe_key)
		 WHERE NOT is_read AND dedupe_key <> ''`,
	).Error; err != nil {
		return fmt.Errorf("create dedupe index: %w", err)
	}
	logger.Info("Schema auto-migration completed")

	logger.Info("Running River migration...")
	migrator, err := rivermigrate.New(riverpgxv5.New(c.Pool), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("river migrate up: %w", err)
	}
	if len(res.Versions) > 0 {
		logger.Info("River migration completed",
			zap.Int("versions_applied", len(res.Versions)),
		)
	} else {
		logger.Info("River migration: already up-to-date")
	}

	return nil
}

// InitRiverClient creates a River client with registered workers.
// Called after NewDatabaseClients; workers param comes from bootstrap.
func (c *DatabaseClients) InitRiverClient(workers *river.Workers, cfg config.RiverConfig) error {
	riverClient, err := river.NewClient(riverpgxv5.New(c.Pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.MaxWorkers},
		},
		Workers:                     workers,
		CompletedJobRetentionPeriod: cfg.CompletedJobRetentionPeriod,
	})
	if err != nil {
		return fmt.Errorf("create river client: %w", err)
	}
	c.RiverClient = riverClient
	logger.Info("River client initialized", zap.Int("max_workers", cfg.MaxWorkers))
	return nil
}

// InitRedis connects the optional shared cache. An empty addr is a no-op.
func (c *DatabaseClients) InitRedis(ctx context.Context, cfg config.RedisConfig) error {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("ping redis: %w", err)
	}
	c.Redis = client
	logger.Info("Redis cache connected", zap.String("addr", cfg.Addr))
	return nil
}

// Close closes all connections gracefully.
func (c *DatabaseClients) Close() {
	if c.Redis != nil {
		c.Redis.Close()
	}
	if c.DB != nil {
		c.DB.Close()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}
