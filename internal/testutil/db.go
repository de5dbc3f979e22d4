// Package testutil provides shared test fixtures.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"koinonia.app/platform/internal/model"
	"koinonia.app/platform/internal/pkg/logger"
)

var dbSeq atomic.Int64

// OpenDB opens an isolated in-memory sqlite database with the full schema
// migrated. Each call gets its own database; the shared-cache name keeps all
// pooled connections of one test on the same store.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	_ = logger.Init("error", "json")

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// Keep the in-memory database alive for the whole test.
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&model.User{},
		&model.PushToken{},
		&model.Community{},
		&model.CommunityMember{},
		&model.Event{},
		&model.EventRSVP{},
		&model.Notification{},
		&model.Post{},
		&model.ApologeticsAnswer{},
	); err != nil {
		t.Fatalf("migrate test schema: %v", err)
	}
	return db
}
