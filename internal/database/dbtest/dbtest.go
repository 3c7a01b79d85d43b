// Package dbtest opens throwaway in-memory stores for package tests.
package dbtest

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/psds-microservice/installation-service/internal/database"
	"gorm.io/gorm"
)

// Open returns a migrated in-memory SQLite database closed with the test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), database.Config())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}
