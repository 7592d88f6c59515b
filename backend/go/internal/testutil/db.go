// Package testutil provides test helpers shared by the trend service packages.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"TrendWatch/backend/go/internal/database/sqlite"
	"TrendWatch/backend/go/internal/models"

	"gorm.io/gorm"
)

// NewDB opens a migrated sqlite database in a temp directory.
// The connection is closed when the test finishes.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "trends.db"))
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("migrating schema: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlite.Close(db)
	})
	return db
}

// At parses a "2006-01-02 15:04:05" timestamp in UTC.
func At(t *testing.T, value string) time.Time {
	t.Helper()

	ts, err := time.ParseInLocation(time.DateTime, value, time.UTC)
	if err != nil {
		t.Fatalf("parsing %q: %v", value, err)
	}
	return ts
}
