// Package testdb opens migrated in-memory SQLite ledgers for tests.
package testdb

import (
	"testing"

	"github.com/aimd54/feedback-ledger/internal/repository"
	"github.com/aimd54/feedback-ledger/pkg/logger"
)

// New returns an empty, migrated in-memory ledger that is closed when the test ends.
func New(t *testing.T) *repository.DB {
	t.Helper()

	db, err := repository.OpenSQLite(":memory:", nil, logger.Nop())
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}
