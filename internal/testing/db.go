// Package testing provides test helpers for the autopilot project.
package testing

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/aristath/autopilot/internal/database"

	_ "github.com/mattn/go-sqlite3"
)

// NewTestDB creates a file-backed database with the production driver and
// profile, migrated with the autopilot schema. It is closed on test cleanup.
// Use it where WAL, VACUUM INTO or the DB wrapper itself is under test.
func NewTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "autopilot.db"),
		Profile: database.ProfileLedger,
		Name:    "autopilot",
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database: %v", err)
		}
	})
	return db
}

// NewMemoryConn opens a migrated in-memory database on the cgo driver.
// A single connection keeps every query on the same memory database.
func NewMemoryConn(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	conn.SetMaxOpenConns(1)

	if err := database.ApplySchema(conn, "autopilot"); err != nil {
		_ = conn.Close()
		t.Fatalf("Failed to apply schema: %v", err)
	}

	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
