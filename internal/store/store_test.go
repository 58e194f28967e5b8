package store

import (
	"database/sql"
	"testing"

	"github.com/dukerupert/agenda/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *sql.DB, username string) string {
	t.Helper()
	u, err := NewUserStore(db).Create(username, "hash", "")
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u.ID
}
