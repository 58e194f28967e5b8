package store

import (
	"errors"
	"testing"
	"time"
)

func TestUserCreate(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	u, err := us.Create("alice", "hash", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if len(u.ID) != 36 {
		t.Errorf("id = %q, want a uuid", u.ID)
	}
	if u.Role != "user" {
		t.Errorf("role = %q, want %q", u.Role, "user")
	}

	_, err = us.Create("ALICE", "hash", "")
	if !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate create err = %v, want ErrUsernameTaken", err)
	}
}

func TestUserGetByUsernameNotFound(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	u, err := us.GetByUsername("nobody")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if u != nil {
		t.Errorf("expected nil user, got %+v", u)
	}
}

func TestUserResolveOwner(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)
	id := createTestUser(t, db, "bob")

	tests := []struct {
		name     string
		userID   string
		username string
		want     string
	}{
		{"by id", id, "", id},
		{"by username", "", "Bob", id},
		{"unknown id falls back to username", "missing", "bob", id},
		{"unknown", "missing", "carol", ""},
		{"empty", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := us.ResolveOwner(tt.userID, tt.username)
			if err != nil {
				t.Fatalf("resolve owner: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveOwner(%q, %q) = %q, want %q", tt.userID, tt.username, got, tt.want)
			}
		})
	}
}

func TestSessionCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSessionStore(db)
	uid := createTestUser(t, db, "alice")

	sess, err := ss.Create(uid)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 64 {
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}

	got, err := ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got == nil || got.UserID != uid {
		t.Fatalf("session = %+v, want user %s", got, uid)
	}

	if err := ss.Delete(sess.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	got, _ = ss.GetByToken(sess.Token)
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestSessionExpired(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSessionStore(db)
	uid := createTestUser(t, db, "alice")

	_, err := db.Exec(`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		"stale", uid, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("insert expired session: %v", err)
	}

	got, err := ss.GetByToken("stale")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got != nil {
		t.Error("expected expired session to be hidden")
	}

	n, err := ss.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}
