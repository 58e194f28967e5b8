package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/agenda/internal/model"
)

func TestCreateSubscriptionUpsert(t *testing.T) {
	db := setupTestDB(t)
	ps := NewPushStore(db)
	uid := createTestUser(t, db, "alice")

	sub1, err := ps.CreateSubscription(uid, "https://push.example.com/sub1", "key1", "auth1", "Device A")
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	sub2, err := ps.CreateSubscription(uid, "https://push.example.com/sub1", "key2", "auth2", "Device B")
	if err != nil {
		t.Fatalf("upsert subscription: %v", err)
	}
	if sub2.ID != sub1.ID {
		t.Errorf("expected same ID on upsert, got %d != %d", sub2.ID, sub1.ID)
	}
	if sub2.P256dhKey != "key2" {
		t.Errorf("p256dh = %q, want %q", sub2.P256dhKey, "key2")
	}
}

func TestListUserIDsAndDelete(t *testing.T) {
	db := setupTestDB(t)
	ps := NewPushStore(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	ctx := context.Background()

	ps.CreateSubscription(alice, "https://push.example.com/a1", "k", "a", "")
	ps.CreateSubscription(alice, "https://push.example.com/a2", "k", "a", "")
	ps.CreateSubscription(bob, "https://push.example.com/b1", "k", "a", "")

	ids, err := ps.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("list user ids: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("len(ids) = %d, want 2", len(ids))
	}

	if err := ps.DeleteByUserEndpoint(bob, "https://push.example.com/a1"); err != nil {
		t.Fatalf("delete foreign endpoint: %v", err)
	}
	subs, _ := ps.ListByUser(ctx, alice)
	if len(subs) != 2 {
		t.Errorf("foreign delete removed a subscription: len = %d", len(subs))
	}

	ps.DeleteByEndpoint("https://push.example.com/a1")
	subs, _ = ps.ListByUser(ctx, alice)
	if len(subs) != 1 {
		t.Errorf("len(subs) = %d, want 1", len(subs))
	}

	ps.DeleteByUser(alice)
	subs, _ = ps.ListByUser(ctx, alice)
	if len(subs) != 0 {
		t.Errorf("len(subs) = %d, want 0", len(subs))
	}
}

func TestSentLog(t *testing.T) {
	ps := NewPushStore(setupTestDB(t))
	ctx := context.Background()
	key := model.SentKey{OwnerID: "u1", Kind: "routine", EntityID: "7", Offset: -60}

	sent, err := ps.WasSent(ctx, key)
	if err != nil {
		t.Fatalf("was sent: %v", err)
	}
	if sent {
		t.Error("expected not sent")
	}

	if err := ps.RecordSent(ctx, key); err != nil {
		t.Fatalf("record sent: %v", err)
	}
	// A second insert for the same key is tolerated.
	if err := ps.RecordSent(ctx, key); err != nil {
		t.Fatalf("record sent twice: %v", err)
	}

	sent, _ = ps.WasSent(ctx, key)
	if !sent {
		t.Error("expected sent")
	}

	other := key
	other.Offset = -30
	sent, _ = ps.WasSent(ctx, other)
	if sent {
		t.Error("different offset must be a different key")
	}

	n, err := ps.CleanupSent(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 2 {
		t.Errorf("cleaned = %d, want 2", n)
	}
}

func TestPreferenceStore(t *testing.T) {
	db := setupTestDB(t)
	prefs := NewPreferenceStore(db)
	uid := createTestUser(t, db, "alice")
	ctx := context.Background()

	p, err := prefs.Get(ctx, uid)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil prefs, got %+v", p)
	}

	if err := prefs.Upsert(ctx, model.ReminderPreference{OwnerID: uid, TasksLeadMinutes: -10, AppointmentOffsets: []int{-60, -30}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := prefs.Upsert(ctx, model.ReminderPreference{OwnerID: uid, TasksLeadMinutes: -5}); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	p, err = prefs.Get(ctx, uid)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.TasksLeadMinutes != -5 {
		t.Errorf("tasks lead = %d, want -5", p.TasksLeadMinutes)
	}
	if len(p.AppointmentOffsets) != 0 {
		t.Errorf("offsets = %v, want empty", p.AppointmentOffsets)
	}

	list, err := prefs.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("len(list) = %d, want 1", len(list))
	}
}
