package claim

import (
	"context"
	"testing"

	"github.com/dukerupert/agenda/internal/model"
)

func TestRedisKey(t *testing.T) {
	got := redisKey(model.SentKey{OwnerID: "u1", Kind: "routine", EntityID: "7", Offset: -30})
	want := "agenda:reminder:u1:routine:7:-30"
	if got != want {
		t.Errorf("redisKey = %q, want %q", got, want)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New(context.Background(), "not-a-redis-url"); err == nil {
		t.Error("expected error for invalid url")
	}
}
