package reminder

import (
	"context"
	"time"

	"github.com/dukerupert/agenda/internal/model"
)

// Every kind is deduplicated on the full (owner, kind, entity, offset) key, so
// a second offset on the same entity is a distinct reminder.

// Ledger reads and writes the sent-log.
type Ledger struct {
	store Store
}

func NewLedger(s Store) *Ledger {
	return &Ledger{store: s}
}

// ShouldSend reports whether no sent-log row matches key.
func (l *Ledger) ShouldSend(ctx context.Context, key model.SentKey) (bool, error) {
	sent, err := l.store.WasSent(ctx, key)
	if err != nil {
		return false, err
	}
	return !sent, nil
}

// MarkSent appends a sent-log row. Callers treat failure as non-fatal.
func (l *Ledger) MarkSent(ctx context.Context, key model.SentKey) error {
	return l.store.RecordSent(ctx, key)
}

// Claimer takes an exclusive, expiring claim on a key so that two overlapping
// ticks cannot both dispatch it.
type Claimer interface {
	Claim(ctx context.Context, key model.SentKey, ttl time.Duration) (bool, error)
}
