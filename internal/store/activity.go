package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/dukerupert/agenda/internal/model"
)

// Activity statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// ActivityFilter narrows the unified listing. Empty fields match everything.
type ActivityFilter struct {
	Query  string
	Kind   string
	Status string
	From   string
	To     string
}

type ActivityStore struct {
	db *sql.DB
}

func NewActivityStore(db *sql.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

// List returns the owner's tasks, routines and appointments flattened into
// activities, newest date first and by start time within a date. Undated
// activities sort last and are never excluded by the date range.
func (s *ActivityStore) List(ctx context.Context, ownerID string, f ActivityFilter) ([]model.Activity, error) {
	queries := []struct {
		kind  string
		query string
	}{
		{model.ActivityTask, `SELECT id, description, due_date, start_time, end_time, is_completed FROM tasks WHERE owner_id = ?`},
		{model.ActivityRoutine, `SELECT id, description, start_date, start_time, end_time, 0 FROM routines WHERE owner_id = ?`},
		{model.ActivityAppointment, `SELECT id, description, date, start_time, end_time, completed FROM appointments WHERE owner_id = ?`},
	}

	kind := strings.ToLower(strings.TrimSpace(f.Kind))
	var out []model.Activity
	for _, q := range queries {
		if kind != "" && kind != q.kind {
			continue
		}
		acts, err := s.query(ctx, q.kind, q.query, ownerID)
		if err != nil {
			return nil, err
		}
		for _, a := range acts {
			if f.matches(a) {
				out = append(out, a)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Date, out[j].Date
		if di != dj {
			if di == "" {
				return false
			}
			if dj == "" {
				return true
			}
			return di > dj
		}
		return sortTime(out[i].StartTime) < sortTime(out[j].StartTime)
	})
	return out, nil
}

func (s *ActivityStore) query(ctx context.Context, kind, query, ownerID string) ([]model.Activity, error) {
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list %s activities: %w", kind, err)
	}
	defer rows.Close()

	var acts []model.Activity
	for rows.Next() {
		var a model.Activity
		var done int
		if err := rows.Scan(&a.ID, &a.Description, &a.Date, &a.StartTime, &a.EndTime, &done); err != nil {
			return nil, fmt.Errorf("scan %s activity: %w", kind, err)
		}
		a.Kind = kind
		a.OwnerID = ownerID
		a.StartTime = hhmm(a.StartTime)
		a.EndTime = hhmm(a.EndTime)
		a.Status = StatusPending
		if done != 0 {
			a.Status = StatusCompleted
		}
		acts = append(acts, a)
	}
	return acts, rows.Err()
}

func (f ActivityFilter) matches(a model.Activity) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" &&
		!strings.Contains(strings.ToLower(a.Description), q) {
		return false
	}
	if st := strings.ToLower(strings.TrimSpace(f.Status)); st != "" && st != a.Status {
		return false
	}
	if a.Date != "" {
		if f.From != "" && a.Date < f.From {
			return false
		}
		if f.To != "" && a.Date > f.To {
			return false
		}
	}
	return true
}

func hhmm(s string) string {
	if len(s) >= 5 {
		return s[:5]
	}
	return s
}

func sortTime(s string) string {
	if s == "" {
		return "99:99"
	}
	return s
}
