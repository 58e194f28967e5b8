package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/agenda/internal/model"
)

type PreferenceStore struct {
	db *sql.DB
}

func NewPreferenceStore(db *sql.DB) *PreferenceStore {
	return &PreferenceStore{db: db}
}

func scanPreference(scanner interface{ Scan(...any) error }) (*model.ReminderPreference, error) {
	var p model.ReminderPreference
	var offsets string
	if err := scanner.Scan(&p.OwnerID, &p.TasksLeadMinutes, &offsets, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.AppointmentOffsets = []int{}
	if offsets != "" {
		if err := json.Unmarshal([]byte(offsets), &p.AppointmentOffsets); err != nil {
			return nil, fmt.Errorf("decode appointment offsets for %s: %w", p.OwnerID, err)
		}
	}
	return &p, nil
}

// Get returns the stored preference or nil when the user never saved one.
func (s *PreferenceStore) Get(ctx context.Context, ownerID string) (*model.ReminderPreference, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT owner_id, tasks_lead_min, appointment_offsets, updated_at
		 FROM notification_prefs WHERE owner_id = ?`, ownerID,
	)
	p, err := scanPreference(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification prefs: %w", err)
	}
	return p, nil
}

// Upsert inserts or merges the preference row for the owner.
func (s *PreferenceStore) Upsert(ctx context.Context, p model.ReminderPreference) error {
	offsets := p.AppointmentOffsets
	if offsets == nil {
		offsets = []int{}
	}
	data, err := json.Marshal(offsets)
	if err != nil {
		return fmt.Errorf("encode appointment offsets: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notification_prefs (owner_id, tasks_lead_min, appointment_offsets, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(owner_id) DO UPDATE SET
		   tasks_lead_min = excluded.tasks_lead_min,
		   appointment_offsets = excluded.appointment_offsets,
		   updated_at = CURRENT_TIMESTAMP`,
		p.OwnerID, p.TasksLeadMinutes, string(data),
	)
	if err != nil {
		return fmt.Errorf("upsert notification prefs: %w", err)
	}
	return nil
}

// List returns every stored preference row.
func (s *PreferenceStore) List(ctx context.Context) ([]model.ReminderPreference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT owner_id, tasks_lead_min, appointment_offsets, updated_at
		 FROM notification_prefs ORDER BY owner_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list notification prefs: %w", err)
	}
	defer rows.Close()

	var prefs []model.ReminderPreference
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification prefs: %w", err)
		}
		prefs = append(prefs, *p)
	}
	return prefs, rows.Err()
}
