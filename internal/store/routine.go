package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/agenda/internal/model"
)

type RoutineStore struct {
	db *sql.DB
}

func NewRoutineStore(db *sql.DB) *RoutineStore {
	return &RoutineStore{db: db}
}

const routineCols = `id, owner_id, description, start_date, end_date, start_time, end_time, days_of_week, is_active, created_at, updated_at`

func scanRoutine(scanner interface{ Scan(...any) error }) (*model.Routine, error) {
	var r model.Routine
	var days string
	var active int
	err := scanner.Scan(&r.ID, &r.OwnerID, &r.Description, &r.StartDate, &r.EndDate, &r.StartTime, &r.EndTime, &days, &active, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.DaysOfWeek = splitDays(days)
	r.Active = active != 0
	return &r, nil
}

// Days of week are stored comma-separated.
func joinDays(days []string) string {
	cleaned := make([]string, 0, len(days))
	for _, d := range days {
		if d = strings.TrimSpace(d); d != "" {
			cleaned = append(cleaned, d)
		}
	}
	return strings.Join(cleaned, ",")
}

func splitDays(s string) []string {
	days := []string{}
	for _, d := range strings.Split(s, ",") {
		if d = strings.TrimSpace(d); d != "" {
			days = append(days, d)
		}
	}
	return days
}

func (s *RoutineStore) Create(ownerID string, r model.Routine) (*model.Routine, error) {
	var active int
	if r.Active {
		active = 1
	}
	result, err := s.db.Exec(
		`INSERT INTO routines (owner_id, description, start_date, end_date, start_time, end_time, days_of_week, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ownerID, r.Description, r.StartDate, r.EndDate, r.StartTime, r.EndTime, joinDays(r.DaysOfWeek), active,
	)
	if err != nil {
		return nil, fmt.Errorf("insert routine: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id, ownerID)
}

func (s *RoutineStore) GetByID(id int64, ownerID string) (*model.Routine, error) {
	row := s.db.QueryRow(`SELECT `+routineCols+` FROM routines WHERE id = ? AND owner_id = ?`, id, ownerID)
	r, err := scanRoutine(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get routine: %w", err)
	}
	return r, nil
}

func (s *RoutineStore) List(ownerID string) ([]model.Routine, error) {
	rows, err := s.db.Query(
		`SELECT `+routineCols+` FROM routines WHERE owner_id = ? ORDER BY start_time ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list routines: %w", err)
	}
	defer rows.Close()
	return scanRoutines(rows)
}

func (s *RoutineStore) Update(id int64, ownerID string, r model.Routine) (*model.Routine, error) {
	var active int
	if r.Active {
		active = 1
	}
	_, err := s.db.Exec(
		`UPDATE routines
		 SET description = ?, start_date = ?, end_date = ?, start_time = ?, end_time = ?, days_of_week = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND owner_id = ?`,
		r.Description, r.StartDate, r.EndDate, r.StartTime, r.EndTime, joinDays(r.DaysOfWeek), active, id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("update routine: %w", err)
	}
	return s.GetByID(id, ownerID)
}

func (s *RoutineStore) Delete(id int64, ownerID string) error {
	_, err := s.db.Exec(`DELETE FROM routines WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete routine: %w", err)
	}
	return nil
}

// ListActive returns the owner's active routines; day and date filtering is
// left to the caller.
func (s *RoutineStore) ListActive(ctx context.Context, ownerID string) ([]model.Routine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+routineCols+` FROM routines WHERE owner_id = ? AND is_active = 1
		 ORDER BY start_time LIMIT ?`,
		ownerID, scanLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("list active routines: %w", err)
	}
	defer rows.Close()
	return scanRoutines(rows)
}

func scanRoutines(rows *sql.Rows) ([]model.Routine, error) {
	var routines []model.Routine
	for rows.Next() {
		r, err := scanRoutine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan routine: %w", err)
		}
		routines = append(routines, *r)
	}
	return routines, rows.Err()
}
