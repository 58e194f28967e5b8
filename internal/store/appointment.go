package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/agenda/internal/model"
)

type AppointmentStore struct {
	db *sql.DB
}

func NewAppointmentStore(db *sql.DB) *AppointmentStore {
	return &AppointmentStore{db: db}
}

const appointmentCols = `id, owner_id, description, date, start_time, end_time, location, completed, created_at, updated_at`

func scanAppointment(scanner interface{ Scan(...any) error }) (*model.Appointment, error) {
	var a model.Appointment
	var completed int
	err := scanner.Scan(&a.ID, &a.OwnerID, &a.Description, &a.Date, &a.StartTime, &a.EndTime, &a.Location, &completed, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Completed = completed != 0
	return &a, nil
}

func (s *AppointmentStore) Create(ownerID, description, date, startTime, endTime, location string) (*model.Appointment, error) {
	result, err := s.db.Exec(
		`INSERT INTO appointments (owner_id, description, date, start_time, end_time, location)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ownerID, description, date, startTime, endTime, location,
	)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id, ownerID)
}

func (s *AppointmentStore) GetByID(id int64, ownerID string) (*model.Appointment, error) {
	row := s.db.QueryRow(`SELECT `+appointmentCols+` FROM appointments WHERE id = ? AND owner_id = ?`, id, ownerID)
	a, err := scanAppointment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (s *AppointmentStore) List(ownerID string) ([]model.Appointment, error) {
	rows, err := s.db.Query(
		`SELECT `+appointmentCols+` FROM appointments WHERE owner_id = ?
		 ORDER BY date DESC, start_time ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (s *AppointmentStore) Update(id int64, ownerID, description, date, startTime, endTime, location string, completed bool) (*model.Appointment, error) {
	var completedInt int
	if completed {
		completedInt = 1
	}
	_, err := s.db.Exec(
		`UPDATE appointments
		 SET description = ?, date = ?, start_time = ?, end_time = ?, location = ?, completed = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND owner_id = ?`,
		description, date, startTime, endTime, location, completedInt, id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}
	return s.GetByID(id, ownerID)
}

func (s *AppointmentStore) Delete(id int64, ownerID string) error {
	_, err := s.db.Exec(`DELETE FROM appointments WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	return nil
}

// ListBetween returns appointments dated in [from, to] (YYYY-MM-DD, inclusive).
func (s *AppointmentStore) ListBetween(ctx context.Context, ownerID, from, to string) ([]model.Appointment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+appointmentCols+` FROM appointments
		 WHERE owner_id = ? AND date >= ? AND date <= ?
		 ORDER BY date, start_time LIMIT ?`,
		ownerID, from, to, scanLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("list appointments between: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func scanAppointments(rows *sql.Rows) ([]model.Appointment, error) {
	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appts = append(appts, *a)
	}
	return appts, rows.Err()
}
