package store

import (
	"context"
	"database/sql"

	"github.com/dukerupert/agenda/internal/model"
)

// ReminderSource exposes the SQLite tables in the shape the reminder engine
// reads them.
type ReminderSource struct {
	tasks        *TaskStore
	routines     *RoutineStore
	appointments *AppointmentStore
	prefs        *PreferenceStore
	push         *PushStore
}

func NewReminderSource(db *sql.DB) *ReminderSource {
	return &ReminderSource{
		tasks:        NewTaskStore(db),
		routines:     NewRoutineStore(db),
		appointments: NewAppointmentStore(db),
		prefs:        NewPreferenceStore(db),
		push:         NewPushStore(db),
	}
}

func (s *ReminderSource) ListPreferences(ctx context.Context) ([]model.ReminderPreference, error) {
	return s.prefs.List(ctx)
}

func (s *ReminderSource) ListSubscribedUsers(ctx context.Context) ([]string, error) {
	return s.push.ListUserIDs(ctx)
}

func (s *ReminderSource) DueTasks(ctx context.Context, ownerID, from, to string) ([]model.Task, error) {
	return s.tasks.ListPendingBetween(ctx, ownerID, from, to)
}

func (s *ReminderSource) ActiveRoutines(ctx context.Context, ownerID string) ([]model.Routine, error) {
	return s.routines.ListActive(ctx, ownerID)
}

func (s *ReminderSource) AppointmentsBetween(ctx context.Context, ownerID, from, to string) ([]model.Appointment, error) {
	return s.appointments.ListBetween(ctx, ownerID, from, to)
}

func (s *ReminderSource) WasSent(ctx context.Context, key model.SentKey) (bool, error) {
	return s.push.WasSent(ctx, key)
}

func (s *ReminderSource) RecordSent(ctx context.Context, key model.SentKey) error {
	return s.push.RecordSent(ctx, key)
}
