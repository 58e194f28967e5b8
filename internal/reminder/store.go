package reminder

import (
	"context"

	"github.com/dukerupert/agenda/internal/model"
)

// Store is the read and sent-log surface the engine needs. Dates are
// YYYY-MM-DD strings and ranges are inclusive.
type Store interface {
	ListPreferences(ctx context.Context) ([]model.ReminderPreference, error)
	ListSubscribedUsers(ctx context.Context) ([]string, error)
	DueTasks(ctx context.Context, ownerID, from, to string) ([]model.Task, error)
	ActiveRoutines(ctx context.Context, ownerID string) ([]model.Routine, error)
	AppointmentsBetween(ctx context.Context, ownerID, from, to string) ([]model.Appointment, error)
	WasSent(ctx context.Context, key model.SentKey) (bool, error)
	RecordSent(ctx context.Context, key model.SentKey) error
}
