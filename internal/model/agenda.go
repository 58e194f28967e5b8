package model

import "time"

// Dates are stored as YYYY-MM-DD and wall-clock times as HH:MM[:SS] in the
// user's local zone. They stay strings so a malformed row can be skipped by
// the reminder engine instead of failing the whole query.

type Task struct {
	ID          int64     `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Description string    `json:"description"`
	DueDate     string    `json:"due_date"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	Priority    string    `json:"priority"`
	Completed   bool      `json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Routine struct {
	ID          int64     `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Description string    `json:"description"`
	StartDate   string    `json:"date"`
	EndDate     string    `json:"end_date"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	DaysOfWeek  []string  `json:"days_of_week"`
	Active      bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Appointment struct {
	ID          int64     `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	Location    string    `json:"location"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Activity kinds used by the unified listing.
const (
	ActivityTask        = "task"
	ActivityRoutine     = "routine"
	ActivityAppointment = "appointment"
)

// Activity is a flattened view over tasks, routines and appointments.
type Activity struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Date        string `json:"date,omitempty"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Status      string `json:"status"`
	OwnerID     string `json:"owner_id"`
}
