package model

import "time"

// Defaults applied when a user has never saved reminder preferences.
const DefaultTaskLeadMinutes = -15

type PushSubscription struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReminderPreference holds a user's lead offsets in minutes. Negative values
// mean "before the event".
type ReminderPreference struct {
	OwnerID            string    `json:"owner_id"`
	TasksLeadMinutes   int       `json:"tasks_lead_min"`
	AppointmentOffsets []int     `json:"appointment_offsets"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// DefaultReminderPreference returns the preference used when none is stored.
func DefaultReminderPreference(ownerID string) ReminderPreference {
	return ReminderPreference{
		OwnerID:            ownerID,
		TasksLeadMinutes:   DefaultTaskLeadMinutes,
		AppointmentOffsets: []int{},
	}
}

// SentKey identifies one reminder delivery in the sent-log.
type SentKey struct {
	OwnerID  string
	Kind     string
	EntityID string
	Offset   int
}

type SentRecord struct {
	ID       int64     `json:"id"`
	OwnerID  string    `json:"owner_id"`
	Kind     string    `json:"entity_type"`
	EntityID string    `json:"entity_id"`
	Offset   int       `json:"offset_min"`
	SentAt   time.Time `json:"sent_at"`
}
