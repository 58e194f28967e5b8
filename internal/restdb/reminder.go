package restdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/agenda/internal/model"
)

type taskRow struct {
	ID          int64   `json:"id"`
	OwnerID     string  `json:"owner_id"`
	Description *string `json:"description"`
	DueDate     *string `json:"due_date"`
	StartTime   *string `json:"start_time"`
	Completed   *bool   `json:"is_completed"`
}

type routineRow struct {
	ID          int64           `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Description *string         `json:"description"`
	StartDate   *string         `json:"start_date"`
	EndDate     *string         `json:"end_date"`
	StartTime   *string         `json:"start_time"`
	DaysOfWeek  json.RawMessage `json:"days_of_week"`
	Active      *bool           `json:"is_active"`
}

type appointmentRow struct {
	ID          int64   `json:"id"`
	OwnerID     string  `json:"owner_id"`
	Description *string `json:"description"`
	Date        *string `json:"date"`
	StartTime   *string `json:"start_time"`
}

type preferenceRow struct {
	OwnerID            string `json:"owner_id"`
	TasksLeadMinutes   *int   `json:"tasks_lead_min"`
	AppointmentOffsets []int  `json:"appointment_offsets"`
}

type sentRow struct {
	OwnerID  string    `json:"owner_id"`
	Kind     string    `json:"entity_type"`
	EntityID string    `json:"entity_id"`
	Offset   int       `json:"offset_min"`
	SentAt   time.Time `json:"sent_at"`
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func boolean(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// parseDays accepts a JSON array of names or numbers, or one comma-separated
// string.
func parseDays(raw json.RawMessage) []string {
	days := []string{}
	if len(raw) == 0 || string(raw) == "null" {
		return days
	}
	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, v := range list {
			switch d := v.(type) {
			case string:
				if d = strings.TrimSpace(d); d != "" {
					days = append(days, d)
				}
			case float64:
				days = append(days, strconv.Itoa(int(d)))
			}
		}
		return days
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, d := range strings.Split(s, ",") {
			if d = strings.TrimSpace(d); d != "" {
				days = append(days, d)
			}
		}
	}
	return days
}

func (c *Client) ListPreferences(ctx context.Context) ([]model.ReminderPreference, error) {
	var rows []preferenceRow
	q := url.Values{
		"select": {"owner_id,tasks_lead_min,appointment_offsets"},
		"limit":  {strconv.Itoa(rowLimit)},
	}
	if err := c.get(ctx, "notification_prefs", q, &rows); err != nil {
		return nil, err
	}
	prefs := make([]model.ReminderPreference, 0, len(rows))
	for _, r := range rows {
		prefs = append(prefs, r.toModel())
	}
	return prefs, nil
}

func (r preferenceRow) toModel() model.ReminderPreference {
	p := model.DefaultReminderPreference(r.OwnerID)
	if r.TasksLeadMinutes != nil {
		p.TasksLeadMinutes = *r.TasksLeadMinutes
	}
	if r.AppointmentOffsets != nil {
		p.AppointmentOffsets = r.AppointmentOffsets
	}
	return p
}

func (c *Client) ListSubscribedUsers(ctx context.Context) ([]string, error) {
	var rows []struct {
		UserID string `json:"user_id"`
	}
	q := url.Values{"select": {"user_id"}}
	if err := c.get(ctx, "push_subscriptions", q, &rows); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var ids []string
	for _, r := range rows {
		if r.UserID != "" && !seen[r.UserID] {
			seen[r.UserID] = true
			ids = append(ids, r.UserID)
		}
	}
	return ids, nil
}

func (c *Client) DueTasks(ctx context.Context, ownerID, from, to string) ([]model.Task, error) {
	var rows []taskRow
	q := url.Values{
		"select":       {"id,owner_id,description,due_date,start_time,is_completed"},
		"owner_id":     {eq(ownerID)},
		"is_completed": {"is.false"},
		"due_date":     {"gte." + from, "lte." + to},
		"limit":        {strconv.Itoa(rowLimit)},
	}
	if err := c.get(ctx, "tasks", q, &rows); err != nil {
		return nil, err
	}
	tasks := make([]model.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, model.Task{
			ID:          r.ID,
			OwnerID:     r.OwnerID,
			Description: str(r.Description),
			DueDate:     str(r.DueDate),
			StartTime:   str(r.StartTime),
			Completed:   boolean(r.Completed, false),
		})
	}
	return tasks, nil
}

func (c *Client) ActiveRoutines(ctx context.Context, ownerID string) ([]model.Routine, error) {
	var rows []routineRow
	q := url.Values{
		"select":    {"id,owner_id,description,start_date,end_date,start_time,days_of_week,is_active"},
		"owner_id":  {eq(ownerID)},
		"is_active": {"is.true"},
		"limit":     {strconv.Itoa(rowLimit)},
	}
	if err := c.get(ctx, "routines", q, &rows); err != nil {
		return nil, err
	}
	routines := make([]model.Routine, 0, len(rows))
	for _, r := range rows {
		routines = append(routines, model.Routine{
			ID:          r.ID,
			OwnerID:     r.OwnerID,
			Description: str(r.Description),
			StartDate:   str(r.StartDate),
			EndDate:     str(r.EndDate),
			StartTime:   str(r.StartTime),
			DaysOfWeek:  parseDays(r.DaysOfWeek),
			Active:      boolean(r.Active, true),
		})
	}
	return routines, nil
}

func (c *Client) AppointmentsBetween(ctx context.Context, ownerID, from, to string) ([]model.Appointment, error) {
	var rows []appointmentRow
	q := url.Values{
		"select":   {"id,owner_id,description,date,start_time"},
		"owner_id": {eq(ownerID)},
		"date":     {"gte." + from, "lte." + to},
		"limit":    {strconv.Itoa(rowLimit)},
	}
	if err := c.get(ctx, "appointments", q, &rows); err != nil {
		return nil, err
	}
	appts := make([]model.Appointment, 0, len(rows))
	for _, r := range rows {
		appts = append(appts, model.Appointment{
			ID:          r.ID,
			OwnerID:     r.OwnerID,
			Description: str(r.Description),
			Date:        str(r.Date),
			StartTime:   str(r.StartTime),
		})
	}
	return appts, nil
}

func sentQuery(key model.SentKey) url.Values {
	return url.Values{
		"owner_id":    {eq(key.OwnerID)},
		"entity_type": {eq(key.Kind)},
		"entity_id":   {eq(key.EntityID)},
		"offset_min":  {eq(strconv.Itoa(key.Offset))},
	}
}

func (c *Client) WasSent(ctx context.Context, key model.SentKey) (bool, error) {
	var rows []struct {
		ID int64 `json:"id"`
	}
	q := sentQuery(key)
	q.Set("select", "id")
	q.Set("limit", "1")
	if err := c.get(ctx, "notifications_sent", q, &rows); err != nil {
		return false, fmt.Errorf("check sent notification: %w", err)
	}
	return len(rows) > 0, nil
}

func (c *Client) RecordSent(ctx context.Context, key model.SentKey) error {
	row := sentRow{
		OwnerID:  key.OwnerID,
		Kind:     key.Kind,
		EntityID: key.EntityID,
		Offset:   key.Offset,
		SentAt:   time.Now().UTC(),
	}
	if err := c.insert(ctx, "notifications_sent", row); err != nil {
		return fmt.Errorf("record sent notification: %w", err)
	}
	return nil
}

// CleanupSent deletes sent-log rows older than before.
func (c *Client) CleanupSent(ctx context.Context, before time.Time) (int64, error) {
	q := url.Values{"sent_at": {"lt." + before.UTC().Format(time.RFC3339)}}
	n, err := c.delete(ctx, "notifications_sent", q)
	if err != nil {
		return 0, fmt.Errorf("cleanup sent notifications: %w", err)
	}
	return int64(n), nil
}
