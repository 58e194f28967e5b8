package restdb

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/dukerupert/agenda/internal/model"
)

// Preferences reads and upserts notification_prefs.
type Preferences struct {
	c *Client
}

func (c *Client) Preferences() *Preferences {
	return &Preferences{c: c}
}

// Get returns nil when the owner has no row.
func (p *Preferences) Get(ctx context.Context, ownerID string) (*model.ReminderPreference, error) {
	var rows []preferenceRow
	q := url.Values{
		"select":   {"owner_id,tasks_lead_min,appointment_offsets"},
		"owner_id": {eq(ownerID)},
		"limit":    {"1"},
	}
	if err := p.c.get(ctx, "notification_prefs", q, &rows); err != nil {
		return nil, fmt.Errorf("get notification prefs: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	pref := rows[0].toModel()
	return &pref, nil
}

// Upsert merges the row on owner_id.
func (p *Preferences) Upsert(ctx context.Context, pref model.ReminderPreference) error {
	offsets := pref.AppointmentOffsets
	if offsets == nil {
		offsets = []int{}
	}
	lead := pref.TasksLeadMinutes
	row := struct {
		preferenceRow
		UpdatedAt time.Time `json:"updated_at"`
	}{
		preferenceRow: preferenceRow{OwnerID: pref.OwnerID, TasksLeadMinutes: &lead, AppointmentOffsets: offsets},
		UpdatedAt:     time.Now().UTC(),
	}
	if err := p.c.upsert(ctx, "notification_prefs", "owner_id", row); err != nil {
		return fmt.Errorf("upsert notification prefs: %w", err)
	}
	return nil
}

// Subscriptions manages push_subscriptions in the hosted store.
type Subscriptions struct {
	c *Client
}

func (c *Client) Subscriptions() *Subscriptions {
	return &Subscriptions{c: c}
}

type subscriptionRow struct {
	ID         int64      `json:"id,omitempty"`
	UserID     string     `json:"user_id"`
	Endpoint   string     `json:"endpoint"`
	P256dhKey  string     `json:"p256dh"`
	AuthKey    string     `json:"auth"`
	DeviceName string     `json:"device_name"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

func (r subscriptionRow) toModel() model.PushSubscription {
	sub := model.PushSubscription{
		ID:         r.ID,
		UserID:     r.UserID,
		Endpoint:   r.Endpoint,
		P256dhKey:  r.P256dhKey,
		AuthKey:    r.AuthKey,
		DeviceName: r.DeviceName,
	}
	if r.CreatedAt != nil {
		sub.CreatedAt = *r.CreatedAt
	}
	return sub
}

const subscriptionSelect = "id,user_id,endpoint,p256dh,auth,device_name,created_at"

// CreateSubscription upserts on endpoint, moving it to userID.
func (s *Subscriptions) CreateSubscription(userID, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error) {
	ctx, cancel := s.c.timeout()
	defer cancel()

	row := subscriptionRow{UserID: userID, Endpoint: endpoint, P256dhKey: p256dh, AuthKey: auth, DeviceName: deviceName}
	if err := s.c.upsert(ctx, "push_subscriptions", "endpoint", row); err != nil {
		return nil, fmt.Errorf("create push subscription: %w", err)
	}

	var rows []subscriptionRow
	q := url.Values{"select": {subscriptionSelect}, "endpoint": {eq(endpoint)}, "limit": {"1"}}
	if err := s.c.get(ctx, "push_subscriptions", q, &rows); err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	sub := rows[0].toModel()
	return &sub, nil
}

func (s *Subscriptions) ListByUser(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	var rows []subscriptionRow
	q := url.Values{"select": {subscriptionSelect}, "user_id": {eq(userID)}}
	if err := s.c.get(ctx, "push_subscriptions", q, &rows); err != nil {
		return nil, fmt.Errorf("list push subscriptions by user: %w", err)
	}
	subs := make([]model.PushSubscription, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.toModel())
	}
	return subs, nil
}

func (s *Subscriptions) DeleteByEndpoint(endpoint string) error {
	ctx, cancel := s.c.timeout()
	defer cancel()
	if _, err := s.c.delete(ctx, "push_subscriptions", url.Values{"endpoint": {eq(endpoint)}}); err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}

func (s *Subscriptions) DeleteByUserEndpoint(userID, endpoint string) error {
	ctx, cancel := s.c.timeout()
	defer cancel()
	q := url.Values{"user_id": {eq(userID)}, "endpoint": {eq(endpoint)}}
	if _, err := s.c.delete(ctx, "push_subscriptions", q); err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

func (s *Subscriptions) DeleteByUser(userID string) error {
	ctx, cancel := s.c.timeout()
	defer cancel()
	if _, err := s.c.delete(ctx, "push_subscriptions", url.Values{"user_id": {eq(userID)}}); err != nil {
		return fmt.Errorf("delete push subscriptions by user: %w", err)
	}
	return nil
}
