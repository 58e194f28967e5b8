package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/agenda/internal/reminder"
)

// TypeReminderSent is the message type pushed when a reminder fires.
const TypeReminderSent = "reminder_sent"

// Message is a live event delivered to a user's open tabs.
type Message struct {
	Type     string    `json:"type"`
	Kind     string    `json:"kind,omitempty"`
	EntityID string    `json:"entity_id,omitempty"`
	Title    string    `json:"title,omitempty"`
	Body     string    `json:"body,omitempty"`
	URL      string    `json:"url,omitempty"`
	Offset   int       `json:"offset_min"`
	Trigger  time.Time `json:"trigger,omitzero"`
}

// ReminderMessage builds the event mirrored to a user's tabs for a fired reminder.
func ReminderMessage(n reminder.Notification, c reminder.Candidate) Message {
	return Message{
		Type:     TypeReminderSent,
		Kind:     string(c.Kind),
		EntityID: c.EntityID,
		Title:    n.Title,
		Body:     n.Body,
		URL:      n.URL,
		Offset:   c.Offset,
		Trigger:  c.Trigger,
	}
}

// Hub tracks connected clients grouped by user.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes a client and closes its send channel. Calling it twice is safe.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
}

// SendToUser delivers msg to every tab the user has open and reports how
// many clients accepted it. Clients with a full buffer are skipped.
func (h *Hub) SendToUser(userID string, msg Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal websocket message", "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for c := range h.clients[userID] {
		select {
		case c.send <- data:
			n++
		default:
			h.logger.Debug("websocket buffer full, dropping message", "user_id", userID)
		}
	}
	return n
}

// NotifyReminder is an engine listener that mirrors a fired reminder to the owner's tabs.
func (h *Hub) NotifyReminder(n reminder.Notification, c reminder.Candidate) {
	h.SendToUser(n.Owner, ReminderMessage(n, c))
}

// ClientCount returns the number of connected clients across all users.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, set := range h.clients {
		total += len(set)
	}
	return total
}
