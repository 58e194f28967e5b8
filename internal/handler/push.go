package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/agenda/internal/auth"
	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/push"
)

// SubscriptionRepo stores push subscriptions. Implemented by store.PushStore
// and restdb.Subscriptions.
type SubscriptionRepo interface {
	CreateSubscription(userID, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error)
	ListByUser(ctx context.Context, userID string) ([]model.PushSubscription, error)
	DeleteByUserEndpoint(userID, endpoint string) error
	DeleteByUser(userID string) error
}

// OwnerResolver maps a user id or username onto a stable user id.
type OwnerResolver interface {
	ResolveOwner(userID, username string) (string, error)
}

// UserNotifier fans a payload out to a user's devices.
type UserNotifier interface {
	NotifyUser(ctx context.Context, userID string, payload push.Payload) (push.Result, error)
}

type PushHandler struct {
	subs      SubscriptionRepo
	notifier  UserNotifier
	owners    OwnerResolver
	publicKey string
	sendToken string
	logger    *slog.Logger
}

// NewPushHandler wires the push endpoints. notifier may be nil when VAPID keys
// are not configured; sending then answers 503.
func NewPushHandler(subs SubscriptionRepo, notifier UserNotifier, owners OwnerResolver, publicKey, sendToken string, logger *slog.Logger) *PushHandler {
	return &PushHandler{
		subs:      subs,
		notifier:  notifier,
		owners:    owners,
		publicKey: publicKey,
		sendToken: sendToken,
		logger:    logger,
	}
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint" validate:"required,url"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	DeviceName string `json:"device_name" validate:"max=100"`
	Keys       struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Subscribe handles POST /api/push/subscribe. Keys may be sent flat or nested
// under "keys" as PushSubscription.toJSON() produces them.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req subscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.P256dh == "" {
		req.P256dh = req.Keys.P256dh
	}
	if req.Auth == "" {
		req.Auth = req.Keys.Auth
	}
	if req.P256dh == "" || req.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint, p256dh, and auth are required")
		return
	}
	if req.DeviceName == "" {
		req.DeviceName = r.UserAgent()
		if len(req.DeviceName) > 100 {
			req.DeviceName = req.DeviceName[:100]
		}
	}

	sub, err := h.subs.CreateSubscription(userID, req.Endpoint, req.P256dh, req.Auth, req.DeviceName)
	if err != nil {
		h.logger.Error("create push subscription", "error", err)
		writeError(w, http.StatusBadGateway, "failed to save subscription")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "subscription": sub})
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// Unsubscribe handles POST /api/push/unsubscribe. Without an endpoint every
// subscription of the current user is removed.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req unsubscribeRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	var err error
	if req.Endpoint != "" {
		err = h.subs.DeleteByUserEndpoint(userID, req.Endpoint)
	} else {
		err = h.subs.DeleteByUser(userID)
	}
	if err != nil {
		h.logger.Error("delete push subscription", "error", err)
		writeError(w, http.StatusBadGateway, "failed to delete subscription")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ListSubscriptions handles GET /api/push/subscriptions.
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subs.ListByUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list push subscriptions", "error", err)
		writeError(w, http.StatusBadGateway, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// VAPIDKey handles GET /api/push/vapid-key.
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.publicKey == "" {
		writeError(w, http.StatusServiceUnavailable, "push not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.publicKey})
}

// TestNotification handles POST /api/push/test.
func (h *PushHandler) TestNotification(w http.ResponseWriter, r *http.Request) {
	h.notify(w, r, auth.UserID(r.Context()), push.Payload{
		Title: "Test notification",
		Body:  "Push notifications are working!",
		URL:   "/",
		Tag:   "test",
	})
}

type sendRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Title    string `json:"title" validate:"max=200"`
	Body     string `json:"body" validate:"max=1000"`
	URL      string `json:"url"`
}

// Send handles POST /api/push/send, the transport the reminder engine uses in
// http mode. When a send token is configured it must be presented as a
// bearer token.
func (h *PushHandler) Send(w http.ResponseWriter, r *http.Request) {
	if h.sendToken != "" && !h.validToken(r) {
		writeError(w, http.StatusUnauthorized, "invalid send token")
		return
	}

	var req sendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" && req.Username == "" {
		writeError(w, http.StatusBadRequest, "user_id or username is required")
		return
	}

	owner, err := h.owners.ResolveOwner(req.UserID, req.Username)
	if err != nil {
		h.logger.Error("resolve push owner", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if owner == "" {
		// Hosted tables may own rows for users that never signed in locally.
		owner = req.UserID
	}
	if owner == "" {
		writeError(w, http.StatusNotFound, "unknown user")
		return
	}

	payload := push.Payload{Title: req.Title, Body: req.Body, URL: req.URL}
	if payload.Title == "" {
		payload.Title = "Agenda"
	}
	if payload.Body == "" {
		payload.Body = "You have a notification"
	}
	if payload.URL == "" {
		payload.URL = "/"
	}
	h.notify(w, r, owner, payload)
}

func (h *PushHandler) notify(w http.ResponseWriter, r *http.Request, userID string, payload push.Payload) {
	if h.notifier == nil {
		writeError(w, http.StatusServiceUnavailable, "push not configured")
		return
	}

	res, err := h.notifier.NotifyUser(r.Context(), userID, payload)
	if errors.Is(err, push.ErrNoSubscriptions) {
		writeError(w, http.StatusNotFound, "no subscriptions")
		return
	}
	if err != nil {
		h.logger.Error("push notify", "user", userID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to send")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"sent":    res.Sent,
		"expired": res.Expired,
		"failed":  res.Failed,
	})
}

func (h *PushHandler) validToken(r *http.Request) bool {
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.sendToken)) == 1
}
