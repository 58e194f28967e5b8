package handler

import (
	"net/http"

	"github.com/dukerupert/agenda/internal/push"
	"github.com/dukerupert/agenda/internal/reminder"
)

// StatusReporter exposes the reminder engine's status.
type StatusReporter interface {
	Status() reminder.Status
}

type DebugHandler struct {
	engine     StatusReporter
	publicKey  string
	privateKey string
}

// NewDebugHandler accepts a nil engine when the scheduler is disabled.
func NewDebugHandler(engine StatusReporter, publicKey, privateKey string) *DebugHandler {
	return &DebugHandler{engine: engine, publicKey: publicKey, privateKey: privateKey}
}

// Scheduler handles GET /api/_debug/scheduler.
func (h *DebugHandler) Scheduler(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "running": false, "enabled": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "enabled": true, "status": h.engine.Status()})
}

// VAPID handles GET /api/_debug/vapid. match is null when either key is
// missing or the private key cannot be decoded.
func (h *DebugHandler) VAPID(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"have_public":  h.publicKey != "",
		"have_private": h.privateKey != "",
		"match":        nil,
	}
	if h.publicKey == "" || h.privateKey == "" {
		writeJSON(w, http.StatusOK, out)
		return
	}

	match, err := push.VAPIDKeysMatch(h.publicKey, h.privateKey)
	if err != nil {
		out["error"] = err.Error()
		writeJSON(w, http.StatusInternalServerError, out)
		return
	}
	out["match"] = match
	writeJSON(w, http.StatusOK, out)
}
