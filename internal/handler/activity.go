package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/agenda/internal/auth"
	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/store"
)

type ActivityHandler struct {
	activityStore *store.ActivityStore
	logger        *slog.Logger
}

func NewActivityHandler(as *store.ActivityStore, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{activityStore: as, logger: logger}
}

type activityQuery struct {
	Query  string `validate:"max=200"`
	Kind   string `validate:"omitempty,oneof=task routine appointment"`
	Status string `validate:"omitempty,oneof=pending completed"`
	From   string `validate:"omitempty,ymd"`
	To     string `validate:"omitempty,ymd"`
}

// List handles GET /api/activities?q=&kind=&status=&from=&to=.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	aq := activityQuery{
		Query:  q.Get("q"),
		Kind:   q.Get("kind"),
		Status: q.Get("status"),
		From:   q.Get("from"),
		To:     q.Get("to"),
	}
	if err := validate.Struct(aq); err != nil {
		writeError(w, http.StatusBadRequest, "invalid filter: "+err.Error())
		return
	}

	acts, err := h.activityStore.List(r.Context(), auth.UserID(r.Context()), store.ActivityFilter(aq))
	if err != nil {
		h.logger.Error("list activities", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list activities")
		return
	}
	if acts == nil {
		acts = []model.Activity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "items": acts})
}
