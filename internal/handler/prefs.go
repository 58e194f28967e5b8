package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/agenda/internal/auth"
	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/reminder"
)

// PreferenceRepo loads and saves reminder preferences. Implemented by
// store.PreferenceStore and restdb.Preferences.
type PreferenceRepo interface {
	Get(ctx context.Context, ownerID string) (*model.ReminderPreference, error)
	Upsert(ctx context.Context, p model.ReminderPreference) error
}

type PrefsHandler struct {
	prefs  PreferenceRepo
	owners OwnerResolver
	logger *slog.Logger
}

func NewPrefsHandler(prefs PreferenceRepo, owners OwnerResolver, logger *slog.Logger) *PrefsHandler {
	return &PrefsHandler{prefs: prefs, owners: owners, logger: logger}
}

type offsetList struct {
	Offsets []int `json:"offsets" validate:"dive,min=-10080,max=10080"`
}

type prefsView struct {
	Tasks        offsetList `json:"tasks"`
	Routines     offsetList `json:"routines"`
	Appointments offsetList `json:"appointments"`
}

func viewOf(p model.ReminderPreference) prefsView {
	lead := reminder.LeadOffset(p.TasksLeadMinutes)
	appts := p.AppointmentOffsets
	if appts == nil {
		appts = []int{}
	}
	return prefsView{
		Tasks:        offsetList{Offsets: []int{lead}},
		Routines:     offsetList{Offsets: []int{lead}},
		Appointments: offsetList{Offsets: appts},
	}
}

// Get handles GET /api/notification-prefs. Admins may pass user_id or
// username to read another user's preferences.
func (h *PrefsHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	owner, status, msg := h.owner(r, q.Get("user_id"), q.Get("username"))
	if status != 0 {
		writeError(w, status, msg)
		return
	}

	p, err := h.prefs.Get(r.Context(), owner)
	if err != nil {
		h.logger.Error("get notification prefs", "owner", owner, "error", err)
		writeError(w, http.StatusBadGateway, "failed to load preferences")
		return
	}
	if p == nil {
		d := model.DefaultReminderPreference(owner)
		p = &d
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "prefs": viewOf(*p)})
}

type savePrefsRequest struct {
	UserID       string      `json:"user_id"`
	Username     string      `json:"username"`
	Tasks        *offsetList `json:"tasks"`
	Appointments *offsetList `json:"appointments"`
}

// Save handles POST /api/notification-prefs. A missing tasks list keeps the
// default lead; the first task offset is stored as a lead before the due time.
func (h *PrefsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req savePrefsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	owner, status, msg := h.owner(r, req.UserID, req.Username)
	if status != 0 {
		writeError(w, status, msg)
		return
	}

	p := model.DefaultReminderPreference(owner)
	if req.Tasks != nil && len(req.Tasks.Offsets) > 0 {
		p.TasksLeadMinutes = reminder.LeadOffset(req.Tasks.Offsets[0])
	}
	if req.Appointments != nil && req.Appointments.Offsets != nil {
		p.AppointmentOffsets = req.Appointments.Offsets
	}

	if err := h.prefs.Upsert(r.Context(), p); err != nil {
		h.logger.Error("save notification prefs", "owner", owner, "error", err)
		writeError(w, http.StatusBadGateway, "failed to save preferences")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "prefs": viewOf(p)})
}

// owner picks the user whose preferences are addressed. A non-zero status
// means the request must be rejected.
func (h *PrefsHandler) owner(r *http.Request, userID, username string) (string, int, string) {
	self := auth.UserID(r.Context())
	if userID == "" && username == "" {
		return self, 0, ""
	}

	owner, err := h.owners.ResolveOwner(userID, username)
	if err != nil {
		h.logger.Error("resolve prefs owner", "error", err)
		return "", http.StatusInternalServerError, "internal error"
	}
	if owner == "" {
		return "", http.StatusNotFound, "unknown user"
	}
	if owner != self && !auth.IsAdmin(r.Context()) {
		return "", http.StatusForbidden, "forbidden"
	}
	return owner, 0, ""
}
