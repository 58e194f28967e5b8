package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/agenda/internal/auth"
	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/store"
)

type RoutineHandler struct {
	routineStore *store.RoutineStore
	logger       *slog.Logger
}

func NewRoutineHandler(rs *store.RoutineStore, logger *slog.Logger) *RoutineHandler {
	return &RoutineHandler{routineStore: rs, logger: logger}
}

type routineRequest struct {
	Description string   `json:"description" validate:"required,max=500"`
	StartDate   string   `json:"date" validate:"omitempty,ymd"`
	EndDate     string   `json:"end_date" validate:"omitempty,ymd"`
	StartTime   string   `json:"start_time" validate:"required,clock"`
	EndTime     string   `json:"end_time" validate:"omitempty,clock"`
	DaysOfWeek  []string `json:"days_of_week" validate:"dive,weekday"`
	Active      *bool    `json:"is_active"`
}

func (req routineRequest) toModel() model.Routine {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return model.Routine{
		Description: strings.TrimSpace(req.Description),
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		DaysOfWeek:  req.DaysOfWeek,
		Active:      active,
	}
}

func (h *RoutineHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req routineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	routine, err := h.routineStore.Create(auth.UserID(r.Context()), req.toModel())
	if err != nil {
		h.logger.Error("create routine", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create routine")
		return
	}
	writeJSON(w, http.StatusCreated, routine)
}

func (h *RoutineHandler) List(w http.ResponseWriter, r *http.Request) {
	routines, err := h.routineStore.List(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list routines", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list routines")
		return
	}
	if routines == nil {
		routines = []model.Routine{}
	}
	writeJSON(w, http.StatusOK, routines)
}

func (h *RoutineHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.routineStore.GetByID(id, owner)
	if err != nil {
		h.logger.Error("get routine", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get routine")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "routine not found")
		return
	}

	var req routineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	routine, err := h.routineStore.Update(id, owner, req.toModel())
	if err != nil {
		h.logger.Error("update routine", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update routine")
		return
	}
	writeJSON(w, http.StatusOK, routine)
}

func (h *RoutineHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.routineStore.Delete(id, auth.UserID(r.Context())); err != nil {
		h.logger.Error("delete routine", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete routine")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
