package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/agenda/internal/auth"
	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/store"
)

type AppointmentHandler struct {
	appointmentStore *store.AppointmentStore
	logger           *slog.Logger
}

func NewAppointmentHandler(as *store.AppointmentStore, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{appointmentStore: as, logger: logger}
}

type appointmentRequest struct {
	Description string `json:"description" validate:"required,max=500"`
	Date        string `json:"date" validate:"required,ymd"`
	StartTime   string `json:"start_time" validate:"required,clock"`
	EndTime     string `json:"end_time" validate:"omitempty,clock"`
	Location    string `json:"location" validate:"max=200"`
	Completed   bool   `json:"completed"`
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req appointmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Description = strings.TrimSpace(req.Description)

	appt, err := h.appointmentStore.Create(auth.UserID(r.Context()), req.Description, req.Date, req.StartTime, req.EndTime, req.Location)
	if err != nil {
		h.logger.Error("create appointment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create appointment")
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	appts, err := h.appointmentStore.List(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list appointments", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	writeJSON(w, http.StatusOK, appts)
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.appointmentStore.GetByID(id, owner)
	if err != nil {
		h.logger.Error("get appointment", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get appointment")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "appointment not found")
		return
	}

	var req appointmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Description = strings.TrimSpace(req.Description)

	appt, err := h.appointmentStore.Update(id, owner, req.Description, req.Date, req.StartTime, req.EndTime, req.Location, req.Completed)
	if err != nil {
		h.logger.Error("update appointment", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update appointment")
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.appointmentStore.Delete(id, auth.UserID(r.Context())); err != nil {
		h.logger.Error("delete appointment", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete appointment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
