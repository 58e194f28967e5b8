package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/agenda/internal/auth"
	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/store"
)

type TaskHandler struct {
	taskStore *store.TaskStore
	logger    *slog.Logger
}

func NewTaskHandler(ts *store.TaskStore, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{taskStore: ts, logger: logger}
}

type taskRequest struct {
	Description string `json:"description" validate:"required,max=500"`
	DueDate     string `json:"due_date" validate:"omitempty,ymd"`
	StartTime   string `json:"start_time" validate:"omitempty,clock"`
	EndTime     string `json:"end_time" validate:"omitempty,clock"`
	Priority    string `json:"priority" validate:"max=20"`
	Completed   bool   `json:"is_completed"`
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Description = strings.TrimSpace(req.Description)

	task, err := h.taskStore.Create(auth.UserID(r.Context()), req.Description, req.DueDate, req.StartTime, req.EndTime, req.Priority)
	if err != nil {
		h.logger.Error("create task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.taskStore.List(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.taskStore.GetByID(id, owner)
	if err != nil {
		h.logger.Error("get task", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Description = strings.TrimSpace(req.Description)

	task, err := h.taskStore.Update(id, owner, req.Description, req.DueDate, req.StartTime, req.EndTime, req.Priority, req.Completed)
	if err != nil {
		h.logger.Error("update task", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Toggle handles POST /api/tasks/{id}/toggle.
func (h *TaskHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	task, err := h.taskStore.ToggleCompleted(id, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("toggle task", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to toggle task")
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.taskStore.Delete(id, auth.UserID(r.Context())); err != nil {
		h.logger.Error("delete task", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
