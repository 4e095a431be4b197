package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/microearn/backend/internal/middleware"
	"github.com/microearn/backend/internal/models"
	"github.com/microearn/backend/internal/services"
)

// TaskAPI is the task service surface the handler needs; tests stub it.
type TaskAPI interface {
	Create(ctx context.Context, actor *models.Account, in services.CreateTaskInput) (*models.Task, error)
	Update(ctx context.Context, actor *models.Account, taskID uuid.UUID, in services.UpdateTaskInput) (*models.Task, error)
	Delete(ctx context.Context, actor *models.Account, taskID uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.Task, error)
	ListFor(ctx context.Context, actor *models.Account) ([]*models.Task, error)
}

// TaskHandler serves the /tasks endpoints.
type TaskHandler struct {
	Tasks  TaskAPI
	Logger *slog.Logger
}

// CreateTask handles POST /tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var in services.CreateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	task, err := h.Tasks.Create(r.Context(), acc, in)
	if err != nil {
		respondError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// ListTasks handles GET /tasks. The view depends on the caller's role:
// workers get tasks they can still submit to, buyers their own, admins all.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	tasks, err := h.Tasks.ListFor(r.Context(), acc)
	if err != nil {
		respondError(w, h.Logger, err)
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// GetTask handles GET /tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		fail(w, http.StatusBadRequest, "invalid task id")
		return
	}
	task, err := h.Tasks.Get(r.Context(), id)
	if err != nil {
		respondError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// UpdateTask handles PATCH /tasks/{id}.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, ok := pathUUID(r, "id")
	if !ok {
		fail(w, http.StatusBadRequest, "invalid task id")
		return
	}
	var in services.UpdateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	task, err := h.Tasks.Update(r.Context(), acc, id, in)
	if err != nil {
		respondError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// DeleteTask handles DELETE /tasks/{id}.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, ok := pathUUID(r, "id")
	if !ok {
		fail(w, http.StatusBadRequest, "invalid task id")
		return
	}
	if err := h.Tasks.Delete(r.Context(), acc, id); err != nil {
		respondError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// pathUUID parses a UUID path value set by the Go 1.22 mux patterns.
func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
