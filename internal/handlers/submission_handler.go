package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/microearn/backend/internal/middleware"
	"github.com/microearn/backend/internal/models"
)

// SubmissionAPI is the submission service surface the handler needs.
type SubmissionAPI interface {
	Create(ctx context.Context, actor *models.Account, taskID uuid.UUID, details string) (*models.Submission, error)
	Review(ctx context.Context, actor *models.Account, submissionID uuid.UUID, approve bool) (*models.Submission, error)
	ListForWorker(ctx context.Context, actor *models.Account, status string) ([]*models.Submission, error)
	ListPendingForBuyer(ctx context.Context, actor *models.Account) ([]*models.Submission, error)
}

// SubmissionHandler serves the submission endpoints.
type SubmissionHandler struct {
	Submissions SubmissionAPI
	Logger      *slog.Logger
}

type createSubmissionRequest struct {
	Details string `json:"details"`
}

type reviewRequest struct {
	Action string `json:"action"`
}

// CreateSubmission handles POST /tasks/{id}/submissions.
func (h *SubmissionHandler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	taskID, ok := pathUUID(r, "id")
	if !ok {
		fail(w, http.StatusBadRequest, "invalid task id")
		return
	}
	var req createSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	sub, err := h.Submissions.Create(r.Context(), acc, taskID, req.Details)
	if err != nil {
		respondError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// ListSubmissions handles GET /submissions. Workers see their own, optionally
// filtered with ?status=; buyers see the pending review queue across their
// tasks.
func (h *SubmissionHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var (
		subs []*models.Submission
		err  error
	)
	switch acc.Role {
	case models.RoleWorker:
		subs, err = h.Submissions.ListForWorker(r.Context(), acc, r.URL.Query().Get("status"))
	case models.RoleBuyer:
		subs, err = h.Submissions.ListPendingForBuyer(r.Context(), acc)
	default:
		fail(w, http.StatusForbidden, "forbidden")
		return
	}
	if err != nil {
		respondError(w, h.Logger, err)
		return
	}
	if subs == nil {
		subs = []*models.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// ReviewSubmission handles PATCH /submissions/{id} with an action of
// "approve" or "reject".
func (h *SubmissionHandler) ReviewSubmission(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, ok := pathUUID(r, "id")
	if !ok {
		fail(w, http.StatusBadRequest, "invalid submission id")
		return
	}
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Action != "approve" && req.Action != "reject" {
		fail(w, http.StatusBadRequest, `action must be "approve" or "reject"`)
		return
	}
	sub, err := h.Submissions.Review(r.Context(), acc, id, req.Action == "approve")
	if err != nil {
		respondError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
