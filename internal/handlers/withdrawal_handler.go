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

// WithdrawalAPI is the withdrawal service surface the handler needs.
type WithdrawalAPI interface {
	Request(ctx context.Context, actor *models.Account, in services.RequestWithdrawalInput) (*models.Withdrawal, error)
	Resolve(ctx context.Context, actor *models.Account, withdrawalID uuid.UUID, approve bool) (*models.Withdrawal, error)
	ListForWorker(ctx context.Context, actor *models.Account) ([]*models.Withdrawal, error)
	ListForAdmin(ctx context.Context, actor *models.Account, all bool) ([]*models.Withdrawal, error)
}

// WithdrawalHandler serves the /withdrawals endpoints.
type WithdrawalHandler struct {
	Withdrawals WithdrawalAPI
	Logger      *slog.Logger
}

// CreateWithdrawal handles POST /withdrawals.
func (h *WithdrawalHandler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var in services.RequestWithdrawalInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	wd, err := h.Withdrawals.Request(r.Context(), acc, in)
	if err != nil {
		respondError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, wd)
}

// ListWithdrawals handles GET /withdrawals. Workers see their own history;
// admins see the pending queue, or everything with ?all=true.
func (h *WithdrawalHandler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var (
		list []*models.Withdrawal
		err  error
	)
	switch acc.Role {
	case models.RoleWorker:
		list, err = h.Withdrawals.ListForWorker(r.Context(), acc)
	case models.RoleAdmin:
		list, err = h.Withdrawals.ListForAdmin(r.Context(), acc, r.URL.Query().Get("all") == "true")
	default:
		fail(w, http.StatusForbidden, "forbidden")
		return
	}
	if err != nil {
		respondError(w, h.Logger, err)
		return
	}
	if list == nil {
		list = []*models.Withdrawal{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ResolveWithdrawal handles PATCH /withdrawals/{id} with an action of
// "approve" or "reject".
func (h *WithdrawalHandler) ResolveWithdrawal(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, ok := pathUUID(r, "id")
	if !ok {
		fail(w, http.StatusBadRequest, "invalid withdrawal id")
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
	wd, err := h.Withdrawals.Resolve(r.Context(), acc, id, req.Action == "approve")
	if err != nil {
		respondError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, wd)
}
