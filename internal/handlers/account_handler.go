package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/microearn/backend/internal/middleware"
	"github.com/microearn/backend/internal/models"
)

// ProfileStore is the account repository surface the account endpoints need.
type ProfileStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, name, imageURL string) error
}

// LedgerReader lists an account's coin ledger.
type LedgerReader interface {
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.LedgerEntry, error)
}

// AccountHandler serves the authenticated account's own surface.
type AccountHandler struct {
	Accounts ProfileStore
	Ledger   LedgerReader
	// CoinsToUSD converts a coin balance to US cents for display.
	CoinsToUSD func(coins int) int
	Logger     *slog.Logger
}

type meResponse struct {
	*models.Account
	BalanceUSDCents int `json:"balance_usd_cents"`
}

// GetMe handles GET /account/me.
func (h *AccountHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{Account: acc, BalanceUSDCents: h.CoinsToUSD(acc.Coins)})
}

type updateSettingsRequest struct {
	Name     *string `json:"name,omitempty"`
	ImageURL *string `json:"image_url,omitempty"`
}

// UpdateSettings handles PATCH /account/settings. Only profile fields are
// writable here; role and coins never are.
func (h *AccountHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	name, imageURL := acc.Name, acc.ImageURL
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if len(trimmed) < 2 || len(trimmed) > 50 {
			fail(w, http.StatusBadRequest, "name must be 2-50 characters")
			return
		}
		name = trimmed
	}
	if req.ImageURL != nil {
		imageURL = *req.ImageURL
	}

	if err := h.Accounts.UpdateProfile(r.Context(), acc.ID, name, imageURL); err != nil {
		h.Logger.Error("update settings", "error", err)
		fail(w, http.StatusInternalServerError, "internal error")
		return
	}
	updated, err := h.Accounts.GetByID(r.Context(), acc.ID)
	if err != nil {
		h.Logger.Error("reload account", "error", err)
		fail(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// ListCoinLedger handles GET /coin-ledger: the principal's own audit trail,
// newest first.
func (h *AccountHandler) ListCoinLedger(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	entries, err := h.Ledger.ListByAccountID(r.Context(), acc.ID)
	if err != nil {
		h.Logger.Error("list coin ledger", "error", err)
		fail(w, http.StatusInternalServerError, "internal error")
		return
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
