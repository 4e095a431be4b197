package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/microearn/backend/internal/models"
)

type contextKey string

const ctxAccountKey contextKey = "account"

// TokenValidator verifies a bearer token and returns the account it was
// issued for.
type TokenValidator interface {
	ValidateToken(token string) (uuid.UUID, error)
}

// AccountGetter loads the authoritative account record. Role and balance are
// read fresh on every request; a token never carries either.
type AccountGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// PrincipalAuth authenticates requests by validating the Bearer token and
// loading the account it names. A token for a since-deleted account is
// rejected the same way as an invalid one. On success the account is set
// into request context.
func PrincipalAuth(tokens TokenValidator, accounts AccountGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				unauthorized(w, "missing or malformed Authorization header")
				return
			}
			id, err := tokens.ValidateToken(raw)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}
			acc, err := accounts.GetByID(r.Context(), id)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), ctxAccountKey, acc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountFromCtx returns the authenticated account or nil.
func AccountFromCtx(ctx context.Context) *models.Account {
	acc, _ := ctx.Value(ctxAccountKey).(*models.Account)
	return acc
}

// WithAccount returns a context carrying the given account.
func WithAccount(ctx context.Context, acc *models.Account) context.Context {
	return context.WithValue(ctx, ctxAccountKey, acc)
}

// RequireRole refuses requests whose authenticated account does not hold one
// of the given roles. Mount after PrincipalAuth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acc := AccountFromCtx(r.Context())
			if acc == nil {
				unauthorized(w, "unauthorized")
				return
			}
			for _, role := range roles {
				if acc.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"success":false,"message":"forbidden"}`))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"success":false,"message":"` + msg + `"}`))
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
