package router

import (
	"net/http"

	"github.com/microearn/backend/internal/auth"
	"github.com/microearn/backend/internal/handlers"
	"github.com/microearn/backend/internal/middleware"
	"github.com/microearn/backend/internal/models"
)

// Deps carries everything the router mounts.
type Deps struct {
	Auth        *auth.Handler
	Tasks       *handlers.TaskHandler
	Submissions *handlers.SubmissionHandler
	Withdrawals *handlers.WithdrawalHandler
	Account     *handlers.AccountHandler
	Admin       *handlers.AdminHandler
	Principal   func(http.Handler) http.Handler
}

// New returns an http.Handler serving the API under /api/v1. Register and
// login are public; everything else runs behind PrincipalAuth, which loads
// the account fresh on every request.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()
	const base = "/api/v1"

	mux.HandleFunc("POST "+base+"/auth/register", d.Auth.Register)
	mux.HandleFunc("POST "+base+"/auth/login", d.Auth.Login)

	authed := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, d.Principal(h))
	}

	authed("POST "+base+"/tasks", d.Tasks.CreateTask)
	authed("GET "+base+"/tasks", d.Tasks.ListTasks)
	authed("GET "+base+"/tasks/{id}", d.Tasks.GetTask)
	authed("PATCH "+base+"/tasks/{id}", d.Tasks.UpdateTask)
	authed("DELETE "+base+"/tasks/{id}", d.Tasks.DeleteTask)

	authed("POST "+base+"/tasks/{id}/submissions", d.Submissions.CreateSubmission)
	authed("GET "+base+"/submissions", d.Submissions.ListSubmissions)
	authed("PATCH "+base+"/submissions/{id}", d.Submissions.ReviewSubmission)

	authed("POST "+base+"/withdrawals", d.Withdrawals.CreateWithdrawal)
	authed("GET "+base+"/withdrawals", d.Withdrawals.ListWithdrawals)
	authed("PATCH "+base+"/withdrawals/{id}", d.Withdrawals.ResolveWithdrawal)

	authed("GET "+base+"/account/me", d.Account.GetMe)
	authed("PATCH "+base+"/account/settings", d.Account.UpdateSettings)
	authed("GET "+base+"/coin-ledger", d.Account.ListCoinLedger)

	adminOnly := middleware.RequireRole(models.RoleAdmin)
	adminRoute := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, d.Principal(adminOnly(h)))
	}
	adminRoute("GET "+base+"/admin/users", d.Admin.ListUsers)
	adminRoute("PATCH "+base+"/admin/users/{id}/role", d.Admin.ChangeRole)
	adminRoute("DELETE "+base+"/admin/users/{id}", d.Admin.DeleteUser)

	return mux
}
