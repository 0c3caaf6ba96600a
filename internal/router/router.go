package router

import (
	"net/http"

	"github.com/lancerhub/backend/internal/admin"
	"github.com/lancerhub/backend/internal/auth"
	"github.com/lancerhub/backend/internal/dashboard"
	"github.com/lancerhub/backend/internal/favorites"
	"github.com/lancerhub/backend/internal/ledger"
	"github.com/lancerhub/backend/internal/middleware"
	"github.com/lancerhub/backend/internal/models"
	"github.com/lancerhub/backend/internal/payments"
	"github.com/lancerhub/backend/internal/projects"
	"github.com/lancerhub/backend/internal/ratings"
	"github.com/lancerhub/backend/internal/response"
)

type Handlers struct {
	Auth      *auth.Handler
	Projects  *projects.Handler
	Ratings   *ratings.Handler
	Ledger    *ledger.Handler
	Payments  *payments.Handler
	Favorites *favorites.Handler
	Admin     *admin.Handler
	Dashboard *dashboard.Handler
}

// New returns the API handler. Public routes pass through rateLimit only;
// everything else runs requireAuth first so the limiter can key on the user.
func New(h Handlers, requireAuth, rateLimit func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	public := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, rateLimit(fn))
	}
	private := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, requireAuth(rateLimit(fn)))
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	public("POST /api/auth/register", h.Auth.Register)
	public("POST /api/auth/login", h.Auth.Login)
	public("GET /api/projects", h.Projects.ListOpen)
	public("GET /api/projects/{id}", h.Projects.Get)
	public("POST /api/payment/callback", h.Payments.Callback)

	private("POST /api/projects", h.Projects.Create)
	private("PATCH /api/projects/{id}", h.Projects.Update)
	private("POST /api/projects/{id}/proposals", h.Projects.SubmitProposal)
	private("GET /api/projects/{id}/proposals", h.Projects.ListProposals)
	private("POST /api/proposals/{id}/accept", h.Projects.AcceptProposal)
	private("POST /api/projects/{id}/review", h.Projects.SubmitForReview)
	private("POST /api/projects/{id}/complete", h.Projects.MarkCompleted)
	private("POST /api/projects/{id}/cancel", h.Projects.Cancel)

	private("POST /api/projects/{id}/ratings", h.Ratings.Submit)
	private("GET /api/profiles/{id}/ratings", h.Ratings.ListForProfile)

	private("POST /api/requestWithdraw", h.Ledger.RequestWithdraw)

	private("POST /api/payment/create", h.Payments.Create)
	private("POST /api/payment/regenerate", h.Payments.Regenerate)
	private("POST /api/payment/expire", h.Payments.Expire)

	private("POST /api/favorites", h.Favorites.Toggle)
	private("GET /api/favorites", h.Favorites.List)

	mux.Handle("POST /api/admin/update-proposals-count",
		requireAuth(rateLimit(middleware.RequireRole(models.RoleAdmin)(http.HandlerFunc(h.Admin.UpdateProposalsCount)))))

	private("GET /api/me", h.Dashboard.GetMe)
	private("GET /api/transactions", h.Dashboard.ListTransactions)
	private("GET /api/dashboard", h.Dashboard.GetDashboard)

	return mux
}
