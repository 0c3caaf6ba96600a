// Package dashboard serves the signed-in user's own profile, ledger and
// project overview.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lancerhub/backend/internal/cache"
	"github.com/lancerhub/backend/internal/middleware"
	"github.com/lancerhub/backend/internal/models"
	"github.com/lancerhub/backend/internal/repository"
	"github.com/lancerhub/backend/internal/response"
)

const recentTransactions = 10

type ProfileReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}

type ProjectLister interface {
	ListMine(ctx context.Context, userID uuid.UUID) ([]*models.Project, error)
}

type TransactionLister interface {
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Transaction, error)
}

// Summary is the body of GET /api/dashboard.
type Summary struct {
	Profile            *models.Profile       `json:"profile"`
	Projects           []*models.Project     `json:"projects"`
	ProjectCounts      map[string]int        `json:"project_counts"`
	RecentTransactions []*models.Transaction `json:"recent_transactions"`
}

type Handler struct {
	profiles ProfileReader
	projects ProjectLister
	ledger   TransactionLister
	fetcher  *cache.Fetcher
	log      *slog.Logger
}

// NewHandler wires the dashboard. fetcher may be nil to disable caching.
func NewHandler(profiles ProfileReader, projects ProjectLister, ledger TransactionLister, fetcher *cache.Fetcher, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{profiles: profiles, projects: projects, ledger: ledger, fetcher: fetcher, log: log}
}


// GET /api/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromCtx(r.Context())
	if !ok {
		response.Fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	p, err := h.profiles.GetByID(r.Context(), id.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		response.Fail(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		h.log.Error("get profile failed", "user_id", id.UserID, "error", err)
		response.Fail(w, http.StatusInternalServerError, "internal error")
		return
	}
	response.OK(w, http.StatusOK, p)
}

// GET /api/transactions?limit=N
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromCtx(r.Context())
	if !ok {
		response.Fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.Fail(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	list, err := h.ledger.ListTransactions(r.Context(), id.UserID, limit)
	if err != nil {
		h.log.Error("list transactions failed", "user_id", id.UserID, "error", err)
		response.Fail(w, http.StatusInternalServerError, "internal error")
		return
	}
	response.OK(w, http.StatusOK, list)
}

// GET /api/dashboard[?refresh=1]
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromCtx(r.Context())
	if !ok {
		response.Fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	load := func(ctx context.Context) (*Summary, error) { return h.load(ctx, id.UserID) }

	var (
		sum *Summary
		err error
	)
	if h.fetcher == nil {
		sum, err = load(r.Context())
	} else {
		sum, err = cache.Fetch(r.Context(), h.fetcher, cache.DashboardKey(id.UserID), load, cache.Options{
			UseCache:     true,
			ForceRefresh: r.URL.Query().Get("refresh") == "1",
		})
	}
	if errors.Is(err, repository.ErrNotFound) {
		response.Fail(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		h.log.Error("load dashboard failed", "user_id", id.UserID, "error", err)
		response.Fail(w, http.StatusInternalServerError, "internal error")
		return
	}
	response.OK(w, http.StatusOK, sum)
}

// load reads the three independent parts of the summary in parallel.
func (h *Handler) load(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	sum := &Summary{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := h.profiles.GetByID(gctx, userID)
		sum.Profile = p
		return err
	})
	g.Go(func() error {
		list, err := h.projects.ListMine(gctx, userID)
		sum.Projects = list
		return err
	})
	g.Go(func() error {
		list, err := h.ledger.ListTransactions(gctx, userID, recentTransactions)
		sum.RecentTransactions = list
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sum.ProjectCounts = make(map[string]int)
	for _, p := range sum.Projects {
		sum.ProjectCounts[p.Status]++
	}
	return sum, nil
}
