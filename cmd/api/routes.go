package main

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lancerhub/backend/internal/admin"
	"github.com/lancerhub/backend/internal/auth"
	"github.com/lancerhub/backend/internal/cache"
	"github.com/lancerhub/backend/internal/config"
	"github.com/lancerhub/backend/internal/dashboard"
	"github.com/lancerhub/backend/internal/execution"
	"github.com/lancerhub/backend/internal/favorites"
	"github.com/lancerhub/backend/internal/ledger"
	"github.com/lancerhub/backend/internal/middleware"
	"github.com/lancerhub/backend/internal/payments"
	"github.com/lancerhub/backend/internal/projects"
	"github.com/lancerhub/backend/internal/ratings"
	"github.com/lancerhub/backend/internal/repository"
	"github.com/lancerhub/backend/internal/router"
	"github.com/lancerhub/backend/internal/services"
	"github.com/lancerhub/backend/internal/validation"
)

// app holds the routed handlers plus what main needs to start the worker
// and the auth middleware.
type app struct {
	handlers router.Handlers
	tokens   middleware.TokenValidator
	payments execution.SessionExpirer
}

func buildApp(cfg config.Config, pool *pgxpool.Pool, fetcher *cache.Fetcher, insertExpiry payments.InsertExpiryTxFunc, logger *slog.Logger) *app {
	validator := validation.MustNew()

	profileRepo := repository.NewProfileRepo(pool)
	projectRepo := repository.NewProjectRepo(pool)
	proposalRepo := repository.NewProposalRepo(pool)
	txRepo := repository.NewTransactionRepo(pool)
	escrowRepo := repository.NewEscrowRepo(pool)
	ratingRepo := repository.NewRatingRepo(pool)
	favoriteRepo := repository.NewFavoriteRepo(pool)
	topupRepo := repository.NewTopupRepo(pool)

	authSvc := auth.NewService(profileRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	ledgerSvc := ledger.NewService(pool, profileRepo, txRepo, fetcher, logger)
	escrowSvc := services.NewEscrowService(profileRepo, escrowRepo, txRepo)

	projectsSvc := projects.NewService(projects.Deps{
		DB:        pool,
		Projects:  projectRepo,
		Proposals: proposalRepo,
		Profiles:  profileRepo,
		Ledger:    ledgerSvc,
		Escrow:    escrowSvc,
		Fees:      cfg.Fees,
		Fetcher:   fetcher,
		Log:       logger,
	})
	ratingsSvc := ratings.NewService(pool, projectRepo, ratingRepo, profileRepo, fetcher, logger)
	paymentsSvc := payments.NewService(payments.Deps{
		DB:           pool,
		Sessions:     topupRepo,
		Transactions: txRepo,
		Ledger:       ledgerSvc,
		Gateway:      payments.NewHTTPGateway(cfg.Gateway),
		InsertExpiry: insertExpiry,
		SessionTTL:   cfg.Gateway.SessionTTL,
		Fetcher:      fetcher,
		Log:          logger,
	})
	favoritesSvc := favorites.NewService(favoriteRepo, projectRepo)
	adminSvc := admin.NewService(projectRepo, logger)

	return &app{
		handlers: router.Handlers{
			Auth:      auth.NewHandler(authSvc, validator, logger),
			Projects:  projects.NewHandler(projectsSvc, validator, logger),
			Ratings:   ratings.NewHandler(ratingsSvc, validator, logger),
			Ledger:    ledger.NewHandler(ledgerSvc, validator, logger),
			Payments:  payments.NewHandler(paymentsSvc, validator, cfg.Gateway.WebhookSecret, logger),
			Favorites: favorites.NewHandler(favoritesSvc, validator, logger),
			Admin:     admin.NewHandler(adminSvc, validator, logger),
			Dashboard: dashboard.NewHandler(profileRepo, projectsSvc, ledgerSvc, fetcher, logger),
		},
		tokens:   authSvc,
		payments: paymentsSvc,
	}
}
