package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lancerhub/backend/internal/models"
)

type SessionRepository interface {
	CreateTx(ctx context.Context, tx pgx.Tx, s *models.TopupSession) error
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.TopupSession, error)
	GetByGatewayIDForUpdate(ctx context.Context, tx pgx.Tx, gatewayTxID string) (*models.TopupSession, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, s *models.TopupSession) error
}

type TransactionRepository interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error
	GetByExternalRefForUpdate(ctx context.Context, tx pgx.Tx, ref string) (*models.Transaction, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error
}
