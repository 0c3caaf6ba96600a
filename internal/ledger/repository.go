package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lancerhub/backend/internal/models"
)

// ProfileRepository is the slice of profile storage the ledger needs.
// Implemented by repository.ProfileRepo.
type ProfileRepository interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Profile, error)
	UpdateBalances(ctx context.Context, tx pgx.Tx, p *models.Profile) error
}

// TransactionRepository stores ledger entries. Implemented by repository.TransactionRepo.
type TransactionRepository interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error
	GetByExternalRefForUpdate(ctx context.Context, tx pgx.Tx, ref string) (*models.Transaction, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Transaction, error)
}
