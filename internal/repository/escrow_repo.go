package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lancerhub/backend/internal/models"
)

type EscrowRepo struct {
	pool *pgxpool.Pool
}

func NewEscrowRepo(pool *pgxpool.Pool) *EscrowRepo {
	return &EscrowRepo{pool: pool}
}

func (r *EscrowRepo) CreateTx(ctx context.Context, tx pgx.Tx, e *models.Escrow) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO escrows (project_id, client_id, freelancer_id, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, e.ProjectID, e.ClientID, e.FreelancerID, e.Amount, e.Status).Scan(&e.CreatedAt, &e.UpdatedAt)
	return mapErr(err)
}

// GetForUpdate locks the escrow for a project. Returns ErrNotFound when none exists.
func (r *EscrowRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, projectID uuid.UUID) (*models.Escrow, error) {
	var e models.Escrow
	err := tx.QueryRow(ctx, `
		SELECT project_id, client_id, freelancer_id, amount, status, created_at, updated_at
		FROM escrows WHERE project_id = $1 FOR UPDATE
	`, projectID).Scan(&e.ProjectID, &e.ClientID, &e.FreelancerID, &e.Amount, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

func (r *EscrowRepo) SetStatusTx(ctx context.Context, tx pgx.Tx, projectID uuid.UUID, status string) error {
	_, err := tx.Exec(ctx, `UPDATE escrows SET status = $2, updated_at = now() WHERE project_id = $1`, projectID, status)
	return err
}
