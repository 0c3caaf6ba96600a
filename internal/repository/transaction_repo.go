package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lancerhub/backend/internal/models"
)

const transactionColumns = `id, user_id, project_id, type, amount, direction, previous_balance, new_balance,
	status, COALESCE(source, ''), external_ref, description, created_at, updated_at`

type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.ProjectID, &t.Type, &t.Amount, &t.Direction, &t.PreviousBalance, &t.NewBalance,
		&t.Status, &t.Source, &t.ExternalRef, &t.Description, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CreateTx inserts a ledger entry inside the given transaction.
func (r *TransactionRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO transactions (id, user_id, project_id, type, amount, direction, previous_balance, new_balance,
			status, source, external_ref, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`, t.ID, t.UserID, t.ProjectID, t.Type, t.Amount, t.Direction, t.PreviousBalance, t.NewBalance,
		t.Status, nullIfEmpty(t.Source), t.ExternalRef, t.Description).Scan(&t.CreatedAt, &t.UpdatedAt)
	return mapErr(err)
}

// GetByExternalRefForUpdate locks the entry minted for a gateway transaction id.
func (r *TransactionRepo) GetByExternalRefForUpdate(ctx context.Context, tx pgx.Tx, ref string) (*models.Transaction, error) {
	return scanTransaction(tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE external_ref = $1 FOR UPDATE`, ref))
}

// UpdateTx rewrites status and balance snapshot of an existing entry.
func (r *TransactionRepo) UpdateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error {
	err := tx.QueryRow(ctx, `
		UPDATE transactions SET status = $2, previous_balance = $3, new_balance = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, t.ID, t.Status, t.PreviousBalance, t.NewBalance).Scan(&t.UpdatedAt)
	return mapErr(err)
}

func (r *TransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}
