package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lancerhub/backend/internal/models"
)

const topupColumns = `id, user_id, amount, status, qr_code, link, gateway_transaction_id, expires_at, created_at, updated_at`

type TopupRepo struct {
	pool *pgxpool.Pool
}

func NewTopupRepo(pool *pgxpool.Pool) *TopupRepo {
	return &TopupRepo{pool: pool}
}

func scanTopup(row pgx.Row) (*models.TopupSession, error) {
	var s models.TopupSession
	err := row.Scan(&s.ID, &s.UserID, &s.Amount, &s.Status, &s.QRCode, &s.Link, &s.GatewayTransactionID, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

func (r *TopupRepo) CreateTx(ctx context.Context, tx pgx.Tx, s *models.TopupSession) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO topup_sessions (id, user_id, amount, status, qr_code, link, gateway_transaction_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, s.ID, s.UserID, s.Amount, s.Status, s.QRCode, s.Link, s.GatewayTransactionID, s.ExpiresAt).Scan(&s.CreatedAt, &s.UpdatedAt)
	return mapErr(err)
}

func (r *TopupRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.TopupSession, error) {
	return scanTopup(tx.QueryRow(ctx, `SELECT `+topupColumns+` FROM topup_sessions WHERE id = $1 FOR UPDATE`, id))
}

func (r *TopupRepo) GetByGatewayIDForUpdate(ctx context.Context, tx pgx.Tx, gatewayTxID string) (*models.TopupSession, error) {
	return scanTopup(tx.QueryRow(ctx, `SELECT `+topupColumns+` FROM topup_sessions WHERE gateway_transaction_id = $1 FOR UPDATE`, gatewayTxID))
}

func (r *TopupRepo) UpdateTx(ctx context.Context, tx pgx.Tx, s *models.TopupSession) error {
	err := tx.QueryRow(ctx, `
		UPDATE topup_sessions
		SET status = $2, qr_code = $3, link = $4, gateway_transaction_id = $5, expires_at = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, s.ID, s.Status, s.QRCode, s.Link, s.GatewayTransactionID, s.ExpiresAt).Scan(&s.UpdatedAt)
	return mapErr(err)
}
