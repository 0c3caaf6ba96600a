package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lancerhub/backend/internal/models"
)

const profileColumns = `id, email, display_name, role, password_hash, credit, total_earned, total_spent,
	rating, total_ratings, communication_rating, quality_rating, timeliness_rating, value_rating,
	created_at, updated_at`

type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(&p.ID, &p.Email, &p.DisplayName, &p.Role, &p.PasswordHash, &p.Credit, &p.TotalEarned, &p.TotalSpent,
		&p.Rating, &p.TotalRatings, &p.CommunicationRating, &p.QualityRating, &p.TimelinessRating, &p.ValueRating,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

// Create inserts a profile; ID is generated when zero.
func (r *ProfileRepo) Create(ctx context.Context, p *models.Profile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO profiles (id, email, display_name, role, password_hash, credit)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, p.ID, p.Email, p.DisplayName, p.Role, p.PasswordHash, p.Credit).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapErr(err)
}

func (r *ProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	return scanProfile(r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
}

func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return scanProfile(r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE email = $1`, email))
}

// GetByIDForUpdate locks the profile row. Call within a transaction.
func (r *ProfileRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Profile, error) {
	return scanProfile(tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1 FOR UPDATE`, id))
}

// UpdateBalances writes credit, total_earned and total_spent. Call after GetByIDForUpdate in the same tx.
func (r *ProfileRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, p *models.Profile) error {
	tag, err := tx.Exec(ctx, `
		UPDATE profiles SET credit = $2, total_earned = $3, total_spent = $4, updated_at = now()
		WHERE id = $1
	`, p.ID, p.Credit, p.TotalEarned, p.TotalSpent)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRatings writes the running rating averages and count.
func (r *ProfileRepo) UpdateRatings(ctx context.Context, tx pgx.Tx, p *models.Profile) error {
	tag, err := tx.Exec(ctx, `
		UPDATE profiles
		SET rating = $2, total_ratings = $3, communication_rating = $4, quality_rating = $5,
			timeliness_rating = $6, value_rating = $7, updated_at = now()
		WHERE id = $1
	`, p.ID, p.Rating, p.TotalRatings, p.CommunicationRating, p.QualityRating, p.TimelinessRating, p.ValueRating)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
