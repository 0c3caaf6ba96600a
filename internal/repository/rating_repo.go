package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lancerhub/backend/internal/models"
)

type RatingRepo struct {
	pool *pgxpool.Pool
}

func NewRatingRepo(pool *pgxpool.Pool) *RatingRepo {
	return &RatingRepo{pool: pool}
}

// CreateTx returns ErrDuplicate when the rater already rated the project.
func (r *RatingRepo) CreateTx(ctx context.Context, tx pgx.Tx, rt *models.Rating) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO ratings (id, project_id, rater_id, target_id, communication, quality, timeliness, value, overall, comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, rt.ID, rt.ProjectID, rt.RaterID, rt.TargetID, rt.Communication, rt.Quality, rt.Timeliness, rt.Value, rt.Overall, rt.Comment).Scan(&rt.CreatedAt)
	return mapErr(err)
}

func (r *RatingRepo) ListByTarget(ctx context.Context, targetID uuid.UUID) ([]*models.Rating, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, rater_id, target_id, communication, quality, timeliness, value, overall, comment, created_at
		FROM ratings WHERE target_id = $1 ORDER BY created_at DESC
	`, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Rating{}
	for rows.Next() {
		var rt models.Rating
		if err := rows.Scan(&rt.ID, &rt.ProjectID, &rt.RaterID, &rt.TargetID, &rt.Communication, &rt.Quality,
			&rt.Timeliness, &rt.Value, &rt.Overall, &rt.Comment, &rt.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &rt)
	}
	return list, rows.Err()
}
