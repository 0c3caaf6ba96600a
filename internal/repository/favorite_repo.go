package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lancerhub/backend/internal/models"
)

type FavoriteRepo struct {
	pool *pgxpool.Pool
}

func NewFavoriteRepo(pool *pgxpool.Pool) *FavoriteRepo {
	return &FavoriteRepo{pool: pool}
}

// Delete removes the favorite and reports whether one existed.
func (r *FavoriteRepo) Delete(ctx context.Context, userID, projectID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM project_favorites WHERE user_id = $1 AND project_id = $2`, userID, projectID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Insert adds a favorite; an existing one is left untouched.
func (r *FavoriteRepo) Insert(ctx context.Context, userID, projectID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO project_favorites (user_id, project_id) VALUES ($1, $2)
		ON CONFLICT (user_id, project_id) DO NOTHING
	`, userID, projectID)
	return mapErr(err)
}

func (r *FavoriteRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Favorite, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, project_id, created_at FROM project_favorites WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Favorite{}
	for rows.Next() {
		var f models.Favorite
		if err := rows.Scan(&f.UserID, &f.ProjectID, &f.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &f)
	}
	return list, rows.Err()
}
