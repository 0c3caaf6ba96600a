package ratings

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lancerhub/backend/internal/models"
)

type ProjectRepository interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Project, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, p *models.Project) error
}

type RatingRepository interface {
	CreateTx(ctx context.Context, tx pgx.Tx, r *models.Rating) error
	ListByTarget(ctx context.Context, targetID uuid.UUID) ([]*models.Rating, error)
}

type ProfileRepository interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Profile, error)
	UpdateRatings(ctx context.Context, tx pgx.Tx, p *models.Profile) error
}
