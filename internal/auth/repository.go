package auth

import (
	"context"

	"github.com/lancerhub/backend/internal/models"
)

// Repository is the profile storage auth needs. Implemented by repository.ProfileRepo.
type Repository interface {
	Create(ctx context.Context, p *models.Profile) error
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
}
