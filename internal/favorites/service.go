package favorites

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lancerhub/backend/internal/models"
	"github.com/lancerhub/backend/internal/repository"
)

var ErrProjectNotFound = errors.New("project not found")

type Repository interface {
	Delete(ctx context.Context, userID, projectID uuid.UUID) (bool, error)
	Insert(ctx context.Context, userID, projectID uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Favorite, error)
}

type ProjectReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

type Service interface {
	Toggle(ctx context.Context, userID, projectID uuid.UUID) (bool, error)
	List(ctx context.Context, userID uuid.UUID) ([]*models.Favorite, error)
}

type service struct {
	repo     Repository
	projects ProjectReader
}

func NewService(repo Repository, projects ProjectReader) *service {
	return &service{repo: repo, projects: projects}
}

var _ Service = (*service)(nil)

// Toggle removes the favorite when present and adds it otherwise. It reports
// whether the project is a favorite afterwards.
func (s *service) Toggle(ctx context.Context, userID, projectID uuid.UUID) (bool, error) {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrProjectNotFound
		}
		return false, fmt.Errorf("load project: %w", err)
	}
	removed, err := s.repo.Delete(ctx, userID, projectID)
	if err != nil {
		return false, fmt.Errorf("delete favorite: %w", err)
	}
	if removed {
		return false, nil
	}
	if err := s.repo.Insert(ctx, userID, projectID); err != nil {
		return false, fmt.Errorf("insert favorite: %w", err)
	}
	return true, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]*models.Favorite, error) {
	return s.repo.ListByUser(ctx, userID)
}
