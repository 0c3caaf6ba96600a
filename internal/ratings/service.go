package ratings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lancerhub/backend/internal/cache"
	"github.com/lancerhub/backend/internal/db"
	"github.com/lancerhub/backend/internal/models"
	"github.com/lancerhub/backend/internal/repository"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrNotCompleted    = errors.New("project is not completed")
	ErrNotParticipant  = errors.New("only the client or the hired freelancer can rate")
	ErrAlreadyRated    = errors.New("already rated this project")
	ErrInvalidScore    = errors.New("scores must be between 1 and 5")
)

const (
	minScore = 1
	maxScore = 5
)

type RatingInput struct {
	ProjectID     uuid.UUID
	RaterID       uuid.UUID
	Communication int    `json:"communication"`
	Quality       int    `json:"quality"`
	Timeliness    int    `json:"timeliness"`
	Value         int    `json:"value"`
	Comment       string `json:"comment"`
}

func (in RatingInput) valid() bool {
	for _, v := range []int{in.Communication, in.Quality, in.Timeliness, in.Value} {
		if v < minScore || v > maxScore {
			return false
		}
	}
	return true
}

type Service interface {
	Submit(ctx context.Context, in RatingInput) (*models.Rating, error)
	ListForProfile(ctx context.Context, profileID uuid.UUID) ([]*models.Rating, error)
}

type service struct {
	db       db.TxBeginner
	projects ProjectRepository
	ratings  RatingRepository
	profiles ProfileRepository
	fetcher  *cache.Fetcher
	log      *slog.Logger
}

// NewService returns the ratings service. fetcher may be nil.
func NewService(pool db.TxBeginner, projects ProjectRepository, ratings RatingRepository, profiles ProfileRepository, fetcher *cache.Fetcher, log *slog.Logger) *service {
	if log == nil {
		log = slog.Default()
	}
	return &service{db: pool, projects: projects, ratings: ratings, profiles: profiles, fetcher: fetcher, log: log}
}

var _ Service = (*service)(nil)

// Submit records one side's rating of a completed project and folds it into
// the other side's running averages.
func (s *service) Submit(ctx context.Context, in RatingInput) (*models.Rating, error) {
	if !in.valid() {
		return nil, ErrInvalidScore
	}

	var out *models.Rating
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		p, err := s.projects.GetByIDForUpdate(ctx, tx, in.ProjectID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProjectNotFound
		}
		if err != nil {
			return fmt.Errorf("lock project: %w", err)
		}
		if p.Status != models.ProjectStatusCompleted {
			return ErrNotCompleted
		}

		var target uuid.UUID
		switch {
		case p.ClientID == in.RaterID:
			if p.ClientRated {
				return ErrAlreadyRated
			}
			target = *p.AcceptedFreelancerID
			p.ClientRated = true
		case p.IsFreelancer(in.RaterID):
			if p.FreelancerRated {
				return ErrAlreadyRated
			}
			target = p.ClientID
			p.FreelancerRated = true
		default:
			return ErrNotParticipant
		}

		r := &models.Rating{
			ID:            uuid.New(),
			ProjectID:     p.ID,
			RaterID:       in.RaterID,
			TargetID:      target,
			Communication: float64(in.Communication),
			Quality:       float64(in.Quality),
			Timeliness:    float64(in.Timeliness),
			Value:         float64(in.Value),
			Comment:       strings.TrimSpace(in.Comment),
		}
		r.Overall = (r.Communication + r.Quality + r.Timeliness + r.Value) / 4

		if err := s.ratings.CreateTx(ctx, tx, r); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadyRated
			}
			return fmt.Errorf("insert rating: %w", err)
		}
		if err := s.projects.UpdateTx(ctx, tx, p); err != nil {
			return fmt.Errorf("flag project rated: %w", err)
		}

		prof, err := s.profiles.GetByIDForUpdate(ctx, tx, target)
		if err != nil {
			return fmt.Errorf("lock target profile: %w", err)
		}
		fold(prof, r)
		if err := s.profiles.UpdateRatings(ctx, tx, prof); err != nil {
			return fmt.Errorf("update ratings: %w", err)
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.fetcher.InvalidateKeys(ctx, cache.DashboardKeys(out.TargetID, out.RaterID)...)
	s.log.Info("rating submitted", "project_id", out.ProjectID, "rater_id", out.RaterID, "target_id", out.TargetID, "overall", out.Overall)
	return out, nil
}

// fold adds r to p's running averages using the stored count, so a profile
// whose true average is zero is never mistaken for one with no ratings.
func fold(p *models.Profile, r *models.Rating) {
	n := float64(p.TotalRatings)
	avg := func(old, v float64) float64 { return (old*n + v) / (n + 1) }
	p.CommunicationRating = avg(p.CommunicationRating, r.Communication)
	p.QualityRating = avg(p.QualityRating, r.Quality)
	p.TimelinessRating = avg(p.TimelinessRating, r.Timeliness)
	p.ValueRating = avg(p.ValueRating, r.Value)
	p.Rating = avg(p.Rating, r.Overall)
	p.TotalRatings++
}

func (s *service) ListForProfile(ctx context.Context, profileID uuid.UUID) ([]*models.Rating, error) {
	return s.ratings.ListByTarget(ctx, profileID)
}
