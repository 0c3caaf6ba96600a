// Package admin holds maintenance operations restricted to admin profiles.
package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

type ProposalCounter interface {
	RecountProposals(ctx context.Context, projectID *uuid.UUID) (int64, error)
}

type Service interface {
	UpdateProposalsCount(ctx context.Context, projectID *uuid.UUID) (int64, error)
}

type service struct {
	counter ProposalCounter
	log     *slog.Logger
}

func NewService(counter ProposalCounter, log *slog.Logger) *service {
	if log == nil {
		log = slog.Default()
	}
	return &service{counter: counter, log: log}
}

var _ Service = (*service)(nil)

// UpdateProposalsCount recomputes proposals_count from the proposals table for
// one project, or for every project when projectID is nil.
func (s *service) UpdateProposalsCount(ctx context.Context, projectID *uuid.UUID) (int64, error) {
	n, err := s.counter.RecountProposals(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("recount proposals: %w", err)
	}
	s.log.Info("proposal counts recomputed", "projects", n, "single", projectID != nil)
	return n, nil
}
