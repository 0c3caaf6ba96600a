package projects

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lancerhub/backend/internal/models"
	"github.com/lancerhub/backend/internal/services"
)

// ProjectRepository is implemented by repository.ProjectRepo.
type ProjectRepository interface {
	CreateTx(ctx context.Context, tx pgx.Tx, p *models.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Project, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, p *models.Project) error
	IncrementProposalsTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	ListOpen(ctx context.Context, limit int) ([]*models.Project, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*models.Project, error)
}

// ProposalRepository is implemented by repository.ProposalRepo.
type ProposalRepository interface {
	CreateTx(ctx context.Context, tx pgx.Tx, p *models.Proposal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Proposal, error)
	AcceptTx(ctx context.Context, tx pgx.Tx, projectID, proposalID uuid.UUID) error
}

// ProfileReader resolves a caller's stored role.
type ProfileReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}

// Escrow is the escrow bookkeeping a project lifecycle drives. Implemented by services.EscrowService.
type Escrow interface {
	Hold(ctx context.Context, tx pgx.Tx, projectID, clientID, freelancerID uuid.UUID, amount int64) error
	Release(ctx context.Context, tx pgx.Tx, p services.ReleaseParams) (*models.Transaction, error)
	Refund(ctx context.Context, tx pgx.Tx, projectID uuid.UUID) (int64, error)
}
