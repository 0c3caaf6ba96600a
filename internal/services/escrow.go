package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lancerhub/backend/internal/models"
	"github.com/lancerhub/backend/internal/repository"
)

// ErrInsufficientFunds is returned when the client's credit is too low for the hold.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrEscrowExists is returned when a project already has an escrow row.
var ErrEscrowExists = errors.New("escrow already exists for project")

// EscrowService moves project budgets between client credit, the escrow row and freelancer earnings.
// Every method runs inside the caller's transaction.
type EscrowService struct {
	Profiles     EscrowProfileRepo
	Escrows      EscrowRepo
	Transactions EscrowTransactionRepo
}

// EscrowProfileRepo is the minimal profile repository interface for escrow.
type EscrowProfileRepo interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Profile, error)
	UpdateBalances(ctx context.Context, tx pgx.Tx, p *models.Profile) error
}

// EscrowRepo stores one escrow per project.
type EscrowRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, e *models.Escrow) error
	GetForUpdate(ctx context.Context, tx pgx.Tx, projectID uuid.UUID) (*models.Escrow, error)
	SetStatusTx(ctx context.Context, tx pgx.Tx, projectID uuid.UUID, status string) error
}

// EscrowTransactionRepo is the minimal ledger interface for escrow.
type EscrowTransactionRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error
}

// NewEscrowService returns a new EscrowService.
func NewEscrowService(profiles EscrowProfileRepo, escrows EscrowRepo, txs EscrowTransactionRepo) *EscrowService {
	return &EscrowService{Profiles: profiles, Escrows: escrows, Transactions: txs}
}

// ReleaseParams identifies the funds to pay out on completion.
type ReleaseParams struct {
	ProjectID    uuid.UUID
	ClientID     uuid.UUID
	FreelancerID uuid.UUID
	Amount       int64
}

// Hold locks the client row, deducts amount from credit, and records the held escrow.
func (s *EscrowService) Hold(ctx context.Context, tx pgx.Tx, projectID, clientID, freelancerID uuid.UUID, amount int64) error {
	client, err := s.Profiles.GetByIDForUpdate(ctx, tx, clientID)
	if err != nil {
		return fmt.Errorf("lock client: %w", err)
	}
	if client.Credit < amount {
		return ErrInsufficientFunds
	}
	prev := client.Credit
	client.Credit -= amount
	if err := s.Profiles.UpdateBalances(ctx, tx, client); err != nil {
		return err
	}
	err = s.Escrows.CreateTx(ctx, tx, &models.Escrow{
		ProjectID: projectID, ClientID: clientID, FreelancerID: freelancerID,
		Amount: amount, Status: models.EscrowStatusHeld,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return ErrEscrowExists
	}
	if err != nil {
		return err
	}
	return s.Transactions.CreateTx(ctx, tx, &models.Transaction{
		ID: uuid.New(), UserID: clientID, ProjectID: &projectID,
		Type: models.TxTypeEscrowHold, Amount: amount, Direction: models.DirectionOut,
		PreviousBalance: prev, NewBalance: client.Credit, Status: models.TxStatusCompleted,
		Description: "project budget held in escrow",
	})
}

// Release pays the freelancer on mutual completion: total_earned grows on the
// freelancer, total_spent on the client, and a held escrow flips to released.
// Both profiles are locked in deterministic order to avoid deadlock.
func (s *EscrowService) Release(ctx context.Context, tx pgx.Tx, p ReleaseParams) (*models.Transaction, error) {
	ids := []uuid.UUID{p.ClientID, p.FreelancerID}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	locked := make(map[uuid.UUID]*models.Profile, 2)
	for _, id := range ids {
		prof, err := s.Profiles.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return nil, fmt.Errorf("lock profile %s: %w", id, err)
		}
		locked[id] = prof
	}

	escrow, err := s.Escrows.GetForUpdate(ctx, tx, p.ProjectID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("lock escrow: %w", err)
	case escrow.Status == models.EscrowStatusHeld:
		if err := s.Escrows.SetStatusTx(ctx, tx, p.ProjectID, models.EscrowStatusReleased); err != nil {
			return nil, err
		}
	}

	freelancer := locked[p.FreelancerID]
	prev := freelancer.TotalEarned
	freelancer.TotalEarned += p.Amount
	if err := s.Profiles.UpdateBalances(ctx, tx, freelancer); err != nil {
		return nil, err
	}
	client := locked[p.ClientID]
	client.TotalSpent += p.Amount
	if err := s.Profiles.UpdateBalances(ctx, tx, client); err != nil {
		return nil, err
	}

	entry := &models.Transaction{
		ID: uuid.New(), UserID: p.FreelancerID, ProjectID: &p.ProjectID,
		Type: models.TxTypeProjectCompleted, Amount: p.Amount, Direction: models.DirectionIn,
		PreviousBalance: prev, NewBalance: freelancer.TotalEarned, Status: models.TxStatusCompleted,
		Description: "project completed",
	}
	if err := s.Transactions.CreateTx(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Refund returns a held escrow to the client's credit. It returns the refunded
// amount, which is zero when the project has no held escrow.
func (s *EscrowService) Refund(ctx context.Context, tx pgx.Tx, projectID uuid.UUID) (int64, error) {
	escrow, err := s.Escrows.GetForUpdate(ctx, tx, projectID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lock escrow: %w", err)
	}
	if escrow.Status != models.EscrowStatusHeld {
		return 0, nil
	}

	client, err := s.Profiles.GetByIDForUpdate(ctx, tx, escrow.ClientID)
	if err != nil {
		return 0, fmt.Errorf("lock client: %w", err)
	}
	prev := client.Credit
	client.Credit += escrow.Amount
	if err := s.Profiles.UpdateBalances(ctx, tx, client); err != nil {
		return 0, err
	}
	if err := s.Escrows.SetStatusTx(ctx, tx, projectID, models.EscrowStatusRefunded); err != nil {
		return 0, err
	}
	err = s.Transactions.CreateTx(ctx, tx, &models.Transaction{
		ID: uuid.New(), UserID: escrow.ClientID, ProjectID: &projectID,
		Type: models.TxTypeEscrowRefund, Amount: escrow.Amount, Direction: models.DirectionIn,
		PreviousBalance: prev, NewBalance: client.Credit, Status: models.TxStatusCompleted,
		Description: "escrow refunded",
	})
	if err != nil {
		return 0, err
	}
	return escrow.Amount, nil
}
