package projects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lancerhub/backend/internal/cache"
	"github.com/lancerhub/backend/internal/config"
	"github.com/lancerhub/backend/internal/db"
	"github.com/lancerhub/backend/internal/ledger"
	"github.com/lancerhub/backend/internal/models"
	"github.com/lancerhub/backend/internal/repository"
	"github.com/lancerhub/backend/internal/services"
)

var (
	ErrNotFound          = errors.New("project not found")
	ErrProposalNotFound  = errors.New("proposal not found")
	ErrForbidden         = errors.New("not allowed for this user")
	ErrInvalidTransition = errors.New("project is not in a state that allows this action")
	ErrAlreadyProposed   = errors.New("proposal already submitted")
)

const (
	openListKey   = "projects:open"
	openListLimit = 100
)

type CreateInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Budget      int64  `json:"budget"`
}

// UpdateInput carries the fields to change; nil fields are left alone.
type UpdateInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Budget      *int64  `json:"budget"`
}

type ProposalInput struct {
	CoverLetter string `json:"coverLetter"`
	BidAmount   int64  `json:"bidAmount"`
}

// Result reports a write that may be refused for business reasons, e.g.
// Reason "NOT_ENOUGH_CREDITS" when the client cannot cover a fee or hold.
type Result struct {
	Success bool            `json:"success"`
	Reason  string          `json:"reason,omitempty"`
	Project *models.Project `json:"project,omitempty"`
}

// CompletionResult is returned by MarkCompleted. Released is true on the call
// that recorded the second completion and paid out the escrow.
type CompletionResult struct {
	Project         *models.Project     `json:"project"`
	AlreadyRecorded bool                `json:"already_recorded"`
	Released        bool                `json:"released"`
	Transaction     *models.Transaction `json:"transaction,omitempty"`
}

type Service interface {
	Create(ctx context.Context, clientID uuid.UUID, in CreateInput) (*Result, error)
	Update(ctx context.Context, clientID, projectID uuid.UUID, in UpdateInput) (*Result, error)
	AcceptProposal(ctx context.Context, clientID, proposalID uuid.UUID) (*Result, error)
	SubmitForReview(ctx context.Context, freelancerID, projectID uuid.UUID) (*models.Project, error)
	MarkCompleted(ctx context.Context, actorID, projectID uuid.UUID, notes string) (*CompletionResult, error)
	Cancel(ctx context.Context, clientID, projectID uuid.UUID) (*models.Project, error)
	Get(ctx context.Context, projectID uuid.UUID) (*models.Project, error)
	ListOpen(ctx context.Context, refresh bool) ([]*models.Project, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]*models.Project, error)
	SubmitProposal(ctx context.Context, freelancerID, projectID uuid.UUID, in ProposalInput) (*models.Proposal, error)
	ListProposals(ctx context.Context, clientID, projectID uuid.UUID) ([]*models.Proposal, error)
}

type service struct {
	db        db.TxBeginner
	projects  ProjectRepository
	proposals ProposalRepository
	profiles  ProfileReader
	ledger    ledger.Service
	escrow    Escrow
	fees      config.FeeConfig
	fetcher   *cache.Fetcher
	log       *slog.Logger
	now       func() time.Time
}

// Deps groups the collaborators of the projects service.
type Deps struct {
	DB        db.TxBeginner
	Projects  ProjectRepository
	Proposals ProposalRepository
	Profiles  ProfileReader
	Ledger    ledger.Service
	Escrow    Escrow
	Fees      config.FeeConfig
	Fetcher   *cache.Fetcher // optional
	Log       *slog.Logger
}

func NewService(d Deps) *service {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return &service{
		db: d.DB, projects: d.Projects, proposals: d.Proposals, profiles: d.Profiles,
		ledger: d.Ledger, escrow: d.Escrow, fees: d.Fees, fetcher: d.Fetcher, log: d.Log, now: time.Now,
	}
}

var _ Service = (*service)(nil)

func (s *service) requireRole(ctx context.Context, userID uuid.UUID, role string) error {
	p, err := s.profiles.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	if p.Role != role {
		return ErrForbidden
	}
	return nil
}

func (s *service) lock(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Project, error) {
	p, err := s.projects.GetByIDForUpdate(ctx, tx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock project: %w", err)
	}
	return p, nil
}

// Create posts a project and charges the category's posting fee in the same transaction.
func (s *service) Create(ctx context.Context, clientID uuid.UUID, in CreateInput) (*Result, error) {
	if err := s.requireRole(ctx, clientID, models.RoleClient); err != nil {
		return nil, err
	}
	category := strings.ToLower(strings.TrimSpace(in.Category))
	p := &models.Project{
		ID:          uuid.New(),
		ClientID:    clientID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Category:    category,
		Budget:      in.Budget,
		PostingFee:  s.fees.For(category),
		Status:      models.ProjectStatusOpen,
	}

	var res *Result
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		charge, err := s.ledger.ChargePostingFeeTx(ctx, tx, clientID, p.ID, p.PostingFee)
		if err != nil {
			return err
		}
		if !charge.Success {
			res = &Result{Reason: charge.Reason}
			return nil
		}
		if err := s.projects.CreateTx(ctx, tx, p); err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		res = &Result{Success: true, Project: p}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Success {
		s.invalidateOpen(ctx)
		s.invalidateDashboards(ctx, clientID)
		s.log.Info("project created", "project_id", p.ID, "client_id", clientID, "posting_fee", p.PostingFee)
	}
	return res, nil
}

// Update edits an open project. A category change settles the posting fee
// difference; when the client cannot cover it nothing is written.
func (s *service) Update(ctx context.Context, clientID, projectID uuid.UUID, in UpdateInput) (*Result, error) {
	var res *Result
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		p, err := s.lock(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if p.ClientID != clientID {
			return ErrForbidden
		}
		if p.Status != models.ProjectStatusOpen {
			return ErrInvalidTransition
		}

		if in.Category != nil {
			category := strings.ToLower(strings.TrimSpace(*in.Category))
			if category != p.Category {
				newFee := s.fees.For(category)
				change, err := s.ledger.ApplyPostingFeeChangeTx(ctx, tx, ledger.PostingFeeChange{
					UserID: clientID, ProjectID: p.ID, OldFee: p.PostingFee, NewFee: newFee,
				})
				if err != nil {
					return err
				}
				if !change.Success {
					res = &Result{Reason: change.Reason, Project: p}
					return nil
				}
				p.Category = category
				p.PostingFee = newFee
			}
		}
		if in.Title != nil {
			p.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			p.Description = *in.Description
		}
		if in.Budget != nil {
			p.Budget = *in.Budget
		}
		if err := s.projects.UpdateTx(ctx, tx, p); err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		res = &Result{Success: true, Project: p}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Success {
		s.invalidateOpen(ctx)
		s.invalidateDashboards(ctx, clientID)
	}
	return res, nil
}

// AcceptProposal hires the proposal's freelancer: the budget moves into escrow,
// the project goes in_progress, and the other pending proposals are rejected.
func (s *service) AcceptProposal(ctx context.Context, clientID, proposalID uuid.UUID) (*Result, error) {
	pr, err := s.proposals.GetByID(ctx, proposalID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProposalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load proposal: %w", err)
	}

	var res *Result
	err = db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		p, err := s.lock(ctx, tx, pr.ProjectID)
		if err != nil {
			return err
		}
		if p.ClientID != clientID {
			return ErrForbidden
		}
		if p.Status != models.ProjectStatusOpen || pr.Status != models.ProposalStatusPending {
			return ErrInvalidTransition
		}

		err = s.escrow.Hold(ctx, tx, p.ID, clientID, pr.FreelancerID, p.Budget)
		if errors.Is(err, services.ErrInsufficientFunds) {
			res = &Result{Reason: ledger.ReasonNotEnoughCredits, Project: p}
			return nil
		}
		if err != nil {
			return fmt.Errorf("hold escrow: %w", err)
		}
		if err := s.proposals.AcceptTx(ctx, tx, p.ID, pr.ID); err != nil {
			return fmt.Errorf("accept proposal: %w", err)
		}
		freelancer := pr.FreelancerID
		p.AcceptedFreelancerID = &freelancer
		p.Status = models.ProjectStatusInProgress
		if err := s.projects.UpdateTx(ctx, tx, p); err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		res = &Result{Success: true, Project: p}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Success {
		s.invalidateOpen(ctx)
		s.invalidateDashboards(ctx, clientID, pr.FreelancerID)
		s.log.Info("proposal accepted", "project_id", pr.ProjectID, "proposal_id", pr.ID, "freelancer_id", pr.FreelancerID)
	}
	return res, nil
}

func (s *service) SubmitForReview(ctx context.Context, freelancerID, projectID uuid.UUID) (*models.Project, error) {
	var out *models.Project
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		p, err := s.lock(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if !p.IsFreelancer(freelancerID) {
			return ErrForbidden
		}
		if p.Status != models.ProjectStatusInProgress {
			return ErrInvalidTransition
		}
		p.Status = models.ProjectStatusInReview
		if err := s.projects.UpdateTx(ctx, tx, p); err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateDashboards(ctx, out.ClientID, freelancerID)
	return out, nil
}

// MarkCompleted records the caller's completion. When both client and
// freelancer have recorded theirs, the escrow is released to the freelancer
// and the project is completed. Repeating a recorded completion changes nothing.
func (s *service) MarkCompleted(ctx context.Context, actorID, projectID uuid.UUID, notes string) (*CompletionResult, error) {
	var res *CompletionResult
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		p, err := s.lock(ctx, tx, projectID)
		if err != nil {
			return err
		}
		isClient := p.ClientID == actorID
		isFreelancer := p.IsFreelancer(actorID)
		if !isClient && !isFreelancer {
			return ErrForbidden
		}

		switch p.Status {
		case models.ProjectStatusCompleted:
			res = &CompletionResult{Project: p, AlreadyRecorded: true}
			return nil
		case models.ProjectStatusInProgress, models.ProjectStatusInReview:
		default:
			return ErrInvalidTransition
		}

		now := s.now().UTC()
		recorded := false
		if isClient && p.ClientCompleted == nil {
			p.ClientCompleted = &models.Completion{At: now, Notes: notes}
			recorded = true
		}
		if isFreelancer && p.FreelancerCompleted == nil {
			p.FreelancerCompleted = &models.Completion{At: now, Notes: notes}
			recorded = true
		}
		if !recorded {
			res = &CompletionResult{Project: p, AlreadyRecorded: true}
			return nil
		}

		res = &CompletionResult{Project: p}
		if p.BothCompleted() {
			entry, err := s.escrow.Release(ctx, tx, services.ReleaseParams{
				ProjectID:    p.ID,
				ClientID:     p.ClientID,
				FreelancerID: *p.AcceptedFreelancerID,
				Amount:       p.Budget,
			})
			if err != nil {
				return fmt.Errorf("release escrow: %w", err)
			}
			p.Status = models.ProjectStatusCompleted
			p.CompletedAt = &now
			res.Released = true
			res.Transaction = entry
		}
		if err := s.projects.UpdateTx(ctx, tx, p); err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !res.AlreadyRecorded {
		s.invalidateDashboards(ctx, res.Project.ClientID, res.Project.FreelancerID())
	}
	if res.Released {
		s.log.Info("project completed", "project_id", projectID, "amount", res.Project.Budget)
	}
	return res, nil
}

// Cancel closes an open or in-progress project and refunds any held escrow.
func (s *service) Cancel(ctx context.Context, clientID, projectID uuid.UUID) (*models.Project, error) {
	var out *models.Project
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		p, err := s.lock(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if p.ClientID != clientID {
			return ErrForbidden
		}
		if p.Status != models.ProjectStatusOpen && p.Status != models.ProjectStatusInProgress {
			return ErrInvalidTransition
		}
		refunded, err := s.escrow.Refund(ctx, tx, p.ID)
		if err != nil {
			return fmt.Errorf("refund escrow: %w", err)
		}
		p.Status = models.ProjectStatusCancelled
		if err := s.projects.UpdateTx(ctx, tx, p); err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		if refunded > 0 {
			s.log.Info("escrow refunded on cancel", "project_id", p.ID, "amount", refunded)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateOpen(ctx)
	s.invalidateDashboards(ctx, out.ClientID, out.FreelancerID())
	return out, nil
}

func (s *service) Get(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	p, err := s.projects.GetByID(ctx, projectID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return p, err
}

// ListOpen returns the newest open projects, served from cache unless refresh is set.
func (s *service) ListOpen(ctx context.Context, refresh bool) ([]*models.Project, error) {
	load := func(ctx context.Context) ([]*models.Project, error) {
		return s.projects.ListOpen(ctx, openListLimit)
	}
	if s.fetcher == nil {
		return load(ctx)
	}
	return cache.Fetch(ctx, s.fetcher, openListKey, load, cache.Options{UseCache: true, ForceRefresh: refresh})
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID) ([]*models.Project, error) {
	return s.projects.ListByParticipant(ctx, userID)
}

// SubmitProposal lets a freelancer bid once on an open project.
func (s *service) SubmitProposal(ctx context.Context, freelancerID, projectID uuid.UUID, in ProposalInput) (*models.Proposal, error) {
	if err := s.requireRole(ctx, freelancerID, models.RoleFreelancer); err != nil {
		return nil, err
	}
	pr := &models.Proposal{
		ID:           uuid.New(),
		ProjectID:    projectID,
		FreelancerID: freelancerID,
		CoverLetter:  in.CoverLetter,
		BidAmount:    in.BidAmount,
		Status:       models.ProposalStatusPending,
	}
	var clientID uuid.UUID
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		p, err := s.lock(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if p.ClientID == freelancerID {
			return ErrForbidden
		}
		clientID = p.ClientID
		if p.Status != models.ProjectStatusOpen {
			return ErrInvalidTransition
		}
		if err := s.proposals.CreateTx(ctx, tx, pr); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadyProposed
			}
			return fmt.Errorf("insert proposal: %w", err)
		}
		return s.projects.IncrementProposalsTx(ctx, tx, projectID)
	})
	if err != nil {
		return nil, err
	}
	s.invalidateOpen(ctx)
	s.invalidateDashboards(ctx, clientID, freelancerID)
	return pr, nil
}

func (s *service) ListProposals(ctx context.Context, clientID, projectID uuid.UUID) ([]*models.Proposal, error) {
	p, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.ClientID != clientID {
		return nil, ErrForbidden
	}
	return s.proposals.ListByProject(ctx, projectID)
}

func (s *service) invalidateOpen(ctx context.Context) {
	if s.fetcher == nil {
		return
	}
	if err := s.fetcher.Invalidate(ctx, openListKey); err != nil {
		s.log.Warn("invalidate open projects cache", "error", err)
	}
}

func (s *service) invalidateDashboards(ctx context.Context, users ...uuid.UUID) {
	s.fetcher.InvalidateKeys(ctx, cache.DashboardKeys(users...)...)
}
