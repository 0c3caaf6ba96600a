package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lancerhub/backend/internal/cache"
	"github.com/lancerhub/backend/internal/db"
	"github.com/lancerhub/backend/internal/models"
	"github.com/lancerhub/backend/internal/repository"
)

// Reason codes returned in unsuccessful results.
const (
	ReasonNotEnoughCredits    = "NOT_ENOUGH_CREDITS"
	ReasonInvalidAmount       = "INVALID_AMOUNT"
	ReasonInvalidSource       = "INVALID_SOURCE"
	ReasonInsufficientBalance = "INSUFFICIENT_BALANCE"
)

// Withdrawal sources.
const (
	SourceCredit      = "credit"
	SourceTotalEarned = "totalEarned"
	SourceAll         = "all"
)

// ErrTopupSettled is returned when the pending top-up entry was already completed or expired.
var ErrTopupSettled = errors.New("top-up transaction already settled")

type PostingFeeChange struct {
	UserID    uuid.UUID
	ProjectID uuid.UUID
	OldFee    int64
	NewFee    int64
}

type FeeChangeResult struct {
	Success     bool                `json:"success"`
	Reason      string              `json:"reason,omitempty"`
	Diff        int64               `json:"diff"`
	NewCredit   int64               `json:"new_credit"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
}

type WithdrawRequest struct {
	UserID uuid.UUID
	Amount int64
	Source string
}

type WithdrawResult struct {
	Success        bool                `json:"success"`
	Reason         string              `json:"reason,omitempty"`
	NewCredit      int64               `json:"new_credit"`
	NewTotalEarned int64               `json:"new_total_earned"`
	Transaction    *models.Transaction `json:"transaction,omitempty"`
}

type Service interface {
	ApplyPostingFeeChange(ctx context.Context, in PostingFeeChange) (*FeeChangeResult, error)
	ApplyPostingFeeChangeTx(ctx context.Context, tx pgx.Tx, in PostingFeeChange) (*FeeChangeResult, error)
	ChargePostingFeeTx(ctx context.Context, tx pgx.Tx, userID, projectID uuid.UUID, fee int64) (*FeeChangeResult, error)
	RequestWithdraw(ctx context.Context, in WithdrawRequest) (*WithdrawResult, error)
	CreditTopupTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, externalRef string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Transaction, error)
}

type service struct {
	db       db.TxBeginner
	profiles ProfileRepository
	txs      TransactionRepository
	fetcher  *cache.Fetcher
	log      *slog.Logger
}

// NewService returns the ledger. fetcher may be nil; when set, the user's
// dashboard entry is dropped after balance changes this service commits itself.
// Callers of the *Tx methods invalidate after their own commit.
func NewService(pool db.TxBeginner, profiles ProfileRepository, txs TransactionRepository, fetcher *cache.Fetcher, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return &service{db: pool, profiles: profiles, txs: txs, fetcher: fetcher, log: log}
}

var _ Service = (*service)(nil)

func (s *service) ApplyPostingFeeChange(ctx context.Context, in PostingFeeChange) (*FeeChangeResult, error) {
	var res *FeeChangeResult
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		res, err = s.ApplyPostingFeeChangeTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	if res.Transaction != nil {
		s.fetcher.InvalidateKeys(ctx, cache.DashboardKey(in.UserID))
	}
	return res, nil
}

// ApplyPostingFeeChangeTx settles the difference between an old and new posting fee
// against the user's credit. A zero difference writes nothing. Call within a transaction.
func (s *service) ApplyPostingFeeChangeTx(ctx context.Context, tx pgx.Tx, in PostingFeeChange) (*FeeChangeResult, error) {
	diff := in.NewFee - in.OldFee
	if diff == 0 {
		return &FeeChangeResult{Success: true}, nil
	}

	p, err := s.profiles.GetByIDForUpdate(ctx, tx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("lock profile: %w", err)
	}
	if diff > 0 && p.Credit < diff {
		return &FeeChangeResult{Reason: ReasonNotEnoughCredits, Diff: diff, NewCredit: p.Credit}, nil
	}

	entry := &models.Transaction{
		ID:              uuid.New(),
		UserID:          p.ID,
		ProjectID:       &in.ProjectID,
		Type:            models.TxTypePostingFeeAdjust,
		PreviousBalance: p.Credit,
		Status:          models.TxStatusCompleted,
	}
	if diff > 0 {
		entry.Direction = models.DirectionOut
		entry.Amount = diff
		entry.Description = "posting fee increase"
		p.Credit -= diff
	} else {
		entry.Direction = models.DirectionIn
		entry.Amount = -diff
		entry.Description = "posting fee refund"
		p.Credit += -diff
	}
	entry.NewBalance = p.Credit

	if err := s.profiles.UpdateBalances(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("update balances: %w", err)
	}
	if err := s.txs.CreateTx(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("record fee adjustment: %w", err)
	}
	return &FeeChangeResult{Success: true, Diff: diff, NewCredit: p.Credit, Transaction: entry}, nil
}

// ChargePostingFeeTx debits the initial posting fee for a new project. Call within a transaction.
func (s *service) ChargePostingFeeTx(ctx context.Context, tx pgx.Tx, userID, projectID uuid.UUID, fee int64) (*FeeChangeResult, error) {
	if fee <= 0 {
		return &FeeChangeResult{Success: true}, nil
	}
	p, err := s.profiles.GetByIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("lock profile: %w", err)
	}
	if p.Credit < fee {
		return &FeeChangeResult{Reason: ReasonNotEnoughCredits, Diff: fee, NewCredit: p.Credit}, nil
	}
	entry := &models.Transaction{
		ID:              uuid.New(),
		UserID:          p.ID,
		ProjectID:       &projectID,
		Type:            models.TxTypePostingFee,
		Amount:          fee,
		Direction:       models.DirectionOut,
		PreviousBalance: p.Credit,
		NewBalance:      p.Credit - fee,
		Status:          models.TxStatusCompleted,
		Description:     "project posting fee",
	}
	p.Credit -= fee
	if err := s.profiles.UpdateBalances(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("update balances: %w", err)
	}
	if err := s.txs.CreateTx(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("record posting fee: %w", err)
	}
	return &FeeChangeResult{Success: true, Diff: fee, NewCredit: p.Credit, Transaction: entry}, nil
}

// RequestWithdraw debits the chosen source and records a pending withdraw_request.
// Source "all" draws on credit first and takes the remainder from total earned.
func (s *service) RequestWithdraw(ctx context.Context, in WithdrawRequest) (*WithdrawResult, error) {
	if in.Amount <= 0 {
		return &WithdrawResult{Reason: ReasonInvalidAmount}, nil
	}
	switch in.Source {
	case SourceCredit, SourceTotalEarned, SourceAll:
	default:
		return &WithdrawResult{Reason: ReasonInvalidSource}, nil
	}

	var res *WithdrawResult
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		p, err := s.profiles.GetByIDForUpdate(ctx, tx, in.UserID)
		if err != nil {
			return fmt.Errorf("lock profile: %w", err)
		}

		var prev, next int64
		switch in.Source {
		case SourceCredit:
			if p.Credit < in.Amount {
				res = &WithdrawResult{Reason: ReasonInsufficientBalance, NewCredit: p.Credit, NewTotalEarned: p.TotalEarned}
				return nil
			}
			prev = p.Credit
			p.Credit -= in.Amount
			next = p.Credit
		case SourceTotalEarned:
			if p.TotalEarned < in.Amount {
				res = &WithdrawResult{Reason: ReasonInsufficientBalance, NewCredit: p.Credit, NewTotalEarned: p.TotalEarned}
				return nil
			}
			prev = p.TotalEarned
			p.TotalEarned -= in.Amount
			next = p.TotalEarned
		case SourceAll:
			prev = p.Credit + p.TotalEarned
			if prev < in.Amount {
				res = &WithdrawResult{Reason: ReasonInsufficientBalance, NewCredit: p.Credit, NewTotalEarned: p.TotalEarned}
				return nil
			}
			fromCredit := min(p.Credit, in.Amount)
			p.Credit -= fromCredit
			p.TotalEarned = max(p.TotalEarned-(in.Amount-fromCredit), 0)
			next = p.Credit + p.TotalEarned
		}

		entry := &models.Transaction{
			ID:              uuid.New(),
			UserID:          p.ID,
			Type:            models.TxTypeWithdrawRequest,
			Amount:          in.Amount,
			Direction:       models.DirectionOut,
			PreviousBalance: prev,
			NewBalance:      next,
			Status:          models.TxStatusPending,
			Source:          in.Source,
			Description:     "withdrawal request",
		}
		if err := s.profiles.UpdateBalances(ctx, tx, p); err != nil {
			return fmt.Errorf("update balances: %w", err)
		}
		if err := s.txs.CreateTx(ctx, tx, entry); err != nil {
			return fmt.Errorf("record withdrawal: %w", err)
		}
		res = &WithdrawResult{Success: true, NewCredit: p.Credit, NewTotalEarned: p.TotalEarned, Transaction: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Success {
		s.fetcher.InvalidateKeys(ctx, cache.DashboardKey(in.UserID))
		s.log.Info("withdrawal requested", "user_id", in.UserID, "amount", in.Amount, "source", in.Source)
	}
	return res, nil
}

// CreditTopupTx adds a paid top-up to credit and completes the pending entry minted
// for externalRef. When no entry exists one is written. Call within a transaction.
func (s *service) CreditTopupTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, externalRef string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("top-up amount must be positive, got %d", amount)
	}
	p, err := s.profiles.GetByIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("lock profile: %w", err)
	}

	entry, err := s.txs.GetByExternalRefForUpdate(ctx, tx, externalRef)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		entry = nil
	case err != nil:
		return nil, fmt.Errorf("load top-up entry: %w", err)
	case entry.Status != models.TxStatusPending:
		return nil, ErrTopupSettled
	}

	prev := p.Credit
	p.Credit += amount
	if err := s.profiles.UpdateBalances(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("update balances: %w", err)
	}

	if entry == nil {
		ref := externalRef
		entry = &models.Transaction{
			ID:              uuid.New(),
			UserID:          userID,
			Type:            models.TxTypeTopup,
			Amount:          amount,
			Direction:       models.DirectionIn,
			PreviousBalance: prev,
			NewBalance:      p.Credit,
			Status:          models.TxStatusCompleted,
			ExternalRef:     &ref,
			Description:     "credit top-up",
		}
		if err := s.txs.CreateTx(ctx, tx, entry); err != nil {
			return nil, fmt.Errorf("record top-up: %w", err)
		}
		return entry, nil
	}

	entry.Status = models.TxStatusCompleted
	entry.PreviousBalance = prev
	entry.NewBalance = p.Credit
	if err := s.txs.UpdateTx(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("complete top-up: %w", err)
	}
	return entry, nil
}

func (s *service) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.txs.ListByUser(ctx, userID, limit)
}
