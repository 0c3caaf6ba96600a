package payments

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
	"github.com/lancerhub/backend/internal/db"
	"github.com/lancerhub/backend/internal/execution"
	"github.com/lancerhub/backend/internal/ledger"
	"github.com/lancerhub/backend/internal/models"
	"github.com/lancerhub/backend/internal/repository"
)

var (
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrSessionNotFound = errors.New("top-up session not found")
	ErrForbidden       = errors.New("session belongs to another user")
	ErrSessionPaid     = errors.New("top-up session already paid")
	ErrSessionExpired  = errors.New("top-up session expired")
)

const (
	defaultSessionTTL  = 15 * time.Minute
	defaultDescription = "LancerHub credit top-up"
	qrTag              = "topup"
)

type CreateInput struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

type ConfirmResult struct {
	Session     *models.TopupSession `json:"session"`
	Transaction *models.Transaction  `json:"transaction,omitempty"`
	AlreadyPaid bool                 `json:"already_paid"`
}

type Service interface {
	Create(ctx context.Context, userID uuid.UUID, in CreateInput) (*models.TopupSession, error)
	Regenerate(ctx context.Context, userID, sessionID uuid.UUID) (*models.TopupSession, error)
	Expire(ctx context.Context, userID, sessionID uuid.UUID) (*models.TopupSession, error)
	Confirm(ctx context.Context, gatewayTxID string) (*ConfirmResult, error)
}

// InsertExpiryTxFunc schedules an expiry job at the given time within tx. Provided by main using river.Client.InsertTx.
type InsertExpiryTxFunc func(ctx context.Context, tx pgx.Tx, args execution.ExpireTopupSessionArgs, at time.Time) error

type Deps struct {
	DB           db.TxBeginner
	Sessions     SessionRepository
	Transactions TransactionRepository
	Ledger       ledger.Service
	Gateway      Gateway
	InsertExpiry InsertExpiryTxFunc
	SessionTTL   time.Duration
	Fetcher      *cache.Fetcher // optional
	Log          *slog.Logger
}

type service struct {
	db           db.TxBeginner
	sessions     SessionRepository
	txs          TransactionRepository
	ledger       ledger.Service
	gateway      Gateway
	insertExpiry InsertExpiryTxFunc
	ttl          time.Duration
	fetcher      *cache.Fetcher
	log          *slog.Logger
	now          func() time.Time
}

// NewService returns *service so it can be used as execution.SessionExpirer for the River worker.
func NewService(d Deps) *service {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.SessionTTL <= 0 {
		d.SessionTTL = defaultSessionTTL
	}
	return &service{
		db: d.DB, sessions: d.Sessions, txs: d.Transactions, ledger: d.Ledger, gateway: d.Gateway,
		insertExpiry: d.InsertExpiry, ttl: d.SessionTTL, fetcher: d.Fetcher, log: d.Log, now: time.Now,
	}
}

var (
	_ Service                  = (*service)(nil)
	_ execution.SessionExpirer = (*service)(nil)
)

func (s *service) qr(ctx context.Context, sessionID, userID uuid.UUID, amount int64, description string) (*QRResponse, error) {
	if strings.TrimSpace(description) == "" {
		description = defaultDescription
	}
	return s.gateway.GenerateQR(ctx, QRRequest{
		Amount:      amount,
		Description: description,
		Tag1:        sessionID.String(),
		Tag2:        userID.String(),
		Tag3:        qrTag,
	})
}

// pendingEntry mints the pending top-up ledger entry keyed by the gateway's transaction id.
func (s *service) pendingEntry(ctx context.Context, tx pgx.Tx, sess *models.TopupSession) error {
	ref := sess.GatewayTransactionID
	return s.txs.CreateTx(ctx, tx, &models.Transaction{
		ID:          uuid.New(),
		UserID:      sess.UserID,
		Type:        models.TxTypeTopup,
		Amount:      sess.Amount,
		Direction:   models.DirectionIn,
		Status:      models.TxStatusPending,
		ExternalRef: &ref,
		Description: "credit top-up",
	})
}

// settleEntry moves the pending entry for ref to status. Entries already settled are left alone.
func (s *service) settleEntry(ctx context.Context, tx pgx.Tx, ref, status string) error {
	entry, err := s.txs.GetByExternalRefForUpdate(ctx, tx, ref)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load top-up entry: %w", err)
	}
	if entry.Status != models.TxStatusPending {
		return nil
	}
	entry.Status = status
	return s.txs.UpdateTx(ctx, tx, entry)
}

func (s *service) lockOwned(ctx context.Context, tx pgx.Tx, userID, sessionID uuid.UUID) (*models.TopupSession, error) {
	sess, err := s.sessions.GetByIDForUpdate(ctx, tx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}
	if sess.UserID != userID {
		return nil, ErrForbidden
	}
	return sess, nil
}

// Create mints a QR for amount, stores a pending session and ledger entry, and
// schedules the session's expiry, all in one transaction.
func (s *service) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (*models.TopupSession, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	sess := &models.TopupSession{ID: uuid.New(), UserID: userID, Amount: in.Amount, Status: models.TopupStatusPending}
	qr, err := s.qr(ctx, sess.ID, userID, in.Amount, in.Description)
	if err != nil {
		return nil, err
	}
	sess.QRCode, sess.Link, sess.GatewayTransactionID = qr.QRCode, qr.Link, qr.TransactionID
	sess.ExpiresAt = s.now().UTC().Add(s.ttl)

	err = db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := s.sessions.CreateTx(ctx, tx, sess); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		if err := s.pendingEntry(ctx, tx, sess); err != nil {
			return fmt.Errorf("insert pending entry: %w", err)
		}
		return s.insertExpiry(ctx, tx, execution.ExpireTopupSessionArgs{SessionID: sess.ID}, sess.ExpiresAt)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("top-up session created", "session_id", sess.ID, "user_id", userID, "amount", sess.Amount, "gateway_tx", sess.GatewayTransactionID)
	return sess, nil
}

// Regenerate replaces the QR of a pending or expired session. The previous
// gateway transaction's pending entry is expired and a fresh one minted.
func (s *service) Regenerate(ctx context.Context, userID, sessionID uuid.UUID) (*models.TopupSession, error) {
	var amount int64
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		sess, err := s.lockOwned(ctx, tx, userID, sessionID)
		if err != nil {
			return err
		}
		if sess.Status == models.TopupStatusPaid {
			return ErrSessionPaid
		}
		amount = sess.Amount
		return nil
	})
	if err != nil {
		return nil, err
	}

	qr, err := s.qr(ctx, sessionID, userID, amount, "")
	if err != nil {
		return nil, err
	}

	var out *models.TopupSession
	err = db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		sess, err := s.lockOwned(ctx, tx, userID, sessionID)
		if err != nil {
			return err
		}
		// Paid while the gateway call was in flight.
		if sess.Status == models.TopupStatusPaid {
			return ErrSessionPaid
		}
		if err := s.settleEntry(ctx, tx, sess.GatewayTransactionID, models.TxStatusExpired); err != nil {
			return err
		}
		sess.QRCode, sess.Link, sess.GatewayTransactionID = qr.QRCode, qr.Link, qr.TransactionID
		sess.Status = models.TopupStatusPending
		sess.ExpiresAt = s.now().UTC().Add(s.ttl)
		if err := s.sessions.UpdateTx(ctx, tx, sess); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		if err := s.pendingEntry(ctx, tx, sess); err != nil {
			return fmt.Errorf("insert pending entry: %w", err)
		}
		if err := s.insertExpiry(ctx, tx, execution.ExpireTopupSessionArgs{SessionID: sess.ID}, sess.ExpiresAt); err != nil {
			return err
		}
		out = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("top-up session regenerated", "session_id", sessionID, "user_id", userID, "gateway_tx", out.GatewayTransactionID)
	return out, nil
}

// Expire closes a pending session on the owner's request. Expiring an expired session is a no-op.
func (s *service) Expire(ctx context.Context, userID, sessionID uuid.UUID) (*models.TopupSession, error) {
	var out *models.TopupSession
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		sess, err := s.lockOwned(ctx, tx, userID, sessionID)
		if err != nil {
			return err
		}
		switch sess.Status {
		case models.TopupStatusPaid:
			return ErrSessionPaid
		case models.TopupStatusExpired:
			out = sess
			return nil
		}
		if err := s.expireLocked(ctx, tx, sess); err != nil {
			return err
		}
		out = sess
		return nil
	})
	return out, err
}

// ExpireSession is the worker path: no owner check, and sessions that are no
// longer pending or were regenerated past their original expiry are skipped.
func (s *service) ExpireSession(ctx context.Context, sessionID uuid.UUID) error {
	return db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		sess, err := s.sessions.GetByIDForUpdate(ctx, tx, sessionID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lock session: %w", err)
		}
		if sess.Status != models.TopupStatusPending || sess.ExpiresAt.After(s.now()) {
			return nil
		}
		return s.expireLocked(ctx, tx, sess)
	})
}

func (s *service) expireLocked(ctx context.Context, tx pgx.Tx, sess *models.TopupSession) error {
	sess.Status = models.TopupStatusExpired
	if err := s.sessions.UpdateTx(ctx, tx, sess); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if err := s.settleEntry(ctx, tx, sess.GatewayTransactionID, models.TxStatusExpired); err != nil {
		return err
	}
	s.log.Info("top-up session expired", "session_id", sess.ID, "user_id", sess.UserID)
	return nil
}

// Confirm settles a paid gateway transaction: the session is marked paid and
// the amount credited. Repeated confirmations return AlreadyPaid.
func (s *service) Confirm(ctx context.Context, gatewayTxID string) (*ConfirmResult, error) {
	var res *ConfirmResult
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		sess, err := s.sessions.GetByGatewayIDForUpdate(ctx, tx, gatewayTxID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("lock session: %w", err)
		}
		switch sess.Status {
		case models.TopupStatusPaid:
			res = &ConfirmResult{Session: sess, AlreadyPaid: true}
			return nil
		case models.TopupStatusExpired:
			return ErrSessionExpired
		}

		entry, err := s.ledger.CreditTopupTx(ctx, tx, sess.UserID, sess.Amount, gatewayTxID)
		if err != nil {
			return fmt.Errorf("credit top-up: %w", err)
		}
		sess.Status = models.TopupStatusPaid
		if err := s.sessions.UpdateTx(ctx, tx, sess); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		res = &ConfirmResult{Session: sess, Transaction: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !res.AlreadyPaid {
		s.fetcher.InvalidateKeys(ctx, cache.DashboardKey(res.Session.UserID))
		s.log.Info("top-up paid", "session_id", res.Session.ID, "user_id", res.Session.UserID, "amount", res.Session.Amount)
	}
	return res, nil
}
