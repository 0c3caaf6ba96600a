package execution

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

type ExpireTopupSessionArgs struct {
	SessionID uuid.UUID `json:"session_id"`
}

func (ExpireTopupSessionArgs) Kind() string { return "expire_topup_session" }

// SessionExpirer defines the contract the worker needs to close a lapsed top-up session.
type SessionExpirer interface {
	ExpireSession(ctx context.Context, sessionID uuid.UUID) error
}

type ExpireTopupSessionWorker struct {
	river.WorkerDefaults[ExpireTopupSessionArgs]
	expirer SessionExpirer
}

func NewExpireTopupSessionWorker(e SessionExpirer) *ExpireTopupSessionWorker {
	return &ExpireTopupSessionWorker{expirer: e}
}

func (w *ExpireTopupSessionWorker) Work(ctx context.Context, job *river.Job[ExpireTopupSessionArgs]) error {
	if err := w.expirer.ExpireSession(ctx, job.Args.SessionID); err != nil {
		return fmt.Errorf("expire top-up session %s: %w", job.Args.SessionID, err)
	}
	return nil
}
