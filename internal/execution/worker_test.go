package execution

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

type mockExpirer struct {
	got []uuid.UUID
	err error
}

func (m *mockExpirer) ExpireSession(_ context.Context, id uuid.UUID) error {
	m.got = append(m.got, id)
	return m.err
}

func job(id uuid.UUID) *river.Job[ExpireTopupSessionArgs] {
	return &river.Job[ExpireTopupSessionArgs]{JobRow: &rivertype.JobRow{}, Args: ExpireTopupSessionArgs{SessionID: id}}
}

func TestExpireTopupSessionWorker(t *testing.T) {
	m := &mockExpirer{}
	w := NewExpireTopupSessionWorker(m)
	id := uuid.New()
	if err := w.Work(context.Background(), job(id)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.got) != 1 || m.got[0] != id {
		t.Errorf("expirer called with %v", m.got)
	}
}

func TestExpireTopupSessionWorker_ErrorIsRetried(t *testing.T) {
	boom := errors.New("db down")
	w := NewExpireTopupSessionWorker(&mockExpirer{err: boom})
	if err := w.Work(context.Background(), job(uuid.New())); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestKind(t *testing.T) {
	if got := (ExpireTopupSessionArgs{}).Kind(); got != "expire_topup_session" {
		t.Errorf("kind = %q", got)
	}
}
