// Package testutil holds fakes shared by package tests.
package testutil

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// NoopTx satisfies pgx.Tx for tests whose repositories ignore the tx argument.
// It records Commit and Rollback calls.
type NoopTx struct {
	mu         sync.Mutex
	Committed  bool
	RolledBack bool
}

func (t *NoopTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }

func (t *NoopTx) Commit(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Committed = true
	return nil
}

// Rollback after Commit is a no-op, mirroring pgx.
func (t *NoopTx) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.Committed {
		t.RolledBack = true
	}
	return nil
}

func (*NoopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (*NoopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (*NoopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (*NoopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (*NoopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (*NoopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (*NoopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (*NoopTx) Conn() *pgx.Conn { return nil }

// Pool hands out NoopTx values and keeps the last one for assertions.
type Pool struct {
	mu   sync.Mutex
	Last *NoopTx
	N    int
}

func (p *Pool) Begin(context.Context) (pgx.Tx, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Last = &NoopTx{}
	p.N++
	return p.Last, nil
}
