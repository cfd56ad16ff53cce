package postgres_test

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// rowStub implements pgx.Row for unit tests that don't need a live database.
type rowStub struct{ scan func(dest ...any) error }

func (r rowStub) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

func noRows() rowStub { return rowStub{scan: func(...any) error { return pgx.ErrNoRows }} }

// txStub implements pgx.Tx, delegating Exec/Query/QueryRow to injectable
// funcs and recording whether Commit or Rollback was called.
type txStub struct {
	execErr     error
	queryRowFn  func(sql string, args ...any) pgx.Row
	execFn      func(sql string, args ...any) (pgconn.CommandTag, error)
	committed   bool
	rolledBack  bool
	commitErr   error
	rollbackErr error
}

func (t *txStub) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *txStub) Commit(context.Context) error {
	t.committed = true
	return t.commitErr
}
func (t *txStub) Rollback(context.Context) error {
	t.rolledBack = true
	return t.rollbackErr
}
func (t *txStub) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *txStub) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *txStub) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *txStub) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *txStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if t.execFn != nil {
		return t.execFn(sql, args...)
	}
	return pgconn.CommandTag{}, t.execErr
}
func (t *txStub) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (t *txStub) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	if t.queryRowFn != nil {
		return t.queryRowFn(sql, args...)
	}
	return noRows()
}
func (t *txStub) Conn() *pgx.Conn { return nil }

// poolStub implements postgres.PgxPool for unit tests.
type poolStub struct {
	beginTx func() (pgx.Tx, error)
}

func (p *poolStub) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (p *poolStub) QueryRow(context.Context, string, ...any) pgx.Row        { return noRows() }
func (p *poolStub) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (p *poolStub) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	return p.beginTx()
}
