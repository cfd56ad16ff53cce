package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/surveypulse/dialer-core/internal/domain"
)

// PgxPool is the minimal subset of pgxpool.Pool the store depends on, kept
// narrow so unit tests can supply a hand-written fake instead of a real
// connection.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Store is the pgx-backed domain.Store.
type Store struct{ Pool PgxPool }

// NewStore constructs a Store over the given pool.
func NewStore(p PgxPool) *Store { return &Store{Pool: p} }

// RunInTx opens a READ COMMITTED transaction, runs fn against it, and
// commits on success. Any error from fn, or from commit itself, rolls the
// transaction back.
func (s *Store) RunInTx(ctx domain.Context, fn domain.TxFunc) error {
	pgxTx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("op=store.run_in_tx.begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = pgxTx.Rollback(ctx)
		}
	}()

	tx := &pgTx{tx: pgxTx}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := pgxTx.Commit(ctx); err != nil {
		return fmt.Errorf("op=store.run_in_tx.commit: %w", err)
	}
	committed = true
	return nil
}

// pgTx implements domain.Tx over one pgx.Tx. Every method lives in its own
// entity-named file (projects.go, schemes.go, ...); this file only holds
// the shared type and error-mapping helpers.
type pgTx struct{ tx pgx.Tx }

const uniqueViolation = "23505"

// mapErr turns a bare pgx/pgconn error into one of the domain sentinels,
// wrapped with op. Anything it doesn't recognise is wrapped with op only
// and carries no domain sentinel.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("op=%s: %w", op, domain.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("op=%s: %w", op, domain.ErrConflict)
	}
	return fmt.Errorf("op=%s: %w", op, err)
}
