package database

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/rosterload/internal/core"
	"github.com/JonMunkholm/rosterload/internal/logging"
)

// LockKey hashes a lock name into a bigint advisory lock key.
func LockKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

// NewScope returns the run scope for the configured mode. Both modes take
// a non-blocking advisory lock on lockName and return
// core.ErrImportInProgress when another process holds it.
func NewScope(pool *pgxpool.Pool, lockName string, atomic bool) core.Scope {
	if atomic {
		return &TxScope{pool: pool, key: LockKey(lockName)}
	}
	return &SessionScope{pool: pool, key: LockKey(lockName)}
}

// TxScope runs clearing and loading in one transaction guarded by a
// transaction-level advisory lock. Any error rolls the whole run back.
type TxScope struct {
	pool *pgxpool.Pool
	key  int64
}

func (s *TxScope) Atomic() bool { return true }

func (s *TxScope) Run(ctx context.Context, fn func(ctx context.Context, db core.DBTX) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin import transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			logging.FromContext(ctx).Warn("rollback failed", "error", err)
		}
	}()

	var ok bool
	if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1::bigint)`, s.key).Scan(&ok); err != nil {
		return fmt.Errorf("acquire import lock: %w", err)
	}
	if !ok {
		return core.ErrImportInProgress
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

// SessionScope runs each statement in its own implicit transaction on a
// dedicated connection that holds a session-level advisory lock. Phases
// that finished before a failure stay committed.
type SessionScope struct {
	pool *pgxpool.Pool
	key  int64
}

func (s *SessionScope) Atomic() bool { return false }

func (s *SessionScope) Run(ctx context.Context, fn func(ctx context.Context, db core.DBTX) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1::bigint)`, s.key).Scan(&ok); err != nil {
		return fmt.Errorf("acquire import lock: %w", err)
	}
	if !ok {
		return core.ErrImportInProgress
	}
	defer s.unlock(context.WithoutCancel(ctx), conn)

	return fn(ctx, conn)
}

// unlock releases the session lock. A connection that cannot unlock is
// closed so the lock does not outlive the run in the pool.
func (s *SessionScope) unlock(ctx context.Context, conn *pgxpool.Conn) {
	var released bool
	err := conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1::bigint)`, s.key).Scan(&released)
	if err == nil && released {
		return
	}
	logging.FromContext(ctx).Warn("advisory unlock failed, closing connection", "released", released, "error", err)
	_ = conn.Conn().Close(ctx)
}
