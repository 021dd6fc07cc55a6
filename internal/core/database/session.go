package database

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scriptor/internal/core/env"
)

// pgxSession adapts one pooled connection to env.Session.
type pgxSession struct {
	conn      *pgxpool.Conn
	owner     *managedPool
	closeOnce sync.Once
}

func (s *pgxSession) Begin(ctx context.Context) (env.Tx, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return pgxTx{tx}, nil
}

func (s *pgxSession) Close() {
	s.closeOnce.Do(func() {
		s.conn.Release()
		s.owner.refCount.Add(-1)
		s.owner.touch()
	})
}

// pgxTx adapts pgx.Tx to env.Tx. Rolling back a finished transaction is a
// no-op per the handle contract, so ErrTxClosed is swallowed here.
type pgxTx struct {
	pgx.Tx
}

func (t pgxTx) Commit(ctx context.Context) error {
	return t.Tx.Commit(ctx)
}

func (t pgxTx) Rollback(ctx context.Context) error {
	err := t.Tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

var _ env.Session = (*pgxSession)(nil)
