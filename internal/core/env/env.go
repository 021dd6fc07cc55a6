// Package env provides the database-bound execution context for one unit of
// work: one connection, one open transaction, one identity, and a private
// business-object cache. A handle is created by the lifecycle runner or the
// request middleware and must be released on every exit path.
package env

import (
	"context"
	"fmt"
	"sync"

	"scriptor/internal/core/appctx"
	"scriptor/internal/core/model"
	"scriptor/pkg/logger"
)

// Tx is the open transaction behind a handle. A production Tx is a pgx
// transaction; tests substitute fakes. Rollback of an already finished
// transaction must return nil.
type Tx interface {
	model.Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Session is one exclusively held connection. Close returns it to its pool.
type Session interface {
	Begin(ctx context.Context) (Tx, error)
	Close()
}

// Source acquires sessions for a named database.
type Source interface {
	AcquireSession(ctx context.Context, database string) (Session, error)
}

// Env is a live handle. Not safe for concurrent use; each unit of work owns
// its handle exclusively.
type Env struct {
	database string
	identity appctx.Identity
	session  Session
	tx       Tx
	resolver model.Resolver

	// cache memoizes resolved accessors for this handle only. It is created
	// fresh at acquisition so no state leaks across transactions.
	cache map[string]model.Accessor

	releaseOnce sync.Once
	finalized   bool
}

// Acquire opens a session and transaction for database bound to id.
// The caller owns the returned handle and must call Release.
func Acquire(ctx context.Context, src Source, resolver model.Resolver, database string, id appctx.Identity) (*Env, error) {
	session, err := src.AcquireSession(ctx, database)
	if err != nil {
		return nil, err
	}
	tx, err := session.Begin(ctx)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("begin transaction on %s: %w", database, err)
	}
	return &Env{
		database: database,
		identity: id,
		session:  session,
		tx:       tx,
		resolver: resolver,
		cache:    make(map[string]model.Accessor),
	}, nil
}

// Database returns the database name this handle is bound to.
func (e *Env) Database() string { return e.database }

// Identity returns the acting principal.
func (e *Env) Identity() appctx.Identity { return e.identity }

// Tx exposes the open transaction for raw SQL execution.
func (e *Env) Tx() Tx { return e.tx }

// Lookup resolves a business object by name, memoized within this handle.
func (e *Env) Lookup(name string) (model.Accessor, error) {
	if a, ok := e.cache[name]; ok {
		return a, nil
	}
	a, err := e.resolver.Resolve(name, e.tx)
	if err != nil {
		return nil, err
	}
	e.cache[name] = a
	return a, nil
}

// Commit commits the open transaction. After Commit the handle can only be
// released; further statements would run outside any transaction.
func (e *Env) Commit(ctx context.Context) error {
	e.finalized = true
	return e.tx.Commit(ctx)
}

// Rollback discards the open transaction. Safe to call after Commit.
func (e *Env) Rollback(ctx context.Context) error {
	e.finalized = true
	return e.tx.Rollback(ctx)
}

// Finalized reports whether Commit or Rollback has been applied.
func (e *Env) Finalized() bool { return e.finalized }

// Release discards any transaction still open and returns the connection.
// Idempotent: a second call is a no-op. Uses a background context so a
// cancelled unit of work still returns its connection.
func (e *Env) Release() {
	e.releaseOnce.Do(func() {
		if err := e.tx.Rollback(context.Background()); err != nil {
			logger.Error(context.Background(), "rollback on release failed",
				"database", e.database,
				"error", err,
			)
		}
		e.session.Close()
	})
}
