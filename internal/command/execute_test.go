package command

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scriptor/internal/core/appctx"
	"scriptor/internal/core/env"
	"scriptor/internal/core/lifecycle"
	"scriptor/internal/core/model"
)

type execTx struct {
	committed  bool
	rolledBack bool
}

func (t *execTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (t *execTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}
func (t *execTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *execTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}
func (t *execTx) Rollback(ctx context.Context) error {
	if t.committed || t.rolledBack {
		return nil
	}
	t.rolledBack = true
	return nil
}

type execSession struct{ tx *execTx }

func (s *execSession) Begin(ctx context.Context) (env.Tx, error) { return s.tx, nil }
func (s *execSession) Close()                                    {}

type execSource struct{ tx *execTx }

func (f *execSource) AcquireSession(ctx context.Context, database string) (env.Session, error) {
	f.tx = &execTx{}
	return &execSession{tx: f.tx}, nil
}
func (f *execSource) Exists(ctx context.Context, database string) (bool, error) { return true, nil }
func (f *execSource) Compatible(ctx context.Context, database string) error     { return nil }

func TestExecuteRollbackDefault(t *testing.T) {
	src := &execSource{}
	runner := lifecycle.NewRunner(src, model.Default())

	def := New(WithRollbackDefault())
	err := def.Execute(context.Background(), runner, Invocation{Database: "main"},
		func(ctx context.Context, e *env.Env) error { return nil })

	require.NoError(t, err)
	assert.True(t, src.tx.rolledBack)
	assert.False(t, src.tx.committed)
}

func TestExecuteDefaultsToSystemIdentity(t *testing.T) {
	src := &execSource{}
	runner := lifecycle.NewRunner(src, model.Default())

	var seen appctx.Identity
	err := New().Execute(context.Background(), runner, Invocation{Database: "main"},
		func(ctx context.Context, e *env.Env) error {
			seen = e.Identity()
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, appctx.System(), seen)
	assert.True(t, src.tx.committed)
}

func TestExecuteInteractiveRollsBack(t *testing.T) {
	src := &execSource{}
	runner := lifecycle.NewRunner(src, model.Default())

	err := New().Execute(context.Background(), runner,
		Invocation{Database: "main", Interactive: true},
		func(ctx context.Context, e *env.Env) error { return nil })

	require.NoError(t, err)
	assert.True(t, src.tx.rolledBack)
}
