package model

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execRecorder struct {
	sql  string
	args []any
}

func (r *execRecorder) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql = sql
	r.args = args
	return pgconn.CommandTag{}, nil
}

func (r *execRecorder) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (r *execRecorder) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func boolArg(t *testing.T, arg any) *bool {
	t.Helper()
	v, ok := arg.(*bool)
	require.True(t, ok, "argument is %T, want *bool", arg)
	return v
}

func TestUsersWritePasswordOnlyKeepsFlags(t *testing.T) {
	rec := &execRecorder{}
	users := NewUsers(rec)

	err := users.Write(context.Background(), "alice", Record{"password_hash": "h"})
	require.NoError(t, err)

	require.Len(t, rec.args, 4)
	assert.Equal(t, "alice", rec.args[0])
	assert.Equal(t, "h", rec.args[1])
	// NULL flags keep the stored values on a conflicting row.
	assert.Nil(t, boolArg(t, rec.args[2]))
	assert.Nil(t, boolArg(t, rec.args[3]))
	assert.Contains(t, rec.sql, "active = COALESCE($3, users.active)")
	assert.Contains(t, rec.sql, "admin = COALESCE($4, users.admin)")
}

func TestUsersWriteExplicitFlags(t *testing.T) {
	rec := &execRecorder{}
	users := NewUsers(rec)

	err := users.Write(context.Background(), "bob", Record{
		"active": false,
		"admin":  true,
	})
	require.NoError(t, err)

	require.Len(t, rec.args, 4)
	active := boolArg(t, rec.args[2])
	require.NotNil(t, active)
	assert.False(t, *active)
	admin := boolArg(t, rec.args[3])
	require.NotNil(t, admin)
	assert.True(t, *admin)
}

func TestUsersWriteNewRowDefaults(t *testing.T) {
	rec := &execRecorder{}
	users := NewUsers(rec)

	err := users.Write(context.Background(), "carol", Record{"password_hash": "h"})
	require.NoError(t, err)

	assert.Contains(t, rec.sql, "COALESCE($3, true)")
	assert.Contains(t, rec.sql, "COALESCE($4, false)")
}
