package auth

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"scriptor/internal/core/appctx"
	"scriptor/internal/core/apperror"
	"scriptor/internal/core/env"
	"scriptor/internal/core/model"
)

type userStore struct {
	data map[string]model.Record

	// writes remembers the value sets handed to Write, keyed by login.
	writes map[string]model.Record
}

func (a *userStore) Search(ctx context.Context, filters []model.Filter) ([]model.Record, error) {
	return nil, nil
}

func (a *userStore) Read(ctx context.Context, key string) (model.Record, error) {
	rec, ok := a.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", model.ErrNotFound, model.ObjectUser, key)
	}
	return rec, nil
}

func (a *userStore) Write(ctx context.Context, key string, values model.Record) error {
	if a.writes == nil {
		a.writes = map[string]model.Record{}
	}
	a.writes[key] = values

	rec, ok := a.data[key]
	if !ok {
		rec = model.Record{}
		a.data[key] = rec
	}
	for k, v := range values {
		rec[k] = v
	}
	return nil
}

func (a *userStore) Delete(ctx context.Context, key string) error {
	delete(a.data, key)
	return nil
}

type svcTx struct{}

func (svcTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (svcTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (svcTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (svcTx) Commit(ctx context.Context) error                              { return nil }
func (svcTx) Rollback(ctx context.Context) error                            { return nil }

type svcSession struct{}

func (svcSession) Begin(ctx context.Context) (env.Tx, error) { return svcTx{}, nil }
func (svcSession) Close()                                    {}

type svcSource struct{}

func (svcSource) AcquireSession(ctx context.Context, database string) (env.Session, error) {
	return svcSession{}, nil
}

func testEnv(t *testing.T, store *userStore) *env.Env {
	t.Helper()
	registry := model.NewRegistry()
	registry.Register(model.ObjectUser, func(q model.Querier) model.Accessor { return store })

	e, err := env.Acquire(context.Background(), svcSource{}, registry, "main", appctx.System())
	require.NoError(t, err)
	t.Cleanup(e.Release)
	return e
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuthenticateSuccess(t *testing.T) {
	store := &userStore{data: map[string]model.Record{
		"alice": {
			"id":            int64(7),
			"active":        true,
			"admin":         true,
			"password_hash": hashOf(t, "correct horse"),
		},
	}}
	svc := NewService(nil)

	id, err := svc.Authenticate(context.Background(), testEnv(t, store), "alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id.UserID)
	assert.Equal(t, "alice", id.Login)
	assert.True(t, id.Admin)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	store := &userStore{data: map[string]model.Record{
		"alice": {
			"id":            int64(7),
			"active":        true,
			"password_hash": hashOf(t, "correct horse"),
		},
	}}
	svc := NewService(nil)

	_, err := svc.Authenticate(context.Background(), testEnv(t, store), "alice", "wrong")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)
}

func TestAuthenticateUnknownUserSameDenial(t *testing.T) {
	store := &userStore{data: map[string]model.Record{}}
	svc := NewService(nil)

	_, err := svc.Authenticate(context.Background(), testEnv(t, store), "ghost", "anything")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)
	assert.Equal(t, "invalid credentials", appErr.Message)
}

func TestAuthenticateInactiveUser(t *testing.T) {
	store := &userStore{data: map[string]model.Record{
		"bob": {
			"id":            int64(9),
			"active":        false,
			"password_hash": hashOf(t, "pw12345678"),
		},
	}}
	svc := NewService(nil)

	_, err := svc.Authenticate(context.Background(), testEnv(t, store), "bob", "pw12345678")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)
}

func TestSetPasswordRoundTrip(t *testing.T) {
	store := &userStore{data: map[string]model.Record{
		"alice": {"id": int64(7), "active": true},
	}}
	svc := NewService(nil)
	e := testEnv(t, store)

	require.NoError(t, svc.SetPassword(context.Background(), e, "alice", "new password"))

	_, err := svc.Authenticate(context.Background(), e, "alice", "new password")
	assert.NoError(t, err)
}

func TestSetPasswordKeepsAccountFlags(t *testing.T) {
	store := &userStore{data: map[string]model.Record{
		"dormant": {"id": int64(3), "active": false},
		"root":    {"id": int64(4), "active": true, "admin": true},
	}}
	svc := NewService(nil)
	e := testEnv(t, store)

	require.NoError(t, svc.SetPassword(context.Background(), e, "dormant", "new password"))
	require.NoError(t, svc.SetPassword(context.Background(), e, "root", "new password"))

	// Only password_hash goes through the write; a disabled account stays
	// disabled and an admin stays admin.
	assert.Equal(t, false, store.data["dormant"]["active"])
	assert.Equal(t, true, store.data["root"]["admin"])
	assert.NotContains(t, store.writes["dormant"], "active")
	assert.NotContains(t, store.writes["root"], "admin")

	_, err := svc.Authenticate(context.Background(), e, "dormant", "new password")
	require.Error(t, err)
}

func TestSetPasswordTooShort(t *testing.T) {
	svc := NewService(nil)

	err := svc.SetPassword(context.Background(), testEnv(t, &userStore{data: map[string]model.Record{}}), "alice", "short")
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}
