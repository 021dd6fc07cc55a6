package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scriptor/internal/core/env"
	"scriptor/internal/core/model"
)

type mwTx struct {
	committed  bool
	rolledBack bool
}

func (t *mwTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (t *mwTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}
func (t *mwTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *mwTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}
func (t *mwTx) Rollback(ctx context.Context) error {
	if t.committed || t.rolledBack {
		return nil
	}
	t.rolledBack = true
	return nil
}

type mwSession struct {
	tx     *mwTx
	closed bool
}

func (s *mwSession) Begin(ctx context.Context) (env.Tx, error) { return s.tx, nil }
func (s *mwSession) Close()                                    { s.closed = true }

type mwSource struct {
	session    *mwSession
	acquireErr error
}

func (f *mwSource) AcquireSession(ctx context.Context, database string) (env.Session, error) {
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	f.session = &mwSession{tx: &mwTx{}}
	return f.session, nil
}

func newTestRouter(src env.Source, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery())
	r.Use(ErrorHandler())
	r.Use(Environment(src, model.Default(), "main"))
	r.GET("/probe", handler)
	return r
}

func TestEnvironmentProvidesHandle(t *testing.T) {
	src := &mwSource{}
	router := newTestRouter(src, func(c *gin.Context) {
		e, err := env.FromContext(c.Request.Context())
		require.NoError(t, err)
		assert.Equal(t, "main", e.Database())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, src.session)
	assert.True(t, src.session.closed)
	// Nothing committed: the default outcome for a request is rollback.
	assert.True(t, src.session.tx.rolledBack)
	assert.False(t, src.session.tx.committed)
}

func TestEnvironmentExplicitCommitSurvives(t *testing.T) {
	src := &mwSource{}
	router := newTestRouter(src, func(c *gin.Context) {
		e, err := env.FromContext(c.Request.Context())
		require.NoError(t, err)
		require.NoError(t, e.Commit(c.Request.Context()))
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, src.session.tx.committed)
	assert.False(t, src.session.tx.rolledBack)
	assert.True(t, src.session.closed)
}

func TestEnvironmentReleasesOnPanic(t *testing.T) {
	src := &mwSource{}
	router := newTestRouter(src, func(c *gin.Context) {
		panic("handler exploded")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotNil(t, src.session)
	assert.True(t, src.session.closed)
	assert.True(t, src.session.tx.rolledBack)
}

func TestEnvironmentAcquireFailure(t *testing.T) {
	src := &mwSource{acquireErr: errors.New("pool exhausted")}
	router := newTestRouter(src, func(c *gin.Context) {
		t.Fatal("handler must not run")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "INFRASTRUCTURE_ERROR")
}
