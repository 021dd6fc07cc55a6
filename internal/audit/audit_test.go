package audit

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scriptor/internal/core/appctx"
	"scriptor/internal/core/env"
)

type recordingTx struct {
	mu         sync.Mutex
	sql        string
	args       []any
	committed  bool
	rolledBack bool
}

func (t *recordingTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sql = sql
	t.args = args
	return pgconn.CommandTag{}, nil
}
func (t *recordingTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *recordingTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *recordingTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}
func (t *recordingTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}

type recordingSession struct {
	tx     *recordingTx
	closed bool
}

func (s *recordingSession) Begin(ctx context.Context) (env.Tx, error) { return s.tx, nil }
func (s *recordingSession) Close()                                    { s.closed = true }

type recordingSource struct {
	session *recordingSession
}

func (f *recordingSource) AcquireSession(ctx context.Context, database string) (env.Session, error) {
	f.session = &recordingSession{tx: &recordingTx{}}
	return f.session, nil
}

func TestStoreRecordInserts(t *testing.T) {
	src := &recordingSource{}
	store, err := NewStore(src)
	require.NoError(t, err)

	store.Record(context.Background(), Entry{
		Database:  "main",
		Identity:  appctx.Identity{UserID: 42, Login: "jo"},
		Outcome:   OutcomeCommit,
		StartedAt: time.Now(),
		Elapsed:   120 * time.Millisecond,
		Detail:    map[string]any{"script": "migrate.lua"},
	})

	require.NotNil(t, src.session)
	tx := src.session.tx
	assert.Contains(t, tx.sql, "INSERT INTO uow_audit")
	assert.Equal(t, "main", tx.args[0])
	assert.Equal(t, int64(42), tx.args[1])
	assert.Equal(t, "commit", tx.args[3])
	assert.True(t, tx.committed)
	assert.True(t, src.session.closed)
}

func TestStoreSkipsDatabaselessEntries(t *testing.T) {
	src := &recordingSource{}
	store, err := NewStore(src)
	require.NoError(t, err)

	store.Record(context.Background(), Entry{Outcome: OutcomeNone})
	assert.Nil(t, src.session)
}

func TestEncodeDetailSmallStaysJSON(t *testing.T) {
	store, err := NewStore(&recordingSource{})
	require.NoError(t, err)

	raw, compressed := store.encodeDetail(context.Background(), map[string]any{"k": "v"})
	assert.JSONEq(t, `{"k":"v"}`, string(raw))
	assert.Nil(t, compressed)
}

func TestEncodeDetailLargeCompresses(t *testing.T) {
	store, err := NewStore(&recordingSource{})
	require.NoError(t, err)

	big := map[string]any{"blob": strings.Repeat("abcdefgh", 1024)}
	raw, compressed := store.encodeDetail(context.Background(), big)
	assert.Nil(t, raw)
	require.NotEmpty(t, compressed)

	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	round, err := dec.DecodeAll(compressed, nil)
	require.NoError(t, err)
	assert.Contains(t, string(round), "abcdefgh")
}

func TestEncodeDetailEmpty(t *testing.T) {
	store, err := NewStore(&recordingSource{})
	require.NoError(t, err)

	raw, compressed := store.encodeDetail(context.Background(), nil)
	assert.Nil(t, raw)
	assert.Nil(t, compressed)
}
