// Package audit records one row per finalized unit of work so operators can
// reconstruct what ran, as whom, against which database, and how it ended.
// Recording is best-effort: an audit failure never changes the unit of
// work's outcome.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/klauspost/compress/zstd"

	"scriptor/internal/core/appctx"
	"scriptor/internal/core/env"
	"scriptor/pkg/logger"
)

// Outcome is the finalization decision applied to a unit of work.
type Outcome string

const (
	OutcomeCommit   Outcome = "commit"
	OutcomeRollback Outcome = "rollback"
	OutcomeFailed   Outcome = "failed" // failed before a handle existed
	OutcomeNone     Outcome = "none"   // ran without a database handle
)

// Entry describes one finalized unit of work.
type Entry struct {
	Database    string
	Identity    appctx.Identity
	Outcome     Outcome
	Interactive bool
	ErrorCode   string // apperror code, "" on success
	StartedAt   time.Time
	Elapsed     time.Duration
	Detail      map[string]any // free-form context (script path, request id)
}

// Recorder accepts finalized entries.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Nop discards all entries. Used when auditing is disabled or the unit of
// work ran without a database.
type Nop struct{}

func (Nop) Record(context.Context, Entry) {}

// compressThreshold is the detail payload size above which zstd is applied.
const compressThreshold = 4 * 1024

// Store writes entries into the target database's uow_audit table, outside
// the unit of work's own transaction so rollbacks keep their audit trail.
type Store struct {
	source  env.Source
	encoder *zstd.Encoder
}

// NewStore creates a Store acquiring its own sessions from source.
func NewStore(source env.Source) (*Store, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	return &Store{source: source, encoder: enc}, nil
}

// Record inserts the entry. Entries without a database are only logged; there
// is nowhere durable to put them.
func (s *Store) Record(ctx context.Context, e Entry) {
	if e.Database == "" {
		logger.Info(ctx, "unit of work finalized",
			"outcome", e.Outcome,
			"error_code", e.ErrorCode,
			"elapsed_ms", e.Elapsed.Milliseconds(),
		)
		return
	}

	detail, compressed := s.encodeDetail(ctx, e.Detail)

	// The audit insert runs on its own session with its own transaction.
	session, err := s.source.AcquireSession(ctx, e.Database)
	if err != nil {
		logger.Warn(ctx, "audit session unavailable", "database", e.Database, "error", err)
		return
	}
	defer session.Close()

	tx, err := session.Begin(ctx)
	if err != nil {
		logger.Warn(ctx, "audit begin failed", "database", e.Database, "error", err)
		return
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO uow_audit
			(database_name, user_id, login, outcome, interactive, error_code,
			 started_at, elapsed_ms, detail, detail_compressed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		e.Database, e.Identity.UserID, e.Identity.Login, string(e.Outcome),
		e.Interactive, e.ErrorCode, e.StartedAt, e.Elapsed.Milliseconds(),
		detail, compressed,
	)
	if err == nil {
		err = tx.Commit(ctx)
	}
	if err != nil {
		_ = tx.Rollback(ctx)
		logger.Warn(ctx, "audit insert failed", "database", e.Database, "error", err)
	}
}

// encodeDetail marshals the detail payload, compressing large ones.
// Returns (json, nil) or (nil, zstd) depending on size.
func (s *Store) encodeDetail(ctx context.Context, detail map[string]any) ([]byte, []byte) {
	if len(detail) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		logger.Warn(ctx, "audit detail not serializable", "error", err)
		return nil, nil
	}
	if len(raw) <= compressThreshold {
		return raw, nil
	}
	return nil, s.encoder.EncodeAll(raw, nil)
}

var _ Recorder = (*Store)(nil)
var _ Recorder = Nop{}
