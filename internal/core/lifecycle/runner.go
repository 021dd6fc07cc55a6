// Package lifecycle implements the transaction envelope around every unit of
// work: acquire a database-bound handle, hand control to caller work, decide
// commit or rollback by policy and outcome, and release the handle on every
// exit path.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"scriptor/internal/audit"
	"scriptor/internal/core/appctx"
	"scriptor/internal/core/apperror"
	"scriptor/internal/core/env"
	"scriptor/internal/core/model"
	"scriptor/pkg/logger"
)

var tracer = otel.Tracer("scriptor/lifecycle")

// State is the phase a unit of work is in. Exposed for logging and tracing;
// the transitions themselves are fixed in Run.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateActive
	StateFinalizing
	StateReleased
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateActive:
		return "active"
	case StateFinalizing:
		return "finalizing"
	case StateReleased:
		return "released"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Source is everything the runner needs from the storage layer: session
// acquisition plus the existence/compatibility probes consulted before a
// handle is ever created.
type Source interface {
	env.Source
	Exists(ctx context.Context, database string) (bool, error)
	Compatible(ctx context.Context, database string) error
}

// Work is the caller-supplied body of a unit of work. The handle is nil when
// the declaration was optional and no database resolved.
type Work func(ctx context.Context, e *env.Env) error

// Options are the per-invocation inputs. Database is the effective name
// after the command layer applied its resolution order; the runner still
// enforces the requirement against it.
type Options struct {
	Database    string
	Requirement Requirement
	Identity    appctx.Identity
	Policy      Policy

	// Detail is free-form audit context (script path, request id).
	Detail map[string]any
}

// Runner executes units of work. Safe for concurrent use; all per-run state
// lives on the stack.
type Runner struct {
	source   Source
	resolver model.Resolver
	guard    *Guard
	recorder audit.Recorder
	log      *logger.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithGuard installs a commit guard.
func WithGuard(g *Guard) RunnerOption {
	return func(r *Runner) { r.guard = g }
}

// WithRecorder installs an audit recorder.
func WithRecorder(rec audit.Recorder) RunnerOption {
	return func(r *Runner) { r.recorder = rec }
}

// WithLogger overrides the default logger.
func WithLogger(log *logger.Logger) RunnerOption {
	return func(r *Runner) { r.log = log }
}

// NewRunner creates a Runner over source and resolver.
func NewRunner(source Source, resolver model.Resolver, opts ...RunnerOption) *Runner {
	r := &Runner{
		source:   source,
		resolver: resolver,
		recorder: audit.Nop{},
		log:      logger.Default().WithComponent("lifecycle"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes one unit of work end to end. The returned error is nil only
// when the work succeeded and finalization applied cleanly; a business error
// is never swallowed, and finalization always runs before it is returned.
func (r *Runner) Run(ctx context.Context, opts Options, work Work) error {
	ctx, span := tracer.Start(ctx, "unit_of_work",
		trace.WithAttributes(
			attribute.String("db.name", opts.Database),
			attribute.String("uow.requirement", opts.Requirement.Presence.String()),
			attribute.Bool("uow.interactive", opts.Policy.Interactive),
		))
	defer span.End()

	started := time.Now()
	state := StateIdle
	transition(span, &state, StateAcquiring)

	database, err := r.prepare(ctx, opts)
	if err != nil {
		transition(span, &state, StateFailed)
		r.record(ctx, opts, database, audit.OutcomeFailed, err, started)
		return err
	}

	// Optional declaration with nothing resolved: Active with a nil handle,
	// nothing to finalize.
	if database == "" {
		transition(span, &state, StateActive)
		if workErr := work(ctx, nil); workErr != nil {
			transition(span, &state, StateFailed)
			err = asBusiness(workErr)
			r.record(ctx, opts, database, audit.OutcomeFailed, err, started)
			return err
		}
		transition(span, &state, StateReleased)
		r.record(ctx, opts, database, audit.OutcomeNone, nil, started)
		return nil
	}

	e, err := env.Acquire(ctx, r.source, r.resolver, database, opts.Identity)
	if err != nil {
		transition(span, &state, StateFailed)
		err = asInfrastructure(err)
		r.record(ctx, opts, database, audit.OutcomeFailed, err, started)
		return err
	}
	// Release runs on every exit path, panics included, and is idempotent.
	defer func() {
		e.Release()
		transition(span, &state, StateReleased)
	}()

	transition(span, &state, StateActive)
	workErr := work(ctx, e)

	transition(span, &state, StateFinalizing)
	outcome, finErr := r.finalize(ctx, e, opts, workErr)

	if workErr != nil {
		err = asBusiness(workErr)
	} else {
		err = finErr
	}
	r.record(ctx, opts, database, outcome, err, started)
	return err
}

// prepare enforces the requirement and resolves the database the handle will
// bind to. Returns "" when the unit of work runs without a handle.
func (r *Runner) prepare(ctx context.Context, opts Options) (string, error) {
	database := opts.Database
	req := opts.Requirement

	if req.Presence == DatabaseForbidden && database != "" {
		return "", apperror.NewValidation("this command does not accept a database").
			WithDetail("database", database)
	}

	if database == "" {
		if req.Presence == DatabaseRequired {
			return "", apperror.NewValidation(
				"no database provided; use --database or set db_name in the configuration file")
		}
		return "", nil
	}

	exists, err := r.source.Exists(ctx, database)
	if err != nil {
		return "", err
	}
	if !exists {
		if req.MustExist {
			return "", apperror.NewDatabaseNotFound(database)
		}
		// Named but absent, and the declaration tolerates that: run without
		// a handle instead of failing.
		r.log.Infow("database does not exist, continuing without environment",
			"database", database)
		return "", nil
	}

	if err := r.source.Compatible(ctx, database); err != nil {
		return "", err
	}
	return database, nil
}

// finalize applies the commit/rollback decision. An error from caller work
// forces rollback unconditionally; the interactive flag or a rollback
// request also force it; the guard may veto an otherwise permitted commit.
// The handle is not released here; Run's defer does that regardless.
func (r *Runner) finalize(ctx context.Context, e *env.Env, opts Options, workErr error) (audit.Outcome, error) {
	// Rollback uses a background context so a cancelled unit of work still
	// finalizes instead of leaking an open transaction.
	if workErr != nil {
		if rbErr := e.Rollback(context.Background()); rbErr != nil {
			r.log.Errorw("rollback failed",
				"database", e.Database(),
				"error", rbErr,
				"original_error", workErr,
			)
		}
		return audit.OutcomeRollback, nil
	}

	rollback := opts.Policy.wantsRollback()
	if !rollback && r.guard != nil {
		allowed, gErr := r.guard.AllowCommit(ctx, e.Database(), opts.Identity, opts.Policy)
		switch {
		case gErr != nil:
			r.log.Warnw("commit guard failed, rolling back", "error", gErr)
			rollback = true
		case !allowed:
			r.log.Infow("commit vetoed by guard", "database", e.Database())
			rollback = true
		}
	}

	if rollback {
		if rbErr := e.Rollback(context.Background()); rbErr != nil {
			return audit.OutcomeRollback, apperror.NewInfrastructure(
				fmt.Errorf("rollback: %w", rbErr))
		}
		return audit.OutcomeRollback, nil
	}

	if cErr := e.Commit(ctx); cErr != nil {
		// The commit failure is reported, not hidden, and the deferred
		// release still runs so the connection is never leaked.
		return audit.OutcomeFailed, apperror.NewCommitFailed(cErr)
	}
	return audit.OutcomeCommit, nil
}

func (r *Runner) record(ctx context.Context, opts Options, database string, outcome audit.Outcome, err error, started time.Time) {
	entry := audit.Entry{
		Database:    database,
		Identity:    opts.Identity,
		Outcome:     outcome,
		Interactive: opts.Policy.Interactive,
		StartedAt:   started,
		Elapsed:     time.Since(started),
		Detail:      opts.Detail,
	}
	if appErr, ok := apperror.AsAppError(err); ok {
		entry.ErrorCode = appErr.Code
	} else if err != nil {
		entry.ErrorCode = apperror.CodeBusiness
	}
	r.recorder.Record(ctx, entry)
}

func transition(span trace.Span, state *State, next State) {
	*state = next
	span.AddEvent(next.String())
}

// asBusiness wraps caller-work errors that are not already structured.
func asBusiness(err error) error {
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}
	return apperror.NewBusiness(err)
}

// asInfrastructure wraps acquisition errors that are not already structured.
func asInfrastructure(err error) error {
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}
	return apperror.NewInfrastructure(err)
}
