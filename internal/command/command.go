// Package command binds a database declaration to a unit of work. Each CLI
// subcommand declares up front how it relates to a database (required,
// optional, forbidden; existing or not) and the declaration is enforced
// before any work runs.
package command

import (
	"context"

	"scriptor/internal/core/appctx"
	"scriptor/internal/core/apperror"
	"scriptor/internal/core/lifecycle"
)

// Definition is a command's database declaration. Zero value means
// required and must exist, the common case.
type Definition struct {
	presence        lifecycle.Presence
	mustExist       bool
	rollbackDefault bool
}

// Option configures a Definition.
type Option func(*Definition)

// WithDatabase sets how the command relates to a database.
func WithDatabase(p lifecycle.Presence) Option {
	return func(d *Definition) { d.presence = p }
}

// WithMustExist sets whether a named database has to exist. Independent of
// presence: an optional database may still be required to exist once named.
func WithMustExist(must bool) Option {
	return func(d *Definition) { d.mustExist = must }
}

// WithRollbackDefault makes the command roll back unless the caller opts
// into committing. Used for inspection-style commands.
func WithRollbackDefault() Option {
	return func(d *Definition) { d.rollbackDefault = true }
}

// New builds a Definition. Defaults: database required, must exist.
func New(opts ...Option) Definition {
	d := Definition{
		presence:  lifecycle.DatabaseRequired,
		mustExist: true,
	}
	for _, o := range opts {
		o(&d)
	}
	return d
}

// Invocation carries the raw per-call inputs before resolution.
type Invocation struct {
	// Database is the explicit flag value, empty when not given.
	Database string

	// ConfigDatabase is db_name from the effective configuration
	// (environment already merged over the file).
	ConfigDatabase string

	Rollback    bool
	Interactive bool
	Identity    appctx.Identity
	Detail      map[string]any
}

// Resolve applies the name resolution order: explicit flag first, then the
// configured default. Forbidden commands never fall back to configuration,
// only an explicit flag is an error for them.
func (d Definition) Resolve(inv Invocation) (string, error) {
	if d.presence == lifecycle.DatabaseForbidden {
		if inv.Database != "" {
			return "", apperror.NewValidation("this command does not accept a database").
				WithDetail("database", inv.Database)
		}
		return "", nil
	}
	if inv.Database != "" {
		return inv.Database, nil
	}
	return inv.ConfigDatabase, nil
}

// Execute resolves the database and runs work under the lifecycle runner.
func (d Definition) Execute(ctx context.Context, r *lifecycle.Runner, inv Invocation, work lifecycle.Work) error {
	database, err := d.Resolve(inv)
	if err != nil {
		return err
	}

	policy := lifecycle.Policy{
		Rollback:    inv.Rollback || d.rollbackDefault,
		Interactive: inv.Interactive,
	}
	if inv.Interactive {
		policy = lifecycle.Interactive(policy)
	}

	// Local invocations run as the system identity unless told otherwise.
	id := inv.Identity
	if id.UserID == 0 {
		id = appctx.System()
	}
	ctx = appctx.WithIdentity(ctx, id)

	return r.Run(ctx, lifecycle.Options{
		Database: database,
		Requirement: lifecycle.Requirement{
			Presence:  d.presence,
			MustExist: d.mustExist,
		},
		Identity: id,
		Policy:   policy,
		Detail:   inv.Detail,
	}, work)
}
