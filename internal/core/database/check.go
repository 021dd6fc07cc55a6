package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"scriptor/internal/core/apperror"
	"scriptor/internal/core/model"
)

// SchemaSeries is the schema version marker this binary expects. A database
// is compatible when its schema.version parameter equals this value.
const SchemaSeries = "1.0"

// undefinedTable is the PostgreSQL error code for a missing relation; a
// database without the system_parameters table predates the schema marker
// and is incompatible, not unreachable.
const undefinedTable = "42P01"

// Exists reports whether the named database exists. Read-only probe against
// the maintenance database catalog. Connectivity failures surface as
// apperror.CodeInfrastructure, never as "does not exist".
func (m *Manager) Exists(ctx context.Context, database string) (bool, error) {
	return catalogExists(ctx, m.admin, database)
}

// catalogExists runs the pg_database probe against q. Split out so tests can
// substitute a fake querier.
func catalogExists(ctx context.Context, q model.Querier, database string) (bool, error) {
	var name string
	err := q.QueryRow(ctx, `
		SELECT datname FROM pg_catalog.pg_database
		WHERE lower(datname) = lower($1)
	`, database).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, apperror.NewInfrastructure(fmt.Errorf("probe database catalog: %w", err))
	}
	return true, nil
}

// Compatible verifies the named database carries the expected schema series
// marker. The probe session never outlives the check.
func (m *Manager) Compatible(ctx context.Context, database string) error {
	session, err := m.AcquireSession(ctx, database)
	if err != nil {
		return apperror.NewInfrastructure(fmt.Errorf("connect to %s: %w", database, err))
	}
	defer session.Close()

	tx, err := session.Begin(ctx)
	if err != nil {
		return apperror.NewInfrastructure(fmt.Errorf("begin probe on %s: %w", database, err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	return checkCompatible(ctx, tx, database)
}

// checkCompatible reads the schema marker through q and compares it.
func checkCompatible(ctx context.Context, q model.Querier, database string) error {
	var got string
	err := q.QueryRow(ctx, `
		SELECT value FROM system_parameters WHERE key = $1
	`, model.SchemaVersionKey).Scan(&got)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.NewDatabaseIncompatible(database, SchemaSeries, "")
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
			return apperror.NewDatabaseIncompatible(database, SchemaSeries, "")
		}
		return apperror.NewInfrastructure(fmt.Errorf("read schema marker on %s: %w", database, err))
	}
	if got != SchemaSeries {
		return apperror.NewDatabaseIncompatible(database, SchemaSeries, got)
	}
	return nil
}

// SchemaVersion returns the raw schema marker of the named database, or ""
// when the marker is absent.
func (m *Manager) SchemaVersion(ctx context.Context, database string) (string, error) {
	session, err := m.AcquireSession(ctx, database)
	if err != nil {
		return "", apperror.NewInfrastructure(fmt.Errorf("connect to %s: %w", database, err))
	}
	defer session.Close()

	tx, err := session.Begin(ctx)
	if err != nil {
		return "", apperror.NewInfrastructure(fmt.Errorf("begin probe on %s: %w", database, err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var got string
	err = tx.QueryRow(ctx, `
		SELECT value FROM system_parameters WHERE key = $1
	`, model.SchemaVersionKey).Scan(&got)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
			return "", nil
		}
		return "", apperror.NewInfrastructure(err)
	}
	return got, nil
}
