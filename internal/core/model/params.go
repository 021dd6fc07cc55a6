package model

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
)

// ObjectParameter is the registry name of the system parameter object.
const ObjectParameter = "system.parameter"

// SchemaVersionKey is the parameter row marking the database's schema series.
// Its presence and value decide compatibility with the running binary.
const SchemaVersionKey = "schema.version"

type paramRow struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Parameters accesses the system_parameters key/value store.
type Parameters struct {
	q Querier
}

// NewParameters creates the accessor bound to q.
func NewParameters(q Querier) *Parameters {
	return &Parameters{q: q}
}

func (p *Parameters) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Search returns parameters matching filters. Filterable fields: key, value.
func (p *Parameters) Search(ctx context.Context, filters []Filter) ([]Record, error) {
	q := p.builder().
		Select("key", "value", "updated_at").
		From("system_parameters").
		OrderBy("key")

	q, err := applyFilters(q, filters, map[string]bool{"key": true, "value": true})
	if err != nil {
		return nil, err
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search: %w", err)
	}

	var rows []paramRow
	if err := pgxscan.Select(ctx, p.q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("search system_parameters: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, Record{"key": r.Key, "value": r.Value, "updated_at": r.UpdatedAt})
	}
	return records, nil
}

// Read returns the parameter for key, or ErrNotFound.
func (p *Parameters) Read(ctx context.Context, key string) (Record, error) {
	var r paramRow
	err := pgxscan.Get(ctx, p.q, &r, `
		SELECT key, value, updated_at
		FROM system_parameters
		WHERE key = $1
	`, key)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%w: %s %s", ErrNotFound, ObjectParameter, key)
		}
		return nil, fmt.Errorf("read system_parameters: %w", err)
	}
	return Record{"key": r.Key, "value": r.Value, "updated_at": r.UpdatedAt}, nil
}

// Write upserts the parameter. Only the "value" field is writable.
func (p *Parameters) Write(ctx context.Context, key string, values Record) error {
	value, ok := values["value"].(string)
	if !ok {
		return fmt.Errorf("%s: write requires a string value field", ObjectParameter)
	}
	_, err := p.q.Exec(ctx, `
		INSERT INTO system_parameters (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, key, value)
	if err != nil {
		return fmt.Errorf("write system_parameters: %w", err)
	}
	return nil
}

// Delete removes the parameter. Deleting an absent key is not an error.
func (p *Parameters) Delete(ctx context.Context, key string) error {
	_, err := p.q.Exec(ctx, `DELETE FROM system_parameters WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete system_parameters: %w", err)
	}
	return nil
}

var _ Accessor = (*Parameters)(nil)

// applyFilters appends WHERE clauses for each filter, rejecting fields not in
// allowed so object names can never smuggle arbitrary SQL.
func applyFilters(q squirrel.SelectBuilder, filters []Filter, allowed map[string]bool) (squirrel.SelectBuilder, error) {
	for _, f := range filters {
		if !allowed[f.Field] {
			return q, fmt.Errorf("unknown filter field: %s", f.Field)
		}
		switch f.Op {
		case OpEqual, "":
			q = q.Where(squirrel.Eq{f.Field: f.Value})
		case OpLike:
			q = q.Where(squirrel.ILike{f.Field: f.Value})
		case OpGreater:
			q = q.Where(squirrel.Gt{f.Field: f.Value})
		case OpLess:
			q = q.Where(squirrel.Lt{f.Field: f.Value})
		default:
			return q, fmt.Errorf("unknown filter operator: %s", f.Op)
		}
	}
	return q, nil
}
