package model

import (
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolve(t *testing.T) {
	r := Default()

	acc, err := r.Resolve(ObjectParameter, nil)
	require.NoError(t, err)
	assert.IsType(t, &Parameters{}, acc)

	acc, err = r.Resolve(ObjectUser, nil)
	require.NoError(t, err)
	assert.IsType(t, &Users{}, acc)
}

func TestRegistryResolveUnknown(t *testing.T) {
	r := Default()
	_, err := r.Resolve("res.partner", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownObject)
}

func TestRegistryRegisterReplaces(t *testing.T) {
	r := NewRegistry()
	r.Register("x", func(q Querier) Accessor { return &Parameters{} })
	r.Register("x", func(q Querier) Accessor { return &Users{} })

	acc, err := r.Resolve("x", nil)
	require.NoError(t, err)
	assert.IsType(t, &Users{}, acc)
	assert.Equal(t, []string{"x"}, r.Names())
}

func TestApplyFiltersOperators(t *testing.T) {
	base := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("key", "value").
		From("system_parameters")
	allowed := map[string]bool{"key": true, "value": true}

	tests := []struct {
		name     string
		filter   Filter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "Equal",
			filter:   Filter{Field: "key", Op: OpEqual, Value: "schema.version"},
			wantSQL:  "SELECT key, value FROM system_parameters WHERE key = $1",
			wantArgs: []any{"schema.version"},
		},
		{
			name:     "DefaultOpIsEqual",
			filter:   Filter{Field: "key", Value: "schema.version"},
			wantSQL:  "SELECT key, value FROM system_parameters WHERE key = $1",
			wantArgs: []any{"schema.version"},
		},
		{
			name:     "Like",
			filter:   Filter{Field: "key", Op: OpLike, Value: "schema.%"},
			wantSQL:  "SELECT key, value FROM system_parameters WHERE key ILIKE $1",
			wantArgs: []any{"schema.%"},
		},
		{
			name:     "Greater",
			filter:   Filter{Field: "value", Op: OpGreater, Value: "1"},
			wantSQL:  "SELECT key, value FROM system_parameters WHERE value > $1",
			wantArgs: []any{"1"},
		},
		{
			name:     "Less",
			filter:   Filter{Field: "value", Op: OpLess, Value: "2"},
			wantSQL:  "SELECT key, value FROM system_parameters WHERE value < $1",
			wantArgs: []any{"2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := applyFilters(base, []Filter{tt.filter}, allowed)
			require.NoError(t, err)

			sql, args, err := q.ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestApplyFiltersRejectsUnknownField(t *testing.T) {
	base := squirrel.Select("key").From("system_parameters")
	_, err := applyFilters(base, []Filter{{Field: "updated_at; DROP TABLE users", Value: 1}}, map[string]bool{"key": true})
	require.Error(t, err)
}

func TestApplyFiltersRejectsUnknownOperator(t *testing.T) {
	base := squirrel.Select("key").From("system_parameters")
	_, err := applyFilters(base, []Filter{{Field: "key", Op: "!=", Value: 1}}, map[string]bool{"key": true})
	require.Error(t, err)
}
