// Package model provides the business-object registry.
//
// Objects are resolved by name ("system.parameter", "auth.user") and expose a
// uniform capability interface over whatever querier the caller supplies, so
// the lifecycle manager depends only on this interface and never on a
// concrete storage implementation.
package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx executing capability accessors run against.
// Both a pooled connection and an open transaction satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Record is one business object row keyed by column name.
type Record map[string]any

// Op is a search filter operator.
type Op string

const (
	OpEqual   Op = "="
	OpLike    Op = "like"
	OpGreater Op = ">"
	OpLess    Op = "<"
)

// Filter restricts a Search to rows matching one field condition.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Accessor is the capability interface a lookup resolves to.
// Each object has a natural key (parameter key, user login).
type Accessor interface {
	Search(ctx context.Context, filters []Filter) ([]Record, error)
	Read(ctx context.Context, key string) (Record, error)
	Write(ctx context.Context, key string, values Record) error
	Delete(ctx context.Context, key string) error
}

// ErrUnknownObject is returned when a name has no registered constructor.
var ErrUnknownObject = errors.New("unknown business object")

// ErrNotFound is returned by Read when the key has no row.
var ErrNotFound = errors.New("record not found")

// Constructor builds an accessor bound to a querier.
type Constructor func(q Querier) Accessor

// Resolver resolves business objects by name.
type Resolver interface {
	Resolve(name string, q Querier) (Accessor, error)
}

// Registry stores object constructors. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register adds or replaces a constructor for name.
func (r *Registry) Register(name string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[name] = c
}

// Resolve builds an accessor for name bound to q.
func (r *Registry) Resolve(name string, q Querier) (Accessor, error) {
	r.mu.RLock()
	c, ok := r.ctors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownObject, name)
	}
	return c(q), nil
}

// Names returns registered object names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	return names
}

var _ Resolver = (*Registry)(nil)

// Default returns a registry with the built-in objects.
func Default() *Registry {
	r := NewRegistry()
	r.Register(ObjectParameter, func(q Querier) Accessor { return NewParameters(q) })
	r.Register(ObjectUser, func(q Querier) Accessor { return NewUsers(q) })
	return r
}
