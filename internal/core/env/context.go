package env

import (
	"context"
	"errors"
)

type envKey struct{}

// ErrNoEnvInContext is returned when a request context has no handle.
var ErrNoEnvInContext = errors.New("environment not found in context")

// WithEnv stores the handle in ctx for downstream request handlers.
func WithEnv(ctx context.Context, e *Env) context.Context {
	return context.WithValue(ctx, envKey{}, e)
}

// FromContext retrieves the request-scoped handle.
func FromContext(ctx context.Context) (*Env, error) {
	e, ok := ctx.Value(envKey{}).(*Env)
	if !ok || e == nil {
		return nil, ErrNoEnvInContext
	}
	return e, nil
}
