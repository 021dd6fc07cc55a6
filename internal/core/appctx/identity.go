// Package appctx provides request-scoped values extraction.
package appctx

import (
	"context"
)

// Identity identifies the acting principal for a unit of work.
// Scripts run as a configured operator account; API requests resolve
// the identity from the authentication backend.
type Identity struct {
	UserID int64
	Login  string
	Admin  bool
}

// Anonymous is the zero identity used before authentication resolves.
var Anonymous = Identity{}

// System returns the operator identity scripts run under by default.
func System() Identity {
	return Identity{UserID: 1, Login: "admin", Admin: true}
}

type identityKey struct{}

// WithIdentity adds Identity to context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// GetIdentity returns Identity from context, or Anonymous.
func GetIdentity(ctx context.Context) Identity {
	if v, ok := ctx.Value(identityKey{}).(Identity); ok {
		return v
	}
	return Anonymous
}

// IsAuthenticated reports whether the context carries a resolved principal.
func IsAuthenticated(ctx context.Context) bool {
	return GetIdentity(ctx).UserID != 0
}
