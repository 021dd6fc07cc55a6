package database

import "errors"

var (
	// ErrNotFound is returned when the named database does not exist.
	// Never used for connectivity failures; those surface as
	// apperror.CodeInfrastructure so callers can tell the two apart.
	ErrNotFound = errors.New("database not found")

	// ErrMaxPoolLimit is returned when the manager reached its pool limit.
	ErrMaxPoolLimit = errors.New("max database pool limit reached")

	// ErrManagerClosed is returned after Close.
	ErrManagerClosed = errors.New("database manager is closed")
)
