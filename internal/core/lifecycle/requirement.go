package lifecycle

// Presence declares whether a unit of work needs a database at all.
type Presence int

const (
	// DatabaseRequired fails the unit of work before acquisition when no
	// database name resolves.
	DatabaseRequired Presence = iota

	// DatabaseOptional runs with a nil handle when no name resolves; the
	// caller's work must tolerate absence.
	DatabaseOptional

	// DatabaseForbidden rejects an explicitly supplied database name.
	DatabaseForbidden
)

func (p Presence) String() string {
	switch p {
	case DatabaseRequired:
		return "required"
	case DatabaseOptional:
		return "optional"
	case DatabaseForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Requirement is the declarative database need of a unit-of-work definition.
// Presence and MustExist are independent axes: an optional database that is
// named but absent behaves differently depending on MustExist.
type Requirement struct {
	Presence Presence

	// MustExist, when true, makes a named-but-missing database an error.
	// When false, a named-but-missing database downgrades to no handle.
	MustExist bool
}

// DefaultRequirement matches the common administrative script: a database is
// required and must pre-exist.
func DefaultRequirement() Requirement {
	return Requirement{Presence: DatabaseRequired, MustExist: true}
}
