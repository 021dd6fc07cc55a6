// Package version holds build identification, set via ldflags.
package version

var (
	// Version is the semantic version of the build.
	Version = "0.1.0"

	// Commit is the VCS revision, set at build time.
	Commit = "unknown"
)
