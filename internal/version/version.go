// Package version holds build information stamped via -ldflags.
package version

var (
	// Version is the semantic version of this build.
	Version = "dev"

	// Commit is the git commit hash of this build.
	Commit = "unknown"
)
