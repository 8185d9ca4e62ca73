// Package version carries build metadata injected via -ldflags.
package version

var (
	// Version is the semantic release version.
	Version = "dev"
	// Commit is the git commit hash of the build.
	Commit = "unknown"
)
