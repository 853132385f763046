// Package version holds build metadata injected at link time.
package version

import "runtime"

var (
	// Version is the semantic version, set via -ldflags.
	Version = "dev"
	// BuildTime is the build timestamp, set via -ldflags.
	BuildTime = "unknown"
	// GitCommit is the short commit hash, set via -ldflags.
	GitCommit = "unknown"
	// GoVersion is the Go toolchain used for the build.
	GoVersion = runtime.Version()
)
