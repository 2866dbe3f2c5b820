// Package version holds build metadata injected via -ldflags.
package version

// Version is the release tag the binary was built from.
var Version = "dev"

// GitCommit is the short commit hash.
var GitCommit = "unknown"

// BuildDate is the UTC build time in RFC 3339.
var BuildDate = "unknown"
