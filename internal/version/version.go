// Package version holds build information for the pressqa binary, set with
//
//	go build -ldflags="-X github.com/54b3r/pressqa-go/internal/version.Version=v0.3.0 \
//	                    -X github.com/54b3r/pressqa-go/internal/version.Commit=abc1234 \
//	                    -X github.com/54b3r/pressqa-go/internal/version.BuildDate=2026-01-01"
package version

import "fmt"

var (
	// Version is the semantic version, "dev" for local builds.
	Version = "dev"
	// Commit is the short git SHA.
	Commit = "unknown"
	// BuildDate is the UTC build date.
	BuildDate = "unknown"
)

// String formats the build information for `pressqa version`.
func String() string {
	return fmt.Sprintf("pressqa %s (commit: %s, built: %s)", Version, Commit, BuildDate)
}
