// Package version holds build metadata for the climatetrack binary, set
// with -ldflags:
//
//	go build -ldflags="-X github.com/mifdirfan/climatetrack/internal/version.Version=v0.3.0 \
//	                    -X github.com/mifdirfan/climatetrack/internal/version.Commit=abc1234 \
//	                    -X github.com/mifdirfan/climatetrack/internal/version.BuildDate=2026-01-01"
package version

import "fmt"

// Version is the semantic version. "dev" for local builds.
var Version = "dev"

// Commit is the short git SHA.
var Commit = "unknown"

// BuildDate is the UTC build date.
var BuildDate = "unknown"

// String renders all three fields on one line.
func String() string {
	return fmt.Sprintf("climatetrack %s (commit %s, built %s)", Version, Commit, BuildDate)
}
