// Package version provides build information reported by the API and
// attached to exported traces.
package version

import (
	"fmt"
	"runtime"
)

// These variables are set during build time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GoVersion = runtime.Version()
)

// Info returns a map with all version information.
func Info() map[string]string {
	return map[string]string{
		"version":   Version,
		"buildTime": BuildTime,
		"gitCommit": GitCommit,
		"goVersion": GoVersion,
	}
}

// String formats the build for the --version flag.
func String() string {
	commit := GitCommit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("brilliox %s (%s, built %s, %s)", Version, commit, BuildTime, GoVersion)
}
