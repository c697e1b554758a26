// Package version holds build information stamped in with -ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is the release tag, or "dev" for local builds.
	Version = "dev"
	// GitCommit is the short commit SHA.
	GitCommit = "unknown"
	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// PlaywrightVersion returns the playwright-go module version compiled in.
func PlaywrightVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, dep := range info.Deps {
		if dep.Path == "github.com/playwright-community/playwright-go" {
			return dep.Version
		}
	}
	return "unknown"
}

// String returns "<version> (<commit>)".
func String() string {
	return fmt.Sprintf("%s (%s)", Version, GitCommit)
}

// Full adds the build date, Go version and playwright-go version.
func Full() string {
	return fmt.Sprintf("%s built %s with %s, playwright-go %s", String(), BuildDate, runtime.Version(), PlaywrightVersion())
}
