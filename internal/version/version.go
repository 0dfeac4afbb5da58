// Package version carries build identification, set via -ldflags at release
// time and reported by the -version flag.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String returns the one-line build identification.
func String() string {
	return fmt.Sprintf("spibeam %s (%s, built %s)", Version, GitSHA, BuildTime)
}
