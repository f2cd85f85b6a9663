// Package contracts carries the version and format identifiers shared by
// every binary.
package contracts

import (
	"fmt"
	"runtime"
)

const (
	// Version is the current version of the pipeline.
	Version = "1.0.0"

	// DataFormatVersion tags the serialized artifact layout. Bump it when
	// the canonical serialization changes shape.
	DataFormatVersion = "v1"
)

var (
	// BuildTime is set during build using ldflags.
	BuildTime = "unknown"

	// GitCommit is set during build using ldflags.
	GitCommit = "unknown"
)

// VersionString returns the full version line for startup logs and -version
// output.
func VersionString() string {
	return fmt.Sprintf("b3ingest %s (%s, %s/%s, commit %s)",
		Version, runtime.Version(), runtime.GOOS, runtime.GOARCH, GitCommit)
}

// UserAgent returns the HTTP User-Agent header value for outbound provider
// requests.
func UserAgent() string {
	return "b3ingest/" + Version
}
