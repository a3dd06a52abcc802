// Package version holds build information set through -ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build variables, overridden at link time:
//
//	go build -ldflags "-X github.com/NERVsystems/journeymcp/pkg/version.BuildVersion=v1.2.0"
var (
	BuildVersion = "dev"
	BuildCommit  = "unknown"
	BuildDate    = "unknown"
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if BuildCommit == "unknown" {
				BuildCommit = setting.Value
			}
		case "vcs.time":
			if BuildDate == "unknown" {
				BuildDate = setting.Value
			}
		}
	}
}

// Info returns the build information as a map
func Info() map[string]string {
	return map[string]string{
		"version":    BuildVersion,
		"commit":     BuildCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
	}
}

// String returns a one-line version description
func String() string {
	return fmt.Sprintf("journeymcp %s (commit %s, built %s, %s)", BuildVersion, BuildCommit, BuildDate, runtime.Version())
}
