// Package version exposes build metadata injected at link time, used by
// the client's version subcommand and the server's /health response. Adapted from the teacher's
// internal/version/version.go, trimmed to BuildInfo: the update-check
// client/server exchange it also carried depended on a version-service
// HTTP endpoint this spec has no analogue for.
package version

import (
	"fmt"
	"runtime"
	"time"
)

// These variables are set at build time via -ldflags, e.g.:
//
//	-ldflags "-X github.com/beaconlink/beaconlink/internal/version.Version=v1.0.0"
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// BuildInfo is the full set of build metadata for one binary.
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Compiler  string `json:"compiler"`
}

// GetBuildInfo returns complete build information for the running binary.
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Compiler:  runtime.Compiler,
	}
}

// Info returns a formatted version string for the CLI's version subcommand.
func Info() string {
	b := GetBuildInfo()
	if b.BuildTime == "unknown" {
		return fmt.Sprintf("%s (development build)", b.Version)
	}

	buildTime, err := time.Parse(time.RFC3339, b.BuildTime)
	if err != nil {
		return fmt.Sprintf("%s (built %s)", b.Version, b.BuildTime)
	}

	commit := b.GitCommit
	if commit != "unknown" && len(commit) >= 8 {
		commit = commit[:8]
	}
	return fmt.Sprintf("%s (built %s, commit %s)", b.Version, buildTime.Format("2006-01-02 15:04:05 UTC"), commit)
}
