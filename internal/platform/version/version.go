// Package version exposes build information injected via ldflags.
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the git tag or semantic version.
	Version = "dev"
	// Commit is the git commit SHA.
	Commit = "unknown"
	// BuildTime is the ISO 8601 build timestamp.
	BuildTime = "unknown"
)

// Info is the payload served on /version.
type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

const service = "gs-relay"

func Get() Info {
	return Info{
		Service:   service,
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// String renders the build for the startup log line.
func (i Info) String() string {
	commit := i.Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s %s (%s, %s)", i.Service, i.Version, commit, i.GoVersion)
}
