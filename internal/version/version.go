// Package version reports which build of expfactory is running.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set at build time with -ldflags "-X github.com/example/expfactory/internal/version.Commit=...".
var (
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info describes a build.
type Info struct {
	Commit    string
	BuildTime string
	Modified  bool
}

// Current returns the build info, falling back to the VCS stamp go build
// embeds when the ldflags were not set.
func Current() Info {
	info := Info{Commit: Commit, BuildTime: BuildTime}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info = fromSettings(info, bi.Settings)
	}
	return info
}

func fromSettings(info Info, settings []debug.BuildSetting) Info {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.BuildTime == "unknown" {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// String formats the build for --version.
func (i Info) String() string {
	commit := i.Commit
	if len(commit) > 10 {
		commit = commit[:10]
	}
	if i.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("expfactory (commit: %s, built: %s)", commit, i.BuildTime)
}

// String returns the current build's version line.
func String() string {
	return Current().String()
}
