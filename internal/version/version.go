// Package version reports the build of the slotchat binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Stamped by the release build with -ldflags "-X ...version.Version=...".
// Commit and Date fall back to the VCS data the Go toolchain embeds.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Build describes the running binary.
type Build struct {
	Version string
	Commit  string
	Date    string
	Dirty   bool
	Go      string
}

// Current resolves the build, preferring linker-stamped values.
func Current() Build {
	b := Build{Version: Version, Commit: Commit, Date: Date, Go: runtime.Version()}
	if info, ok := debug.ReadBuildInfo(); ok {
		fillFromSettings(&b, info.Settings)
	}
	return b
}

func fillFromSettings(b *Build, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "unknown" {
				b.Commit = s.Value
			}
		case "vcs.time":
			if b.Date == "unknown" {
				b.Date = s.Value
			}
		case "vcs.modified":
			b.Dirty = s.Value == "true"
		}
	}
}

func (b Build) String() string {
	commit := short(b.Commit)
	if b.Dirty {
		commit += "+dirty"
	}
	return fmt.Sprintf("slotchat %s (commit %s, built %s, %s %s/%s)",
		b.Version, commit, b.Date, b.Go, runtime.GOOS, runtime.GOARCH)
}

// Info is Current().String().
func Info() string { return Current().String() }

func short(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}
