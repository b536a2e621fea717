// Package buildinfo carries the version stamped into the horizon and hlemon binaries.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

// Set at build time via -ldflags "-X horizon/internal/buildinfo.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns the release version, else the commit, else "dev".
func Short() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if c := commit(); c != "unknown" {
		return c
	}
	return "dev"
}

// String formats the banner printed by -version.
func String(program string) string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", program, Short(), commit(), Date)
}

// commit falls back to the VCS revision the go command embeds when no -ldflags were given.
func commit() string {
	if Commit != "" && Commit != "unknown" {
		return Commit
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 12 {
				return s.Value[:12]
			}
		}
	}
	return "unknown"
}
