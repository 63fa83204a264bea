// SPDX-License-Identifier: MIT

// Package version carries build metadata set through -ldflags, for example
//
//	-X github.com/ManuGH/mediamix/internal/version.Version=v0.2.0
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	// Version is the release tag.
	Version = "v0.1.0"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// String formats the build metadata for -version output.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, resolveCommit(), Date)
}

// resolveCommit falls back to the VCS stamp the go tool embeds when Commit
// was not set at link time.
func resolveCommit() string {
	if Commit != "unknown" {
		return Commit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Commit
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}
			return s.Value
		}
	}
	return Commit
}
