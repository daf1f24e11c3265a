package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "0.1.0"
	// Commit is the short git SHA embedded at build time, read from the Go build info when unset.
	Commit = ""
	// BuildTime is the UTC build timestamp embedded at build time, read from the Go build info when unset.
	BuildTime = ""
)

//nolint:gochecknoglobals // Build info never changes within a process.
var resolveOnce sync.Once

// shortCommitLength matches `git rev-parse --short`.
const shortCommitLength = 12

// resolve fills Commit and BuildTime from the VCS stamps of the Go toolchain.
func resolve() {
	resolveOnce.Do(func() {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					if Commit == "" {
						Commit = setting.Value[:min(len(setting.Value), shortCommitLength)]
					}
				case "vcs.time":
					if BuildTime == "" {
						BuildTime = setting.Value
					}
				}
			}
		}

		if Commit == "" {
			Commit = "none"
		}

		if BuildTime == "" {
			BuildTime = "unknown"
		}
	})
}

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns the version with commit, build time and Go release.
func Full() string {
	resolve()

	return fmt.Sprintf("%s (commit %s, built %s, %s)", Version, Commit, BuildTime, runtime.Version())
}

// UserAgent identifies fwmeta in outgoing HTTP requests such as cache purges.
func UserAgent() string {
	return "fwmeta/" + Short()
}
