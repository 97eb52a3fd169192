// Package version carries build metadata for the streamsketch binary.
package version

import (
	"fmt"
	"runtime/debug"
)

const (
	defaultVersion = "dev"
	defaultCommit  = "none"
	defaultDate    = "unknown"

	develBuild = "(devel)"
)

// Build metadata, normally set with -ldflags "-X".
var (
	Version = defaultVersion
	Commit  = defaultCommit
	Date    = defaultDate
)

// InitBinaryVersion fills metadata left at its defaults from the module
// build info embedded by the Go toolchain.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	apply(info)
}

func apply(info *debug.BuildInfo) {
	if Version == defaultVersion && info.Main.Version != "" && info.Main.Version != develBuild {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == defaultCommit && setting.Value != "" {
				Commit = setting.Value
			}
		case "vcs.time":
			if Date == defaultDate && setting.Value != "" {
				Date = setting.Value
			}
		}
	}
}

// String formats the metadata for the version command.
func String() string {
	return fmt.Sprintf("streamsketch %s (commit: %s, built: %s)", Version, Commit, Date)
}
