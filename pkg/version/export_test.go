package version

import "runtime/debug"

// Apply exposes build info merging for tests.
func Apply(info *debug.BuildInfo) { apply(info) }

// Reset restores the default metadata.
func Reset() {
	Version, Commit, Date = defaultVersion, defaultCommit, defaultDate
}
