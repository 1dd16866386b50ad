// Package version carries build metadata stamped in with -ldflags.
package version

import "runtime"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the version line printed by `tandem version`.
func String() string {
	return "tandem " + Version + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}

// UserAgent identifies tandem to the speech gateway.
func UserAgent() string {
	return "tandem/" + Version
}
