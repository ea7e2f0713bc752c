// Package build carries release metadata stamped at link time with
// -ldflags "-X .../internal/build.Version=... -X .../internal/build.Commit=...".
package build

import "runtime"

// Stamped via -ldflags; zero values mean a local, unstamped build.
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// String renders the stamped metadata for the version command.
func String() string {
	s := "voicebridge " + Version
	if Commit != "" {
		s += " (" + Commit + ")"
	}
	if Date != "" {
		s += " built " + Date
	}
	return s + " " + runtime.GOOS + "/" + runtime.GOARCH
}
