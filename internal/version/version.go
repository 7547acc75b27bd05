package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "0.1.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit and build time.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}

// AttachCobraVersion enables the --version flag on root.
// A flag is used instead of a subcommand because the root command takes a
// free-text argument, and "version" is a plausible release description.
func AttachCobraVersion(root *cobra.Command) {
	root.Version = Short()
	root.SetVersionTemplate(Full() + "\n")
}
