// Package version exposes build metadata of the update-appcast binary.
//
// Version, Commit and BuildTime are injected at build time via ldflags.
// AttachCobraVersion wires them into the root command's --version flag.
package version
