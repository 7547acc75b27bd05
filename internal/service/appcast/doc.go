// Package appcast publishes a release into the plugin's appcast feed.
//
// Run reads the release version from the plugin metadata, checksums the
// packaged artifact, and prepends a new entry to the feed. Suspicious but
// publishable input (non-semver versions, stale artifacts, versions that do
// not advance) is reported as warnings.
package appcast
