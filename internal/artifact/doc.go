// Package artifact inspects the packaged plugin before it is published.
//
// It checks that the artifact exists, computes the hex SHA-256 digest
// recorded in the appcast, and reads the version bundled inside the
// .bobplugin archive so a stale build can be reported.
package artifact
