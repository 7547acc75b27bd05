// Package appcast contains the appcast feed model: the Feed published to
// update clients and the Entry describing a single release.
//
// Both types keep fields they do not know about, so rewriting a feed that
// another tool extended does not lose data.
package appcast
