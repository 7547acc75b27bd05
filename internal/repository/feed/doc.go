// Package feed persists the appcast feed.
//
// The FileRepository reads and writes the feed as indented JSON, validates it
// against an embedded JSON schema in both directions, and replaces the file
// atomically. Acquire guards a read-modify-write cycle with a lock file.
package feed
