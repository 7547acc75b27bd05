// Package metadata reads the plugin info.json produced by the build.
package metadata
