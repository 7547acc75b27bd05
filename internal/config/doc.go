// Package config defines where update-appcast finds its inputs and which
// constants it stamps on the feed, and loads overrides from YAML.
package config
