package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// Config holds the file locations and feed constants used by update-appcast.
// Every field has a default, so the settings file is optional.
type Config struct {
	// MetadataFile is the plugin info.json holding the release version.
	MetadataFile string `yaml:"metadata_file"`
	// ArtifactFile is the packaged plugin to checksum. It does not depend on the version.
	ArtifactFile string `yaml:"artifact_file"`
	// FeedFile is the appcast JSON file that receives the new entry.
	FeedFile string `yaml:"feed_file"`
	// Identifier is written to a freshly created feed.
	Identifier string `yaml:"identifier"`
	// DownloadURL is the download URL template; VersionPlaceholder is replaced by the version.
	DownloadURL string `yaml:"download_url"`
	// MinBobVersion is the minimum host application version stamped on every entry.
	MinBobVersion string `yaml:"min_bob_version"`
}

const (
	// DefaultConfigFilename is the settings file picked up from the working directory when present.
	DefaultConfigFilename = "appcast-settings.yaml"

	// DefaultMetadataFile is the default location of the plugin metadata.
	DefaultMetadataFile = "src/info.json"

	// DefaultArtifactFile is the default location of the release artifact.
	DefaultArtifactFile = "release/moji-dictionary.bobplugin"

	// DefaultFeedFile is the default location of the appcast feed.
	DefaultFeedFile = "appcast.json"

	// DefaultIdentifier is the plugin identifier of a new feed.
	DefaultIdentifier = "com.ukenn.moji.dictionary"

	// DefaultDownloadURL embeds the version in the release tag path.
	DefaultDownloadURL = "https://github.com/Ukenn2112/MOJiBobPlugin/releases/download/v" +
		VersionPlaceholder + "/moji-dictionary.bobplugin"

	// DefaultMinBobVersion is the minimum Bob version stamped on entries.
	DefaultMinBobVersion = "1.8.0"

	// VersionPlaceholder marks where DownloadURL receives the version.
	VersionPlaceholder = "{version}"
)

var (
	errConfigIsNotSet       = errors.New("configuration is not set")
	errPathRequired         = errors.New("file path must be provided")
	errIdentifierRequired   = errors.New("identifier must be provided")
	errPlaceholderMissing   = errors.New("download url must contain " + VersionPlaceholder)
	errInvalidMinBobVersion = errors.New("invalid min_bob_version")
	errInvalidDownloadURL   = errors.New("invalid download url")
)

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		MetadataFile:  DefaultMetadataFile,
		ArtifactFile:  DefaultArtifactFile,
		FeedFile:      DefaultFeedFile,
		Identifier:    DefaultIdentifier,
		DownloadURL:   DefaultDownloadURL,
		MinBobVersion: DefaultMinBobVersion,
	}
}

// Load reads settings from path on top of Default and validates them.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOptional behaves like Load but returns Default when path does not exist.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return cfg, err
}

// Validate checks the settings for required fields and formatting.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	for name, value := range map[string]string{
		"metadata_file": cfg.MetadataFile,
		"artifact_file": cfg.ArtifactFile,
		"feed_file":     cfg.FeedFile,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s: %w", name, errPathRequired)
		}
	}

	if strings.TrimSpace(cfg.Identifier) == "" {
		return errIdentifierRequired
	}

	if !strings.Contains(cfg.DownloadURL, VersionPlaceholder) {
		return errPlaceholderMissing
	}

	if _, err := url.ParseRequestURI(cfg.RenderDownloadURL("0.0.0")); err != nil {
		return fmt.Errorf("%w: %w", errInvalidDownloadURL, err)
	}

	if _, err := semver.StrictNewVersion(cfg.MinBobVersion); err != nil {
		return fmt.Errorf("%w %q: %w", errInvalidMinBobVersion, cfg.MinBobVersion, err)
	}

	return nil
}

// RenderDownloadURL returns the download URL of the given release version.
func (c *Config) RenderDownloadURL(version string) string {
	return strings.ReplaceAll(c.DownloadURL, VersionPlaceholder, version)
}
