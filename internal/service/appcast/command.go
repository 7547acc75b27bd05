package appcast

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/ukenn2112/mojibobplugin/internal/artifact"
	"github.com/ukenn2112/mojibobplugin/internal/config"
	domain "github.com/ukenn2112/mojibobplugin/internal/domain/appcast"
	"github.com/ukenn2112/mojibobplugin/internal/logger"
	"github.com/ukenn2112/mojibobplugin/internal/repository/feed"
	"github.com/ukenn2112/mojibobplugin/internal/repository/metadata"
)

// Options contains inputs for the appcast entry point.
type Options struct {
	// ConfigPath is an optional settings file. When empty, config.DefaultConfigFilename
	// is used if it exists and built-in defaults otherwise.
	ConfigPath string
	// Description is the release note stored in the new entry. Any text is accepted.
	Description string
	// DryRun reads the feed and computes the result without locking or writing it.
	DryRun bool
	// Strict turns a version mismatch between metadata and artifact into an error.
	Strict bool
}

// updater publishes one release into the feed.
// It is unexported; callers use Run, which loads configuration first.
type updater struct {
	// cfg holds file locations and feed constants.
	cfg *config.Config
	// repo loads and stores the feed.
	repo feed.Repository
	// opts are the caller's inputs.
	opts *Options
}

// ErrArtifactMismatch reports that the artifact bundles a different version than the metadata.
var ErrArtifactMismatch = errors.New("artifact version does not match metadata")

// Run prepends an entry for the current release to the appcast feed and
// returns the released version.
func Run(ctx context.Context, opts *Options) (string, error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "update-appcast")

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return "", err
	}

	u := newUpdater(cfg, feed.NewFileRepository(cfg.FeedFile), opts)

	entry, err := u.Run(ctx)
	if err != nil {
		return "", err
	}

	return entry.Version, nil
}

// loadConfig reads an explicit settings file, or the default one when present.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadOptional(config.DefaultConfigFilename)
	}

	return config.Load(path)
}

func newUpdater(cfg *config.Config, repo feed.Repository, opts *Options) *updater {
	return &updater{
		cfg:  cfg,
		repo: repo,
		opts: opts,
	}
}

// Run builds the entry and writes the feed. Nothing is written unless every
// step before the write succeeds.
func (u *updater) Run(ctx context.Context) (*domain.Entry, error) {
	logger.InfoKV(ctx, "Reading plugin metadata", "path", u.cfg.MetadataFile)

	info, err := metadata.Load(u.cfg.MetadataFile)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}

	ctx = logger.WithKV(ctx, "version", info.Version)
	u.checkMetadata(ctx, info)

	entry, err := u.buildEntry(ctx, info)
	if err != nil {
		return nil, err
	}

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	var lock *feed.Lock

	if !u.opts.DryRun {
		lock, err = feed.Acquire(ctx, u.cfg.FeedFile)
		if err != nil {
			return nil, err
		}
	}

	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Unable to release feed lock", "error", releaseErr)
		}
	}()

	current, err := u.loadFeed(ctx)
	if err != nil {
		return nil, err
	}

	u.checkOrdering(ctx, current, entry.Version)
	current.Prepend(*entry)

	if u.opts.DryRun {
		return entry, u.preview(ctx, current)
	}

	logger.InfoKV(ctx, "Saving appcast", "path", u.cfg.FeedFile, "entries", len(current.Versions))

	if err = u.repo.Save(ctx, current); err != nil {
		return nil, fmt.Errorf("save appcast: %w", err)
	}

	u.printNextSteps(ctx, entry)

	return entry, nil
}

// buildEntry verifies the artifact and assembles the entry for info.
func (u *updater) buildEntry(ctx context.Context, info *metadata.Info) (*domain.Entry, error) {
	if err := artifact.EnsureExists(u.cfg.ArtifactFile); err != nil {
		return nil, err
	}

	if err := u.checkBundle(ctx, info.Version); err != nil {
		return nil, err
	}

	checksum, err := artifact.Checksum(u.cfg.ArtifactFile)
	if err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Computed artifact checksum", "path", u.cfg.ArtifactFile, "sha256", checksum)

	entry := &domain.Entry{
		Version:       info.Version,
		Desc:          u.opts.Description,
		SHA256:        checksum,
		URL:           u.cfg.RenderDownloadURL(info.Version),
		MinBobVersion: u.cfg.MinBobVersion,
	}

	if err = entry.Validate(); err != nil {
		return nil, err
	}

	return entry, nil
}

// loadFeed returns the stored feed, or a fresh one when none exists.
func (u *updater) loadFeed(ctx context.Context) (*domain.Feed, error) {
	current, err := u.repo.Load(ctx)
	if errors.Is(err, feed.ErrNotFound) {
		logger.InfoKV(ctx, "Appcast not found, creating a new one", "identifier", u.cfg.Identifier)

		return domain.NewFeed(u.cfg.Identifier), nil
	}

	if err != nil {
		return nil, fmt.Errorf("load appcast: %w", err)
	}

	if current.Identifier != u.cfg.Identifier {
		logger.WarnKV(ctx, "Appcast identifier differs from configuration",
			"appcast", current.Identifier, "configured", u.cfg.Identifier)
	}

	return current, nil
}

// preview logs the feed a real run would write.
func (u *updater) preview(ctx context.Context, next *domain.Feed) error {
	data, err := feed.Encode(next)
	if err != nil {
		return err
	}

	logger.Infof(ctx, "Dry run, %s left unchanged. Appcast that would be written:\n%s", u.cfg.FeedFile, data)

	return nil
}

// printNextSteps logs what has to be published for clients to see the release.
func (u *updater) printNextSteps(ctx context.Context, entry *domain.Entry) {
	var builder strings.Builder

	builder.WriteString("Upload ")
	builder.WriteString(u.cfg.ArtifactFile)
	builder.WriteString(" so that it is served at:\n")
	builder.WriteString(entry.URL)
	builder.WriteString("\nThen publish ")
	builder.WriteString(u.cfg.FeedFile)
	builder.WriteString(" to deliver the update.")

	logger.Info(ctx, builder.String())
}

// checkMetadata warns about metadata that is publishable but suspicious.
func (u *updater) checkMetadata(ctx context.Context, info *metadata.Info) {
	if _, err := semver.NewVersion(info.Version); err != nil {
		logger.WarnKV(ctx, "Version is not a semantic version", "error", err)
	}

	if info.Identifier != "" && info.Identifier != u.cfg.Identifier {
		logger.WarnKV(ctx, "Metadata identifier differs from configuration",
			"metadata", info.Identifier, "configured", u.cfg.Identifier)
	}

	if info.MinBobVersion != "" && info.MinBobVersion != u.cfg.MinBobVersion {
		logger.WarnKV(ctx, "Metadata minBobVersion differs from configuration",
			"metadata", info.MinBobVersion, "configured", u.cfg.MinBobVersion)
	}
}

// checkBundle compares the version packaged inside the artifact with the
// metadata version. The artifact path does not depend on the version, so a
// failed build can leave an older package in place.
func (u *updater) checkBundle(ctx context.Context, version string) error {
	bundled, err := artifact.BundledInfo(u.cfg.ArtifactFile)
	if errors.Is(err, artifact.ErrNotBundle) {
		logger.DebugKV(ctx, "Skipping bundled version check", "reason", err)
		return nil
	}

	if err != nil {
		logger.WarnKV(ctx, "Unable to read bundled metadata", "error", err)
		return nil
	}

	if bundled.Version == version {
		return nil
	}

	if u.opts.Strict {
		return fmt.Errorf("%w: artifact has %s, metadata has %s", ErrArtifactMismatch, bundled.Version, version)
	}

	logger.WarnKV(ctx, "Artifact bundles a different version, it may be stale",
		"artifact", u.cfg.ArtifactFile, "bundled_version", bundled.Version)

	return nil
}

// checkOrdering warns when version does not advance past the newest entry.
func (u *updater) checkOrdering(ctx context.Context, current *domain.Feed, version string) {
	latest, ok := current.Latest()
	if !ok {
		return
	}

	next, err := semver.NewVersion(version)
	if err != nil {
		return
	}

	previous, err := semver.NewVersion(latest.Version)
	if err != nil {
		logger.DebugKV(ctx, "Latest appcast version is not semantic", "latest", latest.Version)
		return
	}

	if !next.GreaterThan(previous) {
		logger.WarnKV(ctx, "Version is not newer than the latest appcast entry", "latest", latest.Version)
	}
}
