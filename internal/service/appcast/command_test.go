package appcast

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ukenn2112/mojibobplugin/internal/artifact"
	"github.com/ukenn2112/mojibobplugin/internal/config"
	domain "github.com/ukenn2112/mojibobplugin/internal/domain/appcast"
	"github.com/ukenn2112/mojibobplugin/internal/repository/feed"
	"github.com/ukenn2112/mojibobplugin/internal/repository/metadata"
)

const abcChecksum = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

var errTestLoad = errors.New("test load error")

// memoryRepository is a minimal in-memory Repository implementation for tests.
type memoryRepository struct {
	// feed is returned from Load; nil means not found.
	feed *domain.Feed
	// loadErr is the error to return from Load operations.
	loadErr error
	// saved stores the last feed passed to Save.
	saved *domain.Feed
	// saves counts Save calls.
	saves int
}

// Load returns the stored feed or ErrNotFound.
func (m *memoryRepository) Load(context.Context) (*domain.Feed, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}

	if m.feed == nil {
		return nil, feed.ErrNotFound
	}

	return m.feed, nil
}

// Save records the feed.
func (m *memoryRepository) Save(_ context.Context, f *domain.Feed) error {
	m.saved = f
	m.saves++

	return nil
}

// fixture lays out metadata and artifact in a temp dir and returns a config pointing at them.
func fixture(t *testing.T, info string, artifactBody []byte) *config.Config {
	t.Helper()

	dir := t.TempDir()

	cfg := config.Default()
	cfg.MetadataFile = filepath.Join(dir, "src", "info.json")
	cfg.ArtifactFile = filepath.Join(dir, "release", "moji-dictionary.bobplugin")
	cfg.FeedFile = filepath.Join(dir, "appcast.json")

	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.MetadataFile), 0o755))
	require.NoError(t, os.WriteFile(cfg.MetadataFile, []byte(info), 0o600))

	if artifactBody != nil {
		require.NoError(t, os.MkdirAll(filepath.Dir(cfg.ArtifactFile), 0o755))
		require.NoError(t, os.WriteFile(cfg.ArtifactFile, artifactBody, 0o600))
	}

	return cfg
}

// bundle returns a zip archive holding info.json with the given version.
func bundle(t *testing.T, version string) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bundle.zip")

	out, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(out)
	w, err := zw.Create("info.json")
	require.NoError(t, err)

	_, err = w.Write([]byte(`{"version":"` + version + `"}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return data
}

// TestUpdater_CreatesFeed builds the documented entry on a fresh feed.
func TestUpdater_CreatesFeed(t *testing.T) {
	t.Parallel()

	cfg := fixture(t, `{"version": "1.2.0"}`, []byte("abc"))
	repo := new(memoryRepository)

	entry, err := newUpdater(cfg, repo, &Options{Description: "Fix bug"}).Run(context.Background())
	require.NoError(t, err)

	want := domain.Entry{
		Version:       "1.2.0",
		Desc:          "Fix bug",
		SHA256:        abcChecksum,
		URL:           "https://github.com/Ukenn2112/MOJiBobPlugin/releases/download/v1.2.0/moji-dictionary.bobplugin",
		MinBobVersion: "1.8.0",
	}
	require.Equal(t, want, *entry)

	require.Equal(t, 1, repo.saves)
	require.Equal(t, config.DefaultIdentifier, repo.saved.Identifier)
	require.Equal(t, []domain.Entry{want}, repo.saved.Versions)

	// Lock is released.
	_, err = os.Stat(cfg.FeedFile + feed.LockSuffix)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestUpdater_PrependsWithoutDeduplication keeps older and identical entries.
func TestUpdater_PrependsWithoutDeduplication(t *testing.T) {
	t.Parallel()

	cfg := fixture(t, `{"version": "1.2.0"}`, []byte("abc"))

	existing := domain.NewFeed(config.DefaultIdentifier)
	existing.Prepend(domain.Entry{Version: "1.1.0", SHA256: abcChecksum, URL: "u"})

	repo := &memoryRepository{feed: existing}
	u := newUpdater(cfg, repo, &Options{Description: "again"})

	_, err := u.Run(context.Background())
	require.NoError(t, err)

	_, err = u.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, repo.saved.Versions, 3)
	require.Equal(t, "1.2.0", repo.saved.Versions[0].Version)
	require.Equal(t, repo.saved.Versions[0], repo.saved.Versions[1])
	require.Equal(t, "1.1.0", repo.saved.Versions[2].Version)
}

// TestUpdater_MissingArtifact fails before touching the feed.
func TestUpdater_MissingArtifact(t *testing.T) {
	t.Parallel()

	cfg := fixture(t, `{"version": "1.2.0"}`, nil)
	repo := new(memoryRepository)

	_, err := newUpdater(cfg, repo, &Options{Description: "x"}).Run(context.Background())
	require.ErrorIs(t, err, artifact.ErrNotFound)
	require.Zero(t, repo.saves)

	_, err = os.Stat(cfg.FeedFile + feed.LockSuffix)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestUpdater_MetadataErrors maps missing and malformed metadata to their sentinels.
func TestUpdater_MetadataErrors(t *testing.T) {
	t.Parallel()

	cfg := fixture(t, `{"name": "no version"}`, []byte("abc"))
	repo := new(memoryRepository)

	_, err := newUpdater(cfg, repo, &Options{}).Run(context.Background())
	require.ErrorIs(t, err, metadata.ErrMalformed)

	require.NoError(t, os.Remove(cfg.MetadataFile))

	_, err = newUpdater(cfg, repo, &Options{}).Run(context.Background())
	require.ErrorIs(t, err, metadata.ErrNotFound)
	require.Zero(t, repo.saves)
}

// TestUpdater_FeedLoadError is terminal.
func TestUpdater_FeedLoadError(t *testing.T) {
	t.Parallel()

	cfg := fixture(t, `{"version": "1.2.0"}`, []byte("abc"))
	repo := &memoryRepository{loadErr: errTestLoad}

	_, err := newUpdater(cfg, repo, &Options{}).Run(context.Background())
	require.ErrorIs(t, err, errTestLoad)
	require.Zero(t, repo.saves)
}

// TestUpdater_Locked refuses to run while another live process holds the lock.
func TestUpdater_Locked(t *testing.T) {
	t.Parallel()

	cfg := fixture(t, `{"version": "1.2.0"}`, []byte("abc"))
	repo := new(memoryRepository)

	lock, err := feed.Acquire(context.Background(), cfg.FeedFile)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, lock.Release())
	}()

	_, err = newUpdater(cfg, repo, &Options{}).Run(context.Background())
	require.ErrorIs(t, err, feed.ErrLocked)
	require.Zero(t, repo.saves)
}

// TestUpdater_DryRun reads the feed and computes the result without saving.
func TestUpdater_DryRun(t *testing.T) {
	t.Parallel()

	cfg := fixture(t, `{"version": "1.2.0"}`, []byte("abc"))

	existing := domain.NewFeed(config.DefaultIdentifier)
	existing.Prepend(domain.Entry{Version: "1.1.0", SHA256: abcChecksum, URL: "u"})

	repo := &memoryRepository{feed: existing}

	entry, err := newUpdater(cfg, repo, &Options{Description: "preview", DryRun: true}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, abcChecksum, entry.SHA256)
	require.Zero(t, repo.saves)

	_, err = os.Stat(cfg.FeedFile + feed.LockSuffix)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestUpdater_DryRunMalformedFeed fails the same way a real run does.
func TestUpdater_DryRunMalformedFeed(t *testing.T) {
	t.Parallel()

	cfg := fixture(t, `{"version": "1.2.0"}`, []byte("abc"))

	broken := []byte(`{"versions":`)
	require.NoError(t, os.WriteFile(cfg.FeedFile, broken, 0o600))

	u := newUpdater(cfg, feed.NewFileRepository(cfg.FeedFile), &Options{Description: "x", DryRun: true})

	_, err := u.Run(context.Background())
	require.ErrorIs(t, err, feed.ErrMalformed)

	contents, err := os.ReadFile(cfg.FeedFile)
	require.NoError(t, err)
	require.Equal(t, broken, contents)
}

// TestUpdater_DryRunLeavesFeed keeps an existing feed file byte for byte.
func TestUpdater_DryRunLeavesFeed(t *testing.T) {
	t.Parallel()

	cfg := fixture(t, `{"version": "1.2.0"}`, []byte("abc"))

	original := []byte(`{"identifier": "com.ukenn.moji.dictionary", "versions": []}`)
	require.NoError(t, os.WriteFile(cfg.FeedFile, original, 0o600))

	u := newUpdater(cfg, feed.NewFileRepository(cfg.FeedFile), &Options{Description: "x", DryRun: true})

	_, err := u.Run(context.Background())
	require.NoError(t, err)

	contents, err := os.ReadFile(cfg.FeedFile)
	require.NoError(t, err)
	require.Equal(t, original, contents)
}

// TestUpdater_BundleMismatch warns by default and fails in strict mode.
func TestUpdater_BundleMismatch(t *testing.T) {
	t.Parallel()

	stale := bundle(t, "1.1.0")
	cfg := fixture(t, `{"version": "1.2.0"}`, stale)

	repo := new(memoryRepository)

	_, err := newUpdater(cfg, repo, &Options{Strict: true}).Run(context.Background())
	require.ErrorIs(t, err, ErrArtifactMismatch)
	require.Zero(t, repo.saves)

	entry, err := newUpdater(cfg, repo, &Options{}).Run(context.Background())
	require.NoError(t, err)

	sum := sha256.Sum256(stale)
	require.Equal(t, hex.EncodeToString(sum[:]), entry.SHA256)
	require.Equal(t, 1, repo.saves)
}

// TestUpdater_BundleMatch passes strict mode when versions agree.
func TestUpdater_BundleMatch(t *testing.T) {
	t.Parallel()

	cfg := fixture(t, `{"version": "1.2.0"}`, bundle(t, "1.2.0"))
	repo := new(memoryRepository)

	_, err := newUpdater(cfg, repo, &Options{Strict: true}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, repo.saves)
}

// TestUpdater_Canceled stops before the feed is touched.
func TestUpdater_Canceled(t *testing.T) {
	t.Parallel()

	cfg := fixture(t, `{"version": "1.2.0"}`, []byte("abc"))
	repo := new(memoryRepository)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newUpdater(cfg, repo, &Options{}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, repo.saves)
}

// TestLoadConfig distinguishes the optional default file from an explicit path.
func TestLoadConfig(t *testing.T) {
	t.Parallel()

	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("feed_file: out/appcast.json\n"), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "out/appcast.json", cfg.FeedFile)
}
