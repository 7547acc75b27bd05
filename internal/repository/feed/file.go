package feed

import (
	"bytes"
	"context"
	"crypto"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/ukenn2112/mojibobplugin/internal/domain/appcast"
)

// DefaultFileMode is the permission of a newly created feed.
const DefaultFileMode os.FileMode = 0o644

const (
	indent = "  "

	dirMode os.FileMode = 0o755
)

var (
	// ErrNotFound is returned when the feed file does not exist yet.
	ErrNotFound = errors.New("feed not found")
	// ErrMalformed is returned when the feed is not valid JSON or does not match the appcast schema.
	ErrMalformed = errors.New("malformed feed")
)

// Repository defines persistence operations for the appcast feed.
type Repository interface {
	Load(ctx context.Context) (*appcast.Feed, error)
	Save(ctx context.Context, feed *appcast.Feed) error
}

// FileRepository persists the feed to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the feed.
	path string
	// mu serializes access within the process; Acquire guards across processes.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads and validates the feed.
func (r *FileRepository) Load(_ context.Context) (*appcast.Feed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read feed file: %w", err)
	}

	if err = validateDocument(contents); err != nil {
		return nil, err
	}

	var feed appcast.Feed
	if err = json.Unmarshal(contents, &feed); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return &feed, nil
}

// Save replaces the feed file with feed.
// The new contents are written next to the target, checked against their
// checksum and renamed into place, so a failed write leaves the old feed intact.
func (r *FileRepository) Save(ctx context.Context, feed *appcast.Feed) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := Encode(feed)
	if err != nil {
		return err
	}

	if err = validateDocument(data); err != nil {
		return fmt.Errorf("refusing to write: %w", err)
	}

	if err = ctx.Err(); err != nil {
		return err
	}

	created, err := r.ensureTarget()
	if err != nil {
		return err
	}

	checksum := sha256.Sum256(data)

	options := goupdate.Options{
		TargetPath: r.path,
		TargetMode: DefaultFileMode,
		Checksum:   checksum[:],
		Hash:       crypto.SHA256,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		if created {
			_ = os.Remove(r.path)
		}

		return fmt.Errorf("write feed file: %w", err)
	}

	return nil
}

// ensureTarget creates an empty feed file when none exists, since the
// replacement swaps an existing file. It reports whether it created one.
func (r *FileRepository) ensureTarget() (bool, error) {
	if _, err := os.Stat(r.path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat feed file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), dirMode); err != nil {
		return false, fmt.Errorf("create feed directory: %w", err)
	}

	placeholder, err := os.OpenFile(r.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, DefaultFileMode)
	if err != nil {
		return false, fmt.Errorf("create feed file: %w", err)
	}

	if err = placeholder.Close(); err != nil {
		return true, fmt.Errorf("create feed file: %w", err)
	}

	return true, nil
}

// Encode renders feed as two-space indented JSON with non-ASCII and HTML
// characters written verbatim.
func Encode(feed *appcast.Feed) ([]byte, error) {
	var buf bytes.Buffer

	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", indent)

	if err := encoder.Encode(feed); err != nil {
		return nil, fmt.Errorf("encode feed: %w", err)
	}

	return buf.Bytes(), nil
}
