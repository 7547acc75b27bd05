package artifact

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/ukenn2112/mojibobplugin/internal/repository/metadata"
)

// bundledInfoName is the metadata file every plugin archive carries.
const bundledInfoName = "info.json"

// maxInfoSize caps how much of the bundled info.json is read.
const maxInfoSize = 1 << 20

// ErrNotBundle is returned when the artifact is not a plugin archive with metadata.
var ErrNotBundle = errors.New("artifact is not a plugin archive")

// BundledInfo reads the info.json packaged inside the plugin archive filename.
// When several are present the one closest to the archive root wins.
func BundledInfo(filename string) (*metadata.Info, error) {
	reader, err := zip.OpenReader(filename)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) {
			return nil, fmt.Errorf("%w: %w", ErrNotBundle, err)
		}

		return nil, fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = reader.Close()
	}()

	var found *zip.File

	for _, file := range reader.File {
		if file.FileInfo().IsDir() || path.Base(file.Name) != bundledInfoName {
			continue
		}

		if found == nil || depth(file.Name) < depth(found.Name) {
			found = file
		}
	}

	if found == nil {
		return nil, fmt.Errorf("%w: no %s inside", ErrNotBundle, bundledInfoName)
	}

	rc, err := found.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", found.Name, err)
	}

	defer func() {
		_ = rc.Close()
	}()

	contents, err := io.ReadAll(io.LimitReader(rc, maxInfoSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", found.Name, err)
	}

	return metadata.Parse(contents)
}

func depth(name string) int {
	return strings.Count(strings.Trim(name, "/"), "/")
}
