// internal/tile/lister.go - Enumerates reference rasters in an input directory
package tile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/valpere/tilemani/internal"
)

// Entry is a reference raster and the tile it names
type Entry struct {
	Path  string
	Index Index
}

// Lister discovers tiles from the file names of a directory
type Lister struct {
	fs     afero.Fs
	logger zerolog.Logger
}

// NewLister creates a lister over the given filesystem
func NewLister(fs afero.Fs, logger zerolog.Logger) *Lister {
	return &Lister{fs: fs, logger: logger}
}

// List returns the tiles in dir in enumeration order. A missing directory is
// a configuration error; entries that do not parse as x_y_z are skipped.
func (l *Lister) List(dir string) ([]Entry, error) {
	info, err := l.fs.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, internal.NewError(internal.ErrorCodeConfig,
				fmt.Sprintf("input directory does not exist: %s", dir), err)
		}
		return nil, internal.NewError(internal.ErrorCodeConfig,
			fmt.Sprintf("cannot access input directory: %s", dir), err)
	}
	if !info.IsDir() {
		return nil, internal.NewError(internal.ErrorCodeConfig,
			fmt.Sprintf("input path is not a directory: %s", dir), nil)
	}

	infos, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeConfig,
			fmt.Sprintf("failed to read input directory: %s", dir), err)
	}

	entries := make([]Entry, 0, len(infos))
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}

		path := filepath.Join(dir, fi.Name())
		idx, err := ParseFilename(path)
		if err != nil {
			l.logger.Debug().Str("path", path).Err(err).Msg("skipping non-tile file")
			continue
		}

		entries = append(entries, Entry{Path: path, Index: idx})
	}

	return entries, nil
}
