// internal/output/writer.go - Per-tile artifact and batch file writers
package output

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/valpere/tilemani/internal"
	"github.com/valpere/tilemani/internal/graph"
	"github.com/valpere/tilemani/internal/tile"
)

// Artifact directories under the city output root
const (
	DirRoadGraph  = "RoadGraph"
	DirBldgGeom   = "BldgGeom"
	DirRoadStat   = "RoadStat"
	DirVectorTile = "VectorTile"
)

// TileWriter persists the non-image artifacts of a tile under one city root
type TileWriter struct {
	fs     afero.Fs
	root   string
	logger zerolog.Logger
	now    func() time.Time
}

// NewTileWriter creates a writer rooted at {images_root}/{city}
func NewTileWriter(fs afero.Fs, root string, logger zerolog.Logger) *TileWriter {
	return &TileWriter{
		fs:     fs,
		root:   root,
		logger: logger.With().Str("component", "writer").Logger(),
		now:    time.Now,
	}
}

// GraphMLPath returns {root}/RoadGraph/{z}/{x}_{y}_{z}.graphml
func (w *TileWriter) GraphMLPath(idx tile.Index) string {
	return filepath.Join(w.root, DirRoadGraph, strconv.Itoa(idx.Z), idx.Filename("graphml"))
}

// GeoJSONPath returns {root}/BldgGeom/{z}/{x}_{y}_{z}.geojson
func (w *TileWriter) GeoJSONPath(idx tile.Index) string {
	return filepath.Join(w.root, DirBldgGeom, strconv.Itoa(idx.Z), idx.Filename("geojson"))
}

// CSVPath returns {root}/RoadStat/{x}_{y}_{z}.csv
func (w *TileWriter) CSVPath(idx tile.Index) string {
	return filepath.Join(w.root, DirRoadStat, idx.Filename("csv"))
}

// MVTPath returns {root}/VectorTile/{z}/{x}_{y}_{z}.mvt
func (w *TileWriter) MVTPath(idx tile.Index) string {
	return filepath.Join(w.root, DirVectorTile, strconv.Itoa(idx.Z), idx.Filename("mvt"))
}

// WriteGraphML writes the road graph
func (w *TileWriter) WriteGraphML(idx tile.Index, g *graph.Graph) (string, error) {
	var buf bytes.Buffer
	if err := g.WriteGraphML(&buf, w.now()); err != nil {
		return "", internal.NewError(internal.ErrorCodePersistence, "failed to encode graphml", err)
	}
	path := w.GraphMLPath(idx)
	return path, w.writeFile(path, buf.Bytes())
}

// WriteGeoJSON writes the building collection with every property as a string
func (w *TileWriter) WriteGeoJSON(idx tile.Index, fc *geojson.FeatureCollection) (string, error) {
	data, err := StringProperties(fc).MarshalJSON()
	if err != nil {
		return "", internal.NewError(internal.ErrorCodePersistence, "failed to encode geojson", err)
	}
	path := w.GeoJSONPath(idx)
	return path, w.writeFile(path, data)
}

// WriteCSV writes the record as a single-row CSV
func (w *TileWriter) WriteCSV(idx tile.Index, rec *TileRecord) (string, error) {
	data, err := FormatCSV(rec)
	if err != nil {
		return "", internal.NewError(internal.ErrorCodePersistence, "failed to encode csv", err)
	}
	path := w.CSVPath(idx)
	return path, w.writeFile(path, data)
}

// WriteMVT writes an encoded vector tile
func (w *TileWriter) WriteMVT(idx tile.Index, data []byte) (string, error) {
	path := w.MVTPath(idx)
	return path, w.writeFile(path, data)
}

func (w *TileWriter) writeFile(path string, data []byte) error {
	if err := w.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return internal.NewError(internal.ErrorCodePersistence, "failed to create directory", err)
	}
	if err := afero.WriteFile(w.fs, path, data, 0o644); err != nil {
		return internal.NewError(internal.ErrorCodePersistence, fmt.Sprintf("failed to write %s", path), err)
	}
	w.logger.Debug().Str("path", path).Int("bytes", len(data)).Msg("Artifact written")
	return nil
}

// BatchWriter persists batch documents as {dir}/{stem}-ver{N}.{ext}, picking
// the first N whose file does not exist yet
type BatchWriter struct {
	fs        afero.Fs
	dir       string
	stem      string
	format    Format
	formatter Formatter
	logger    zerolog.Logger
}

// NewBatchWriter creates a batch writer
func NewBatchWriter(fs afero.Fs, dir, stem string, format Format, logger zerolog.Logger) (*BatchWriter, error) {
	formatter, err := NewFormatter(format)
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeConfig, "invalid batch format", err)
	}
	return &BatchWriter{
		fs:        fs,
		dir:       dir,
		stem:      stem,
		format:    format,
		formatter: formatter,
		logger:    logger.With().Str("component", "batch_writer").Logger(),
	}, nil
}

// VersionPath returns the batch path for version n
func (w *BatchWriter) VersionPath(n int) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-ver%d.%s", w.stem, n, w.format.Extension()))
}

// Write persists doc under the next free version and returns its path.
// Existing batch files are never overwritten.
func (w *BatchWriter) Write(doc *BatchDocument) (string, error) {
	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return "", internal.NewError(internal.ErrorCodePersistence, "failed to create records directory", err)
	}

	for n := 0; ; n++ {
		path := w.VersionPath(n)
		f, err := w.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			w.logger.Debug().Str("path", path).Msg("Batch version taken")
			continue
		}
		if err != nil {
			return "", internal.NewError(internal.ErrorCodePersistence, "failed to create batch file", err)
		}

		doc.Version = n
		data, err := w.formatter.Format(doc)
		if err == nil {
			_, err = io.Copy(f, bytes.NewReader(data))
		}
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			_ = w.fs.Remove(path)
			return "", internal.NewError(internal.ErrorCodePersistence, "failed to write batch file", err)
		}

		w.logger.Info().Str("path", path).Str("summary", doc.Summary()).Msg("Batch written")
		return path, nil
	}
}

// Read loads a batch file written by Write
func (w *BatchWriter) Read(path string) (*BatchDocument, error) {
	data, err := afero.ReadFile(w.fs, path)
	if err != nil {
		return nil, err
	}
	return w.formatter.Parse(data)
}
