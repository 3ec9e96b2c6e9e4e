// internal/render/rasterizer.go - Per-tile style fan-out and image persistence
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/valpere/tilemani/internal"
	"github.com/valpere/tilemani/internal/graph"
	"github.com/valpere/tilemani/internal/tile"
	"go.uber.org/multierr"
)

// Artifact describes one written image
type Artifact struct {
	Layer Layer
	Style string
	Path  string
}

// Rasterizer renders a tile in every style of a StyleSet and writes the images
// under {root}/{style_name}/{z}/{x}_{y}_{z}.{format}
type Rasterizer struct {
	renderer *Renderer
	fs       afero.Fs
	root     string
	format   string
	logger   zerolog.Logger
}

// NewRasterizer creates a rasterizer writing into root. format is "png" or "jpg".
func NewRasterizer(renderer *Renderer, fs afero.Fs, root, format string, logger zerolog.Logger) *Rasterizer {
	if format == "" {
		format = "png"
	}
	return &Rasterizer{
		renderer: renderer,
		fs:       fs,
		root:     root,
		format:   format,
		logger:   logger.With().Str("component", "rasterizer").Logger(),
	}
}

// Path returns the image path of a tile for a style directory
func (r *Rasterizer) Path(styleName string, idx tile.Index) string {
	return filepath.Join(r.root, styleName, strconv.Itoa(idx.Z), idx.Filename(r.format))
}

// RasterizeTile writes the road, building and combined images for every
// style. Road images are written when g is present, building and combined
// images when b has features; the combined image shows buildings alone when
// g is absent. Each distinct style name is written once. Failed images are
// skipped and reported together in the returned error.
func (r *Rasterizer) RasterizeTile(ctx context.Context, idx tile.Index, g *graph.Graph, b *geojson.FeatureCollection, bbox orb.Bound, set StyleSet) ([]Artifact, error) {
	hasRoad := !g.Empty()
	hasBldg := b != nil && len(b.Features) > 0
	if !hasRoad && !hasBldg {
		return nil, nil
	}

	var (
		artifacts []Artifact
		errs      error
	)
	seen := make(map[string]bool)

	for _, style := range set {
		var layers []Layer
		if hasRoad {
			layers = append(layers, LayerRoad)
		}
		if hasBldg {
			layers = append(layers, LayerBuilding, LayerRoadBuilding)
		}

		for _, layer := range layers {
			if err := ctx.Err(); err != nil {
				return artifacts, multierr.Append(errs, err)
			}

			name := style.Name(layer)
			if seen[name] {
				continue
			}
			seen[name] = true

			path, err := r.write(g, b, bbox, style, layer, idx, name)
			if err != nil {
				r.logger.Warn().Err(err).Str("tile", idx.String()).Str("style", name).Msg("Image skipped")
				errs = multierr.Append(errs, err)
				continue
			}
			artifacts = append(artifacts, Artifact{Layer: layer, Style: name, Path: path})
		}
	}

	r.logger.Debug().Str("tile", idx.String()).Int("images", len(artifacts)).Msg("Tile rasterized")
	return artifacts, errs
}

func (r *Rasterizer) write(g *graph.Graph, b *geojson.FeatureCollection, bbox orb.Bound, style StyleConfig, layer Layer, idx tile.Index, name string) (string, error) {
	img, err := r.renderer.Render(g, b, bbox, style, layer)
	if err != nil {
		return "", internal.NewError(internal.ErrorCodeRaster, fmt.Sprintf("failed to render %s", name), err)
	}

	var buf bytes.Buffer
	if err := encode(&buf, img, r.format); err != nil {
		return "", internal.NewError(internal.ErrorCodeRaster, fmt.Sprintf("failed to encode %s", name), err)
	}

	path := r.Path(name, idx)
	if err := r.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", internal.NewError(internal.ErrorCodePersistence, "failed to create image directory", err)
	}
	if err := afero.WriteFile(r.fs, path, buf.Bytes(), 0o644); err != nil {
		return "", internal.NewError(internal.ErrorCodePersistence, fmt.Sprintf("failed to write %s", path), err)
	}
	return path, nil
}

func encode(buf *bytes.Buffer, img image.Image, format string) error {
	switch format {
	case "png":
		return png.Encode(buf, img)
	case "jpg", "jpeg":
		return jpeg.Encode(buf, img, &jpeg.Options{Quality: 95})
	default:
		return fmt.Errorf("unsupported image format: %s", format)
	}
}
