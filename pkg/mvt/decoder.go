// pkg/mvt/decoder.go - Mapbox Vector Tile decoding
package mvt

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/valpere/tilemani/internal/tile"
)

// DecodedTile holds the layers of a vector tile in WGS84 coordinates
type DecodedTile struct {
	Index  tile.Index
	Extent uint32
	Layers map[string]*geojson.FeatureCollection
}

// gzip magic
var gzipHeader = []byte{0x1f, 0x8b}

// Decode unmarshals a vector tile written for idx and projects its features
// back to longitude and latitude. Gzipped input is accepted.
func Decode(data []byte, idx tile.Index) (*DecodedTile, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty tile data")
	}

	var (
		layers mvt.Layers
		err    error
	)
	if bytes.HasPrefix(data, gzipHeader) {
		layers, err = mvt.UnmarshalGzipped(data)
	} else {
		layers, err = mvt.Unmarshal(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal MVT data: %w", err)
	}

	decoded := &DecodedTile{
		Index:  idx,
		Extent: DefaultExtent,
	}
	if len(layers) > 0 {
		decoded.Extent = layers[0].Extent
	}

	layers.ProjectToWGS84(idx.MapTile())
	decoded.Layers = layers.ToFeatureCollections()
	return decoded, nil
}

// LayerNames returns the layer names in sorted order
func (dt *DecodedTile) LayerNames() []string {
	names := make([]string, 0, len(dt.Layers))
	for name := range dt.Layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FeatureCount returns the total number of features across all layers
func (dt *DecodedTile) FeatureCount() int {
	count := 0
	for _, fc := range dt.Layers {
		count += len(fc.Features)
	}
	return count
}

// LayerFeatureCount returns the number of features in one layer
func (dt *DecodedTile) LayerFeatureCount(name string) int {
	if fc, ok := dt.Layers[name]; ok {
		return len(fc.Features)
	}
	return 0
}

// HasLayer checks if the tile contains a layer
func (dt *DecodedTile) HasLayer(name string) bool {
	_, ok := dt.Layers[name]
	return ok
}

// IsEmpty returns true if the tile contains no features
func (dt *DecodedTile) IsEmpty() bool {
	return dt.FeatureCount() == 0
}
