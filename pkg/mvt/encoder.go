// pkg/mvt/encoder.go - Mapbox Vector Tile encoding of road and building layers
package mvt

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/simplify"
	"github.com/spf13/cast"
	"github.com/valpere/tilemani/internal/graph"
	"github.com/valpere/tilemani/internal/tile"
)

// Layer names written into every tile
const (
	LayerRoads     = "roads"
	LayerBuildings = "buildings"
)

// DefaultExtent is the tile coordinate range used by Mapbox GL
const DefaultExtent = 4096

// Encoder builds vector tiles from a road graph and building footprints
type Encoder struct {
	extent    uint32
	tolerance float64
}

// NewEncoder creates an encoder with the default extent and a one unit
// simplification tolerance
func NewEncoder() *Encoder {
	return &Encoder{
		extent:    DefaultExtent,
		tolerance: 1.0,
	}
}

// NewEncoderWithExtent creates an encoder with a custom extent
func NewEncoderWithExtent(extent uint32) *Encoder {
	return &Encoder{
		extent:    extent,
		tolerance: 1.0,
	}
}

// EncodeTile encodes the layers of idx with the default encoder
func EncodeTile(idx tile.Index, roads *graph.Graph, buildings *geojson.FeatureCollection) ([]byte, error) {
	return NewEncoder().Encode(idx.MapTile(), roads, buildings)
}

// Encode projects both layers into tile space, clips them to the tile,
// simplifies them and marshals the result without compression. Either
// layer may be nil; a tile with no layers is an error.
func (e *Encoder) Encode(t maptile.Tile, roads *graph.Graph, buildings *geojson.FeatureCollection) ([]byte, error) {
	var layers mvt.Layers

	if !roads.Empty() {
		layers = append(layers, e.newLayer(LayerRoads, roadFeatures(roads)))
	}
	if buildings != nil && len(buildings.Features) > 0 {
		layers = append(layers, e.newLayer(LayerBuildings, buildingFeatures(buildings)))
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("no layers to encode for tile %d/%d/%d", t.Z, t.X, t.Y)
	}

	layers.ProjectToTile(t)
	layers.Clip(orb.Bound{Max: orb.Point{float64(e.extent), float64(e.extent)}})
	layers.Simplify(simplify.DouglasPeucker(e.tolerance))
	layers.RemoveEmpty(e.tolerance, e.tolerance)

	data, err := mvt.Marshal(layers)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal vector tile: %w", err)
	}
	return data, nil
}

func (e *Encoder) newLayer(name string, fc *geojson.FeatureCollection) *mvt.Layer {
	layer := mvt.NewLayer(name, fc)
	layer.Extent = e.extent
	return layer
}

// roadFeatures emits one line per undirected edge
func roadFeatures(g *graph.Graph) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, edge := range g.UndirectedEdges() {
		line := edge.Geometry
		if len(line) < 2 {
			from, to := g.Nodes[edge.From], g.Nodes[edge.To]
			if from == nil || to == nil {
				continue
			}
			line = orb.LineString{from.Point(), to.Point()}
		}

		f := geojson.NewFeature(line)
		f.Properties["highway"] = edge.PrimaryHighway()
		f.Properties["length"] = edge.Length
		f.Properties["oneway"] = edge.Oneway
		if len(edge.OSMIDs) > 0 {
			f.Properties["osmid"] = edge.OSMIDs[0]
		}
		if len(edge.Name) > 0 {
			f.Properties["name"] = edge.Name[0]
		}
		fc.Append(f)
	}
	return fc
}

// buildingFeatures copies footprints with properties reduced to the value
// types a vector tile can hold
func buildingFeatures(in *geojson.FeatureCollection) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, src := range in.Features {
		f := geojson.NewFeature(orb.Clone(src.Geometry))
		for k, v := range src.Properties {
			if v = tileValue(v); v != nil {
				f.Properties[k] = v
			}
		}
		fc.Append(f)
	}
	return fc
}

func tileValue(v interface{}) interface{} {
	switch v := v.(type) {
	case nil:
		return nil
	case string, bool, float64, float32, int, int64, int32, uint64, uint32:
		return v
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}
