// pkg/mvt/mvt_test.go - Unit tests for vector tile encoding and decoding
package mvt

import (
	"math"
	"testing"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/valpere/tilemani/internal/graph"
	"github.com/valpere/tilemani/internal/tile"
)

var testIndex = tile.Index{X: 8301, Y: 5639, Z: 14}

// lerp returns the point at fractions (fx, fy) of the tile bound
func lerp(b orb.Bound, fx, fy float64) orb.Point {
	return orb.Point{
		b.Min[0] + fx*(b.Max[0]-b.Min[0]),
		b.Min[1] + fy*(b.Max[1]-b.Min[1]),
	}
}

func testLayers() (*graph.Graph, *geojson.FeatureCollection) {
	b := testIndex.Bound()

	g := graph.New()
	west, east := lerp(b, 0.2, 0.5), lerp(b, 0.8, 0.5)
	g.AddNode(graph.Node{ID: 1, Lng: west[0], Lat: west[1]})
	g.AddNode(graph.Node{ID: 2, Lng: east[0], Lat: east[1]})
	g.AddEdge(graph.Edge{From: 1, To: 2, OSMIDs: []int64{100}, Highway: []string{"residential"}, Name: []string{"Rue A"}, Length: 1000})
	g.AddEdge(graph.Edge{From: 2, To: 1, OSMIDs: []int64{100}, Highway: []string{"residential"}, Name: []string{"Rue A"}, Length: 1000, Reversed: true})

	fc := geojson.NewFeatureCollection()
	ring := orb.Ring{lerp(b, 0.3, 0.2), lerp(b, 0.4, 0.2), lerp(b, 0.4, 0.3), lerp(b, 0.3, 0.3), lerp(b, 0.3, 0.2)}
	f := geojson.NewFeature(orb.Polygon{ring})
	f.Properties["building"] = "yes"
	f.Properties["levels"] = nil
	fc.Append(f)

	return g, fc
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	g, fc := testLayers()

	data, err := EncodeTile(testIndex, g, fc)
	if err != nil {
		t.Fatalf("EncodeTile failed: %v", err)
	}

	decoded, err := Decode(data, testIndex)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.Extent != DefaultExtent {
		t.Errorf("Expected extent %d, got %d", DefaultExtent, decoded.Extent)
	}
	if names := decoded.LayerNames(); len(names) != 2 || names[0] != LayerBuildings || names[1] != LayerRoads {
		t.Errorf("Expected layers [buildings roads], got %v", names)
	}
	if n := decoded.LayerFeatureCount(LayerRoads); n != 1 {
		t.Errorf("Expected one road per undirected edge, got %d", n)
	}
	if n := decoded.LayerFeatureCount(LayerBuildings); n != 1 {
		t.Errorf("Expected 1 building, got %d", n)
	}

	road := decoded.Layers[LayerRoads].Features[0]
	if road.Properties["highway"] != "residential" {
		t.Errorf("Expected highway residential, got %v", road.Properties["highway"])
	}
	if road.Properties["name"] != "Rue A" {
		t.Errorf("Expected name Rue A, got %v", road.Properties["name"])
	}

	// one tile unit at z14 is well under 1e-4 degrees
	line, ok := road.Geometry.(orb.LineString)
	if !ok {
		t.Fatalf("Expected LineString geometry, got %T", road.Geometry)
	}
	west := g.Nodes[1].Point()
	if math.Abs(line[0][0]-west[0]) > 1e-4 || math.Abs(line[0][1]-west[1]) > 1e-4 {
		t.Errorf("Expected road to start near %v, got %v", west, line[0])
	}

	bldg := decoded.Layers[LayerBuildings].Features[0]
	if _, ok := bldg.Properties["levels"]; ok {
		t.Errorf("Expected nil properties to be dropped")
	}
	if !decoded.Index.Bound().Contains(bldg.Geometry.Bound().Center()) {
		t.Errorf("Expected building inside the tile")
	}
}

func TestEncodeSingleLayer(t *testing.T) {
	g, fc := testLayers()

	tests := []struct {
		name      string
		g         *graph.Graph
		fc        *geojson.FeatureCollection
		wantLayer string
	}{
		{"roads only", g, nil, LayerRoads},
		{"buildings only", nil, fc, LayerBuildings},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeTile(testIndex, tt.g, tt.fc)
			if err != nil {
				t.Fatalf("EncodeTile failed: %v", err)
			}
			decoded, err := Decode(data, testIndex)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if len(decoded.Layers) != 1 || !decoded.HasLayer(tt.wantLayer) {
				t.Errorf("Expected only layer %s, got %v", tt.wantLayer, decoded.LayerNames())
			}
		})
	}
}

func TestEncodeNothing(t *testing.T) {
	if _, err := EncodeTile(testIndex, nil, geojson.NewFeatureCollection()); err == nil {
		t.Error("Expected error when both layers are absent")
	}
}

func TestDecodeEmptyData(t *testing.T) {
	_, err := Decode([]byte{}, testIndex)
	if err == nil {
		t.Fatal("Expected error for empty data")
	}
	if err.Error() != "empty tile data" {
		t.Errorf("Expected 'empty tile data' error, got %s", err.Error())
	}
}

func TestMerge(t *testing.T) {
	g, fc := testLayers()
	data, err := EncodeTile(testIndex, g, fc)
	if err != nil {
		t.Fatalf("EncodeTile failed: %v", err)
	}
	decoded, err := Decode(data, testIndex)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	tests := []struct {
		name string
		opts ConversionOptions
		want int
	}{
		{"all layers", ConversionOptions{}, 2},
		{"roads only", ConversionOptions{LayerFilter: []string{LayerRoads}}, 1},
		{"unknown layer", ConversionOptions{LayerFilter: []string{"water"}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged := decoded.Merge(tt.opts)
			if len(merged.Features) != tt.want {
				t.Errorf("Expected %d features, got %d", tt.want, len(merged.Features))
			}
			for _, f := range merged.Features {
				if _, ok := f.Properties[LayerProperty]; !ok {
					t.Errorf("Expected %s property on every feature", LayerProperty)
				}
			}
		})
	}

	out, err := decoded.GeoJSON(ConversionOptions{PropertyFilter: []string{"highway"}}, false)
	if err != nil {
		t.Fatalf("GeoJSON failed: %v", err)
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(out, &parsed); err != nil {
		t.Fatalf("Failed to parse output: %v", err)
	}
	if parsed["type"] != "FeatureCollection" {
		t.Errorf("Expected FeatureCollection, got %v", parsed["type"])
	}
}
