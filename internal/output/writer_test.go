package output

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/valpere/tilemani/internal"
	"github.com/valpere/tilemani/internal/graph"
	"github.com/valpere/tilemani/internal/tile"
)

var testIndex = tile.Index{X: 8301, Y: 5639, Z: 14}

func testRecord(stats map[string]float64) *TileRecord {
	return &TileRecord{
		X: 8301, Y: 5639, Z: 14,
		LatDeg: 48.8, LngDeg: 2.39501953125,
		CentroidLatDeg: 48.79, CentroidLngDeg: 2.40,
		Radius: 805,
		City:   "paris", Style: "StamenTonerLines",
		RetrievedRoad: stats != nil,
		RetrievedBldg: true,
		RunID:         "run-1",
		Stats:         stats,
	}
}

func TestFormatCSV(t *testing.T) {
	data, err := FormatCSV(testRecord(map[string]float64{"n": 12, "circuity_avg": 1.05}))
	if err != nil {
		t.Fatalf("FormatCSV failed: %v", err)
	}

	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected header and one row, got %d rows", len(rows))
	}

	header, row := rows[0], rows[1]
	if len(header) != len(recordColumns)+2 {
		t.Fatalf("Expected %d columns, got %d", len(recordColumns)+2, len(header))
	}
	// stats follow the fixed columns in sorted order
	if header[len(header)-2] != "circuity_avg" || header[len(header)-1] != "n" {
		t.Errorf("Expected sorted stat columns, got %v", header[len(recordColumns):])
	}

	values := make(map[string]string, len(header))
	for i, h := range header {
		values[h] = row[i]
	}

	tests := []struct {
		column string
		want   string
	}{
		{"x", "8301"},
		{"lng_deg", "2.39501953125"},
		{"radius", "805"},
		{"city", "paris"},
		{"retrieved_road", "true"},
		{"h3_cell", ""},
		{"n", "12"},
		{"circuity_avg", "1.05"},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			if values[tt.column] != tt.want {
				t.Errorf("Expected %s = %q, got %q", tt.column, tt.want, values[tt.column])
			}
		})
	}
}

func TestStringProperties(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}})
	f.Properties["building"] = "yes"
	f.Properties["osmid"] = int64(500)
	f.Properties["levels"] = 3.5
	f.Properties["missing"] = nil
	fc.Append(f)

	out := StringProperties(fc)
	for k, v := range out.Features[0].Properties {
		if _, ok := v.(string); !ok {
			t.Errorf("Expected property %s to be a string, got %T", k, v)
		}
	}
	if out.Features[0].Properties["osmid"] != "500" {
		t.Errorf("Expected osmid \"500\", got %v", out.Features[0].Properties["osmid"])
	}
	if _, ok := fc.Features[0].Properties["osmid"].(int64); !ok {
		t.Errorf("Expected input collection to be left unchanged")
	}
}

func TestTileWriterArtifacts(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewTileWriter(fs, "/out/paris", zerolog.Nop())

	g := graph.New()
	g.AddNode(graph.Node{ID: 1, Lat: 48.8, Lng: 2.4, StreetCount: 1})
	g.AddNode(graph.Node{ID: 2, Lat: 48.801, Lng: 2.4, StreetCount: 1})
	g.AddEdge(graph.Edge{From: 1, To: 2, OSMIDs: []int64{100}, Highway: []string{"residential"}, Length: 111})

	fc := geojson.NewFeatureCollection()
	bldg := geojson.NewFeature(orb.Polygon{{{2.4, 48.8}, {2.401, 48.8}, {2.401, 48.801}, {2.4, 48.8}}})
	bldg.Properties["osmid"] = 42
	fc.Append(bldg)

	tests := []struct {
		name  string
		write func() (string, error)
		want  string
	}{
		{"graphml", func() (string, error) { return w.WriteGraphML(testIndex, g) }, "/out/paris/RoadGraph/14/8301_5639_14.graphml"},
		{"geojson", func() (string, error) { return w.WriteGeoJSON(testIndex, fc) }, "/out/paris/BldgGeom/14/8301_5639_14.geojson"},
		{"csv", func() (string, error) { return w.WriteCSV(testIndex, testRecord(nil)) }, "/out/paris/RoadStat/8301_5639_14.csv"},
		{"mvt", func() (string, error) { return w.WriteMVT(testIndex, []byte{0x1a}) }, "/out/paris/VectorTile/14/8301_5639_14.mvt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := tt.write()
			if err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			if path != tt.want {
				t.Errorf("Expected path %s, got %s", tt.want, path)
			}
			if ok, _ := afero.Exists(fs, path); !ok {
				t.Errorf("Expected %s to exist", path)
			}
		})
	}

	data, err := afero.ReadFile(fs, w.GeoJSONPath(testIndex))
	if err != nil {
		t.Fatalf("Failed to read geojson: %v", err)
	}
	parsed, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		t.Fatalf("Failed to parse geojson: %v", err)
	}
	if parsed.Features[0].Properties["osmid"] != "42" {
		t.Errorf("Expected osmid \"42\", got %v", parsed.Features[0].Properties["osmid"])
	}
}

func TestTileWriterReadOnly(t *testing.T) {
	w := NewTileWriter(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/out", zerolog.Nop())

	_, err := w.WriteCSV(testIndex, testRecord(nil))
	if !internal.IsCode(err, internal.ErrorCodePersistence) {
		t.Errorf("Expected PERSISTENCE_FAILURE, got %v", err)
	}
}

func TestBatchWriterVersions(t *testing.T) {
	for _, format := range []Format{FormatBSON, FormatJSON} {
		t.Run(format.String(), func(t *testing.T) {
			fs := afero.NewMemMapFs()
			w, err := NewBatchWriter(fs, "/records", "paris-StamenTonerLines-14", format, zerolog.Nop())
			if err != nil {
				t.Fatalf("NewBatchWriter failed: %v", err)
			}

			doc := &BatchDocument{
				City:      "paris",
				Style:     "StamenTonerLines",
				Zoom:      "14",
				RunID:     "run-1",
				CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
				Records: []TileRecord{
					*testRecord(map[string]float64{"n": 12, "m": 30}),
					*testRecord(nil),
				},
			}

			first, err := w.Write(doc)
			if err != nil {
				t.Fatalf("First write failed: %v", err)
			}
			second, err := w.Write(doc)
			if err != nil {
				t.Fatalf("Second write failed: %v", err)
			}

			if want := "/records/paris-StamenTonerLines-14-ver0." + format.Extension(); first != want {
				t.Errorf("Expected %s, got %s", want, first)
			}
			if want := "/records/paris-StamenTonerLines-14-ver1." + format.Extension(); second != want {
				t.Errorf("Expected %s, got %s", want, second)
			}

			back, err := w.Read(first)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if back.Version != 0 {
				t.Errorf("Expected version 0 in first file, got %d", back.Version)
			}
			if len(back.Records) != 2 {
				t.Fatalf("Expected 2 records, got %d", len(back.Records))
			}
			if back.Records[0].Stats["n"] != 12 {
				t.Errorf("Expected stat n = 12, got %v", back.Records[0].Stats)
			}
			if len(back.Records[1].Stats) != 0 {
				t.Errorf("Expected no stats without a road layer, got %v", back.Records[1].Stats)
			}
			if back.Records[0].X != 8301 || back.Records[0].City != "paris" {
				t.Errorf("Expected record fields to round trip, got %+v", back.Records[0])
			}
		})
	}
}

func TestBatchWriterSkipsExisting(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/records/la-s-14-ver0.bson", []byte("keep"), 0o644)
	afero.WriteFile(fs, "/records/la-s-14-ver1.bson", []byte("keep"), 0o644)

	w, _ := NewBatchWriter(fs, "/records", "la-s-14", FormatBSON, zerolog.Nop())
	path, err := w.Write(&BatchDocument{City: "la"})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if path != "/records/la-s-14-ver2.bson" {
		t.Errorf("Expected ver2, got %s", path)
	}

	kept, _ := afero.ReadFile(fs, "/records/la-s-14-ver0.bson")
	if string(kept) != "keep" {
		t.Errorf("Expected existing batch to be left untouched")
	}
}

func TestRecordJSONIsFlat(t *testing.T) {
	data, err := json.Marshal(testRecord(map[string]float64{"n": 3}))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if m["n"] != 3.0 {
		t.Errorf("Expected stat n at top level, got %v", m["n"])
	}
	if m["city"] != "paris" {
		t.Errorf("Expected city paris, got %v", m["city"])
	}
}

func TestNewBatchWriterRejectsFormat(t *testing.T) {
	_, err := NewBatchWriter(afero.NewMemMapFs(), "/r", "s", Format("pkl"), zerolog.Nop())
	if !internal.IsCode(err, internal.ErrorCodeConfig) {
		t.Errorf("Expected CONFIG_ERROR, got %v", err)
	}
}
