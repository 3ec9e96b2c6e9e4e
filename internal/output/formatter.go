// internal/output/formatter.go - Output formatting implementation
package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
)

// Formatter serializes a batch document
type Formatter interface {
	Format(doc *BatchDocument) ([]byte, error)
	Parse(data []byte) (*BatchDocument, error)
	ContentType() string
}

// BSONFormatter formats batches as a single BSON document
type BSONFormatter struct{}

// Format encodes the batch as BSON
func (BSONFormatter) Format(doc *BatchDocument) ([]byte, error) {
	return bson.Marshal(doc)
}

// Parse decodes a BSON batch
func (BSONFormatter) Parse(data []byte) (*BatchDocument, error) {
	var doc BatchDocument
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ContentType returns the MIME type for BSON
func (BSONFormatter) ContentType() string {
	return "application/bson"
}

// JSONFormatter formats batches as JSON with flattened records
type JSONFormatter struct {
	pretty bool
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(pretty bool) *JSONFormatter {
	return &JSONFormatter{pretty: pretty}
}

// Format encodes the batch as JSON
func (f *JSONFormatter) Format(doc *BatchDocument) ([]byte, error) {
	if f.pretty {
		return json.MarshalIndent(doc, "", "  ")
	}
	return json.Marshal(doc)
}

// Parse decodes a JSON batch. Keys outside the fixed record columns become stats.
func (f *JSONFormatter) Parse(data []byte) (*BatchDocument, error) {
	var raw struct {
		City      string                   `json:"city"`
		Style     string                   `json:"style"`
		Zoom      string                   `json:"zoom"`
		RunID     string                   `json:"run_id"`
		Version   int                      `json:"version"`
		CreatedAt time.Time                `json:"created_at"`
		Records   []map[string]interface{} `json:"records"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	doc := &BatchDocument{
		City:      raw.City,
		Style:     raw.Style,
		Zoom:      raw.Zoom,
		RunID:     raw.RunID,
		Version:   raw.Version,
		CreatedAt: raw.CreatedAt,
	}
	for _, m := range raw.Records {
		rec, err := recordFromMap(m)
		if err != nil {
			return nil, err
		}
		doc.Records = append(doc.Records, rec)
	}
	return doc, nil
}

// ContentType returns the MIME type for JSON
func (f *JSONFormatter) ContentType() string {
	return "application/json"
}

// NewFormatter creates a formatter for the batch format
func NewFormatter(format Format) (Formatter, error) {
	switch format {
	case FormatBSON:
		return BSONFormatter{}, nil
	case FormatJSON:
		return NewJSONFormatter(true), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func recordFromMap(m map[string]interface{}) (TileRecord, error) {
	var rec TileRecord
	var err error
	get := func(key string) interface{} { return m[key] }

	if rec.X, err = cast.ToIntE(get("x")); err != nil {
		return rec, fmt.Errorf("bad x: %w", err)
	}
	if rec.Y, err = cast.ToIntE(get("y")); err != nil {
		return rec, fmt.Errorf("bad y: %w", err)
	}
	if rec.Z, err = cast.ToIntE(get("z")); err != nil {
		return rec, fmt.Errorf("bad z: %w", err)
	}
	rec.LatDeg = cast.ToFloat64(get("lat_deg"))
	rec.LngDeg = cast.ToFloat64(get("lng_deg"))
	rec.CentroidLatDeg = cast.ToFloat64(get("centroid_lat_deg"))
	rec.CentroidLngDeg = cast.ToFloat64(get("centroid_lng_deg"))
	rec.Radius = cast.ToFloat64(get("radius"))
	rec.City = cast.ToString(get("city"))
	rec.Style = cast.ToString(get("style"))
	rec.RetrievedRoad = cast.ToBool(get("retrieved_road"))
	rec.RetrievedBldg = cast.ToBool(get("retrieved_bldg"))
	rec.RunID = cast.ToString(get("run_id"))
	rec.H3Cell = cast.ToString(get("h3_cell"))
	rec.Address = cast.ToString(get("address"))

	fixed := make(map[string]bool, len(recordColumns))
	for _, c := range recordColumns {
		fixed[c] = true
	}
	for k, v := range m {
		if fixed[k] {
			continue
		}
		if rec.Stats == nil {
			rec.Stats = make(map[string]float64)
		}
		rec.Stats[k] = cast.ToFloat64(v)
	}
	return rec, nil
}

// FormatCSV renders a record as a header row and one data row
func FormatCSV(rec *TileRecord) ([]byte, error) {
	cols := rec.Columns()
	flat := rec.Flatten()

	row := make([]string, len(cols))
	for i, c := range cols {
		row[i] = cast.ToString(flat[c])
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(cols); err != nil {
		return nil, err
	}
	if err := w.Write(row); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// StringProperties returns a copy of fc whose property values are all strings
func StringProperties(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		feature := geojson.NewFeature(f.Geometry)
		feature.ID = f.ID
		for k, v := range f.Properties {
			feature.Properties[k] = cast.ToString(v)
		}
		out.Append(feature)
	}
	return out
}
