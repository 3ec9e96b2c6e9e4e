// internal/output/types.go - Output handling types
package output

import (
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
)

// Format represents a batch serialization format
type Format string

const (
	FormatBSON Format = "bson"
	FormatJSON Format = "json"
)

// String returns a string representation of the format
func (f Format) String() string {
	return string(f)
}

// IsValid checks if the format is supported
func (f Format) IsValid() bool {
	switch f {
	case FormatBSON, FormatJSON:
		return true
	default:
		return false
	}
}

// Extension returns the file extension for the format
func (f Format) Extension() string {
	return string(f)
}

// TileRecord is the per-tile summary persisted in the batch and the RoadStat CSV.
// Stats is present only when the road layer was retrieved.
type TileRecord struct {
	X              int                `bson:"x"`
	Y              int                `bson:"y"`
	Z              int                `bson:"z"`
	LatDeg         float64            `bson:"lat_deg"`
	LngDeg         float64            `bson:"lng_deg"`
	CentroidLatDeg float64            `bson:"centroid_lat_deg"`
	CentroidLngDeg float64            `bson:"centroid_lng_deg"`
	Radius         float64            `bson:"radius"`
	City           string             `bson:"city"`
	Style          string             `bson:"style"`
	RetrievedRoad  bool               `bson:"retrieved_road"`
	RetrievedBldg  bool               `bson:"retrieved_bldg"`
	RunID          string             `bson:"run_id,omitempty"`
	H3Cell         string             `bson:"h3_cell,omitempty"`
	Address        string             `bson:"address,omitempty"`
	Stats          map[string]float64 `bson:",inline"`
}

// recordColumns is the fixed column order of a flattened record
var recordColumns = []string{
	"x", "y", "z",
	"lat_deg", "lng_deg", "centroid_lat_deg", "centroid_lng_deg",
	"radius", "city", "style",
	"retrieved_road", "retrieved_bldg",
	"run_id", "h3_cell", "address",
}

// Flatten returns the record as one flat map with statistics merged in
func (r *TileRecord) Flatten() map[string]interface{} {
	out := map[string]interface{}{
		"x":                r.X,
		"y":                r.Y,
		"z":                r.Z,
		"lat_deg":          r.LatDeg,
		"lng_deg":          r.LngDeg,
		"centroid_lat_deg": r.CentroidLatDeg,
		"centroid_lng_deg": r.CentroidLngDeg,
		"radius":           r.Radius,
		"city":             r.City,
		"style":            r.Style,
		"retrieved_road":   r.RetrievedRoad,
		"retrieved_bldg":   r.RetrievedBldg,
		"run_id":           r.RunID,
		"h3_cell":          r.H3Cell,
		"address":          r.Address,
	}
	for k, v := range r.Stats {
		out[k] = v
	}
	return out
}

// Columns returns the fixed columns followed by the sorted statistic names
func (r *TileRecord) Columns() []string {
	stats := make([]string, 0, len(r.Stats))
	for k := range r.Stats {
		stats = append(stats, k)
	}
	sort.Strings(stats)

	cols := make([]string, 0, len(recordColumns)+len(stats))
	cols = append(cols, recordColumns...)
	return append(cols, stats...)
}

// MarshalJSON writes the flattened record
func (r TileRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Flatten())
}

// BatchDocument is the top-level document of a batch file
type BatchDocument struct {
	City      string       `bson:"city" json:"city"`
	Style     string       `bson:"style" json:"style"`
	Zoom      string       `bson:"zoom" json:"zoom"`
	RunID     string       `bson:"run_id" json:"run_id"`
	Version   int          `bson:"version" json:"version"`
	CreatedAt time.Time    `bson:"created_at" json:"created_at"`
	Records   []TileRecord `bson:"records" json:"records"`
}

// Summary returns a one-line description of the batch
func (d *BatchDocument) Summary() string {
	var road, bldg int
	for _, r := range d.Records {
		if r.RetrievedRoad {
			road++
		}
		if r.RetrievedBldg {
			bldg++
		}
	}
	return fmt.Sprintf("%d records (%d with roads, %d with buildings)", len(d.Records), road, bldg)
}
