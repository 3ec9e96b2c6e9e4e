// internal/tile/types.go - Tile index and geographic types
package tile

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/valpere/tilemani/internal"
)

// MaxZoom is the deepest zoom level accepted by ValidateCoordinates
const MaxZoom = 22

// Index identifies a slippy-map tile
type Index struct {
	X int `json:"x" bson:"x"`
	Y int `json:"y" bson:"y"`
	Z int `json:"z" bson:"z"`
}

// LatLng is a geographic point in degrees
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GeoCenter carries both representative points of a tile. Corner is what
// GeoFromTile returns and what records have historically used as the tile
// location; Centroid is the geometric center.
type GeoCenter struct {
	Corner   LatLng `json:"corner"`
	Centroid LatLng `json:"centroid"`
}

// Extent is the ground coverage of a tile in meters
type Extent struct {
	SizeY float64 `json:"size_y_meters"`
	SizeX float64 `json:"size_x_meters"`
}

// Location bundles everything the pipeline derives from a tile index
type Location struct {
	Index  Index     `json:"index"`
	Center GeoCenter `json:"center"`
	Extent Extent    `json:"extent"`
	Radius float64   `json:"radius"`
}

// NewIndex creates a validated tile index
func NewIndex(x, y, z int) (Index, error) {
	if err := ValidateCoordinates(z, x, y); err != nil {
		return Index{}, err
	}
	return Index{X: x, Y: y, Z: z}, nil
}

// String returns the "x_y_z" stem used for every per-tile artifact
func (i Index) String() string {
	return fmt.Sprintf("%d_%d_%d", i.X, i.Y, i.Z)
}

// Filename returns the artifact file name for the given extension
func (i Index) Filename(ext string) string {
	return i.String() + "." + ext
}

// MapTile converts the index to orb's tile type
func (i Index) MapTile() maptile.Tile {
	return maptile.New(uint32(i.X), uint32(i.Y), maptile.Zoom(i.Z))
}

// Bound returns the tile's geographic bounds
func (i Index) Bound() orb.Bound {
	return i.MapTile().Bound()
}

// Point returns the point in orb's lng/lat order
func (ll LatLng) Point() orb.Point {
	return orb.Point{ll.Lng, ll.Lat}
}

func (ll LatLng) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", ll.Lat, ll.Lng)
}

// Anchor returns the query center for the chosen convention
func (l Location) Anchor(a internal.Anchor) LatLng {
	if a == internal.AnchorCentroid {
		return l.Center.Centroid
	}
	return l.Center.Corner
}

// BBox returns the query and render bounding box around the chosen anchor
func (l Location) BBox(a internal.Anchor) orb.Bound {
	return BBoxFromPoint(l.Anchor(a), l.Radius)
}

// Area returns the area of the square query box in square meters
func (l Location) Area() float64 {
	side := 2 * l.Radius
	return side * side
}
