// internal/tile/geometry.go - Tile index, coordinate and extent conversions
package tile

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	// EquatorialRadius is the WGS84 semi-major axis used for tile extents
	EquatorialRadius = 6378137.0

	// MeanEarthRadius is the radius used when padding a point into a bbox
	MeanEarthRadius = 6371009.0
)

// float64 copies so that derived factors round like runtime arithmetic
var (
	pi       = math.Pi
	degToRad = pi / 180.0
	radToDeg = 180.0 / pi
)

// FromGeo returns the tile containing the point at the given zoom.
// Inputs near the poles produce out-of-range indexes.
func FromGeo(latDeg, lngDeg float64, zoom int) Index {
	latRad := latDeg * degToRad
	n := math.Exp2(float64(zoom))
	x := int(math.Floor((lngDeg + 180.0) / 360.0 * n))
	y := int(math.Floor((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n))
	return Index{X: x, Y: y, Z: zoom}
}

// GeoFromTile returns the top-left corner of the tile
func GeoFromTile(x, y, zoom int) LatLng {
	n := math.Exp2(float64(zoom))
	lngDeg := float64(x)/n*360.0 - 180.0
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*float64(y)/n)))
	return LatLng{Lat: latRad * radToDeg, Lng: lngDeg}
}

// Centroid averages the tile's top-left corner with its bottom-right one
func Centroid(idx Index) LatLng {
	tl := GeoFromTile(idx.X, idx.Y, idx.Z)
	br := GeoFromTile(idx.X+1, idx.Y+1, idx.Z)
	return LatLng{Lat: (tl.Lat + br.Lat) / 2, Lng: (tl.Lng + br.Lng) / 2}
}

// ExtentOf returns the ground size of a 256x256 tile in meters.
// SizeX scales by the cosine of the corner longitude, not latitude.
func ExtentOf(x, y, zoom int) Extent {
	corner := GeoFromTile(x, y, zoom)
	circumference := 2 * pi * EquatorialRadius
	n := math.Exp2(float64(zoom))
	return Extent{
		SizeY: circumference * math.Cos(corner.Lat*pi/180) / n,
		SizeX: circumference * math.Cos(corner.Lng*pi/180) / n,
	}
}

// LatLngAndRadius returns the tile corner and the query radius floor(SizeY/2)
func LatLngAndRadius(idx Index) (lat, lng, radius float64) {
	corner := GeoFromTile(idx.X, idx.Y, idx.Z)
	extent := ExtentOf(idx.X, idx.Y, idx.Z)
	return corner.Lat, corner.Lng, math.Floor(extent.SizeY / 2)
}

// Locate derives the full location of a tile
func Locate(idx Index) Location {
	lat, lng, radius := LatLngAndRadius(idx)
	return Location{
		Index: idx,
		Center: GeoCenter{
			Corner:   LatLng{Lat: lat, Lng: lng},
			Centroid: Centroid(idx),
		},
		Extent: ExtentOf(idx.X, idx.Y, idx.Z),
		Radius: radius,
	}
}

// BBoxFromPoint returns the box extending distM meters north, south, east
// and west of center
func BBoxFromPoint(center LatLng, distM float64) orb.Bound {
	deltaLat := distM / MeanEarthRadius * radToDeg
	deltaLng := deltaLat / math.Cos(center.Lat*pi/180)
	return orb.Bound{
		Min: orb.Point{center.Lng - deltaLng, center.Lat - deltaLat},
		Max: orb.Point{center.Lng + deltaLng, center.Lat + deltaLat},
	}
}

// PadBound grows b by distM meters on every side, measured at b's center latitude
func PadBound(b orb.Bound, distM float64) orb.Bound {
	if distM <= 0 {
		return b
	}
	center := b.Center()
	pad := BBoxFromPoint(LatLng{Lat: center.Lat(), Lng: center.Lon()}, distM)
	dLng := (pad.Max.Lon() - pad.Min.Lon()) / 2
	dLat := (pad.Max.Lat() - pad.Min.Lat()) / 2
	return orb.Bound{
		Min: orb.Point{b.Min.Lon() - dLng, b.Min.Lat() - dLat},
		Max: orb.Point{b.Max.Lon() + dLng, b.Max.Lat() + dLat},
	}
}
