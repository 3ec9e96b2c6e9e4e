// internal/render/raster.go - Figure-ground rasterization of roads and buildings
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/golang/freetype/raster"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/valpere/tilemani/internal/graph"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/fixed"
)

const (
	pointsPerInch = 72.0
	discArcs      = 8
)

// Renderer draws road graphs and building footprints onto a square canvas
type Renderer struct {
	DPI     float64
	Figsize float64
	Widths  RoadWidthTable
}

// NewRenderer creates a renderer. Non-positive dpi or figsize fall back to
// 50 dpi and 7 inches.
func NewRenderer(dpi, figsize float64, widths RoadWidthTable) *Renderer {
	if dpi <= 0 {
		dpi = 50
	}
	if figsize <= 0 {
		figsize = 7
	}
	return &Renderer{DPI: dpi, Figsize: figsize, Widths: widths}
}

// Size returns the canvas side in pixels
func (r *Renderer) Size() int {
	return int(math.Round(r.Figsize * r.DPI))
}

// pixels converts a width in points to pixels
func (r *Renderer) pixels(pt float64) float64 {
	return pt * r.DPI / pointsPerInch
}

// projection maps lng/lat linearly onto the canvas, north up
type projection struct {
	bbox orb.Bound
	size float64
}

func (p projection) apply(pt orb.Point) orb.Point {
	w := p.bbox.Max.Lon() - p.bbox.Min.Lon()
	h := p.bbox.Max.Lat() - p.bbox.Min.Lat()
	return orb.Point{
		(pt.Lon() - p.bbox.Min.Lon()) / w * p.size,
		(p.bbox.Max.Lat() - pt.Lat()) / h * p.size,
	}
}

// Render draws the requested layer for bbox. A layer whose data is missing is
// left out; the background is always drawn.
func (r *Renderer) Render(g *graph.Graph, b *geojson.FeatureCollection, bbox orb.Bound, style StyleConfig, layer Layer) (*image.RGBA, error) {
	if bbox.Max.Lon() <= bbox.Min.Lon() || bbox.Max.Lat() <= bbox.Min.Lat() {
		return nil, fmt.Errorf("degenerate bbox %v", bbox)
	}

	bg, err := ParseColor(style.Background)
	if err != nil {
		return nil, err
	}

	size := r.Size()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	proj := projection{bbox: bbox, size: float64(size)}
	z := raster.NewRasterizer(size, size)
	painter := raster.NewRGBAPainter(img)

	if layer != LayerBuilding && !g.Empty() {
		edge, err := ParseColor(style.Edge)
		if err != nil {
			return nil, err
		}
		painter.SetColor(edge)
		r.drawRoads(z, painter, g, proj, r.Widths.Scaled(style.WidthScale))
	}

	if layer != LayerRoad && b != nil && len(b.Features) > 0 {
		fill, err := ParseColor(style.Building)
		if err != nil {
			return nil, err
		}
		painter.SetColor(fill)
		drawFootprints(z, painter, b, proj)
	}

	return img, nil
}

// jointWidths returns the widest incident street width of every node, in points
func jointWidths(g *graph.Graph, widths RoadWidthTable) map[int64]float64 {
	out := make(map[int64]float64, g.NodeCount())
	for _, e := range g.UndirectedEdges() {
		w := widths.Width(e.PrimaryHighway())
		for _, id := range []int64{e.From, e.To} {
			if w > out[id] {
				out[id] = w
			}
		}
	}
	return out
}

// drawRoads strokes every street with round caps and joins, then covers each
// node with a disc as wide as its widest incident street. Streets are painted
// one at a time so that overlapping outlines never cancel.
func (r *Renderer) drawRoads(z *raster.Rasterizer, painter raster.Painter, g *graph.Graph, proj projection, widths RoadWidthTable) {
	z.UseNonZeroWinding = true

	for _, e := range g.UndirectedEdges() {
		line := e.Geometry
		if len(line) < 2 {
			line = orb.LineString{g.Nodes[e.From].Point(), g.Nodes[e.To].Point()}
		}

		path, ok := strokePath(line, proj)
		if !ok {
			continue
		}
		w := r.pixels(widths.Width(e.PrimaryHighway()))
		z.AddStroke(path, toFixed(w), raster.RoundCapper, raster.RoundJoiner)
		z.Rasterize(painter)
		z.Clear()
	}

	joints := jointWidths(g, widths)
	for _, id := range g.NodeIDs() {
		w := r.pixels(joints[id])
		if w <= 0 {
			continue
		}
		z.AddPath(disc(proj.apply(g.Nodes[id].Point()), w/2))
		z.Rasterize(painter)
		z.Clear()
	}
}

// drawFootprints fills polygonal features; other geometries are ignored
func drawFootprints(z *raster.Rasterizer, painter raster.Painter, b *geojson.FeatureCollection, proj projection) {
	z.UseNonZeroWinding = true

	var polys []orb.Polygon
	for _, f := range b.Features {
		switch geom := f.Geometry.(type) {
		case orb.Polygon:
			polys = append(polys, geom)
		case orb.MultiPolygon:
			polys = append(polys, geom...)
		}
	}

	for _, poly := range polys {
		var path raster.Path
		for i, ring := range poly {
			if len(ring) < 3 {
				continue
			}
			// outer rings and holes must wind in opposite directions
			want := orb.CCW
			if i > 0 {
				want = orb.CW
			}
			if ring.Orientation() != want {
				ring = ring.Clone()
				ring.Reverse()
			}
			addRing(&path, ring, proj)
		}
		if len(path) == 0 {
			continue
		}
		z.AddPath(path)
		z.Rasterize(painter)
		z.Clear()
	}
}

// strokePath projects a polyline, dropping repeated points. It reports false
// when fewer than two distinct points remain.
func strokePath(line orb.LineString, proj projection) (raster.Path, bool) {
	var (
		path raster.Path
		prev fixed.Point26_6
		n    int
	)
	for _, p := range line {
		pt := toPoint(proj.apply(p))
		if n > 0 && pt == prev {
			continue
		}
		if n == 0 {
			path.Start(pt)
		} else {
			path.Add1(pt)
		}
		prev = pt
		n++
	}
	return path, n >= 2
}

// addRing appends a closed contour to path
func addRing(path *raster.Path, ring orb.Ring, proj projection) {
	first := toPoint(proj.apply(ring[0]))
	path.Start(first)
	for _, p := range ring[1:] {
		path.Add1(toPoint(proj.apply(p)))
	}
	path.Add1(first)
}

// disc returns a closed circle of eight quadratic arcs
func disc(c orb.Point, radius float64) raster.Path {
	var path raster.Path
	ctrl := radius / math.Cos(math.Pi/discArcs)
	at := func(rad, a float64) fixed.Point26_6 {
		return toPoint(orb.Point{c[0] + rad*math.Cos(a), c[1] + rad*math.Sin(a)})
	}

	path.Start(at(radius, 0))
	for i := 0; i < discArcs; i++ {
		a := 2 * math.Pi * float64(i) / discArcs
		step := 2 * math.Pi / discArcs
		path.Add2(at(ctrl, a+step/2), at(radius, a+step))
	}
	return path
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}

func toPoint(p orb.Point) fixed.Point26_6 {
	return fixed.Point26_6{X: toFixed(p[0]), Y: toFixed(p[1])}
}

// At returns the color of the pixel under a lng/lat point
func (r *Renderer) At(img *image.RGBA, bbox orb.Bound, pt orb.Point) color.RGBA {
	p := projection{bbox: bbox, size: float64(r.Size())}.apply(pt)
	return img.RGBAAt(int(p[0]), int(p[1]))
}
