// internal/render/widths.go - Road stroke widths per highway type
package render

// RoadWidthTable maps highway types to stroke widths in points
type RoadWidthTable struct {
	Widths  map[string]float64
	Default float64
}

// DefaultRoadWidths returns the stock width table
func DefaultRoadWidths() RoadWidthTable {
	return RoadWidthTable{
		Widths: map[string]float64{
			"footway":    1.5,
			"steps":      1.5,
			"pedestrian": 1.5,
			"service":    1.5,
			"path":       1.5,
			"track":      1.5,
			"motorway":   3,
		},
		Default: 4,
	}
}

// Width returns the width for a highway type
func (t RoadWidthTable) Width(highway string) float64 {
	if w, ok := t.Widths[highway]; ok {
		return w
	}
	return t.Default
}

// Scaled returns a copy with every width, the default included, multiplied by f
func (t RoadWidthTable) Scaled(f float64) RoadWidthTable {
	out := RoadWidthTable{
		Widths:  make(map[string]float64, len(t.Widths)),
		Default: t.Default * f,
	}
	for k, v := range t.Widths {
		out.Widths[k] = v * f
	}
	return out
}

// Merge returns a copy with overrides applied on top of t
func (t RoadWidthTable) Merge(overrides map[string]float64, defaultWidth float64) RoadWidthTable {
	out := t.Scaled(1)
	for k, v := range overrides {
		out.Widths[k] = v
	}
	if defaultWidth > 0 {
		out.Default = defaultWidth
	}
	return out
}
