// internal/render/style.go - Style parameters and style fan-out
package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Layer identifies which retrieved layers an image shows
type Layer int

const (
	LayerRoad Layer = iota
	LayerBuilding
	LayerRoadBuilding
)

// Prefix returns the style-name prefix of the layer
func (l Layer) Prefix() string {
	switch l {
	case LayerRoad:
		return "OSMnxR"
	case LayerBuilding:
		return "OSMnxB"
	case LayerRoadBuilding:
		return "OSMnxRB"
	default:
		return "unknown"
	}
}

func (l Layer) String() string {
	switch l {
	case LayerRoad:
		return "road"
	case LayerBuilding:
		return "building"
	case LayerRoadBuilding:
		return "road_building"
	default:
		return "unknown"
	}
}

// StyleConfig is one combination of colors and road width scale
type StyleConfig struct {
	Background string  `json:"bgcolor"`
	Edge       string  `json:"edge_color"`
	Building   string  `json:"bldg_color"`
	WidthScale float64 `json:"lw_factor"`
}

// Name returns the directory name of the style for a layer
func (s StyleConfig) Name(layer Layer) string {
	lw := FormatFactor(s.WidthScale)
	switch layer {
	case LayerRoad:
		return fmt.Sprintf("%s-%s-%s-%s", layer.Prefix(), s.Background, s.Edge, lw)
	case LayerBuilding:
		return fmt.Sprintf("%s-%s-%s-%s", layer.Prefix(), s.Background, s.Building, lw)
	default:
		return fmt.Sprintf("%s-%s-%s-%s-%s", layer.Prefix(), s.Background, s.Edge, s.Building, lw)
	}
}

// StyleSet is an ordered list of styles
type StyleSet []StyleConfig

// CrossProduct expands the color and scale lists in bg, edge, building, scale
// order, skipping combinations whose edge color equals the background
func CrossProduct(bgs, edges, bldgs []string, scales []float64) StyleSet {
	var set StyleSet
	for _, bg := range bgs {
		for _, edge := range edges {
			if bg == edge {
				continue
			}
			for _, bldg := range bldgs {
				for _, scale := range scales {
					set = append(set, StyleConfig{
						Background: bg,
						Edge:       edge,
						Building:   bldg,
						WidthScale: scale,
					})
				}
			}
		}
	}
	return set
}

// DefaultStyleSet returns the default fan-out
func DefaultStyleSet() StyleSet {
	return CrossProduct(
		[]string{"k", "r", "g", "b", "y"},
		[]string{"cyan"},
		[]string{"silver"},
		[]float64{0.5},
	)
}

// Grayscale returns the single black-on-white style
func Grayscale() StyleSet {
	return StyleSet{{Background: "w", Edge: "k", Building: "silver", WidthScale: 1.0}}
}

// FormatFactor formats a scale the way Python prints floats, so 1 becomes "1.0"
func FormatFactor(f float64) string {
	format := byte('f')
	if a := math.Abs(f); a != 0 && (a < 1e-4 || a >= 1e16) {
		format = 'g'
	}
	s := strconv.FormatFloat(f, format, -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}
