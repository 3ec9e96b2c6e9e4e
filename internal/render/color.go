// internal/render/color.go - Color name parsing
package render

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// single-letter codes as matplotlib defines them
var shortColors = map[string]color.RGBA{
	"b": {0, 0, 255, 255},
	"g": {0, 128, 0, 255},
	"r": {255, 0, 0, 255},
	"c": {0, 191, 191, 255},
	"m": {191, 0, 191, 255},
	"y": {191, 191, 0, 255},
	"k": {0, 0, 0, 255},
	"w": {255, 255, 255, 255},
}

// ParseColor accepts a single-letter code, a CSS color name or #rrggbb
func ParseColor(s string) (color.RGBA, error) {
	name := strings.ToLower(strings.TrimSpace(s))

	if c, ok := shortColors[name]; ok {
		return c, nil
	}
	if c, ok := colornames.Map[name]; ok {
		return c, nil
	}

	if strings.HasPrefix(name, "#") && len(name) == 7 {
		v, err := strconv.ParseUint(name[1:], 16, 32)
		if err == nil {
			return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
		}
	}

	return color.RGBA{}, fmt.Errorf("unknown color %q", s)
}

// ValidateStyleSet checks that every color in the set parses
func ValidateStyleSet(set StyleSet) error {
	for _, s := range set {
		for _, name := range []string{s.Background, s.Edge, s.Building} {
			if _, err := ParseColor(name); err != nil {
				return err
			}
		}
		if s.WidthScale <= 0 {
			return fmt.Errorf("width scale must be positive, got %v", s.WidthScale)
		}
	}
	return nil
}
