// internal/tile/coordinates.go - Tile coordinate validation and filename parsing
package tile

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/valpere/tilemani/internal"
)

// ValidateCoordinates ensures tile coordinates are within valid bounds
func ValidateCoordinates(z, x, y int) error {
	if z < 0 || z > MaxZoom {
		return internal.NewError(internal.ErrorCodeValidation,
			fmt.Sprintf("invalid zoom level %d: must be between 0 and %d", z, MaxZoom), nil)
	}

	maxTile := 1 << uint(z)
	if x < 0 || x >= maxTile {
		return internal.NewError(internal.ErrorCodeValidation,
			fmt.Sprintf("invalid x coordinate %d for zoom %d: must be between 0 and %d", x, z, maxTile-1), nil)
	}

	if y < 0 || y >= maxTile {
		return internal.NewError(internal.ErrorCodeValidation,
			fmt.Sprintf("invalid y coordinate %d for zoom %d: must be between 0 and %d", y, z, maxTile-1), nil)
	}

	return nil
}

// ParseFilename extracts the tile index from a "{x}_{y}_{z}.{ext}" path
func ParseFilename(path string) (Index, error) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	parts := strings.Split(stem, "_")
	if len(parts) != 3 {
		return Index{}, internal.NewError(internal.ErrorCodeValidation,
			fmt.Sprintf("invalid tile filename %q: expected x_y_z", base), nil)
	}

	var coords [3]int
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			return Index{}, internal.NewError(internal.ErrorCodeValidation,
				fmt.Sprintf("invalid tile filename %q", base), err)
		}
		coords[i] = v
	}

	return NewIndex(coords[0], coords[1], coords[2])
}
