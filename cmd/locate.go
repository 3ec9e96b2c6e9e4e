// cmd/locate.go - Tile location inspection command
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/valpere/tilemani/internal/config"
	"github.com/valpere/tilemani/internal/geocode"
	"github.com/valpere/tilemani/internal/logger"
	"github.com/valpere/tilemani/internal/tile"
	"github.com/valpere/tilemani/pkg/mvt"
)

// locateCmd represents the locate command
var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Show where a tile lies on the ground",
	Long: `Print the index, corner, centroid, extent, query radius and query box of a tile.

The tile is given either by --x/--y/--z or by a coordinate and a zoom level.
With --address the tile corner is reverse geocoded through Nominatim. With --mvt
a vector tile written by the pipeline is decoded and summarized, or printed as
GeoJSON with --geojson.

Examples:
  # By index
  tilemani locate --x 8301 --y 5639 --z 14

  # By coordinate
  tilemani locate --lat 48.8566 --lng 2.3522 --zoom 14 --address

  # Inspect a vector tile
  tilemani locate --x 8301 --y 5639 --z 14 --mvt ./temp/images/paris/VectorTile/14/8301_5639_14.mvt --geojson`,
	RunE: runLocate,
}

func init() {
	rootCmd.AddCommand(locateCmd)

	// Tile index flags
	locateCmd.Flags().Int("x", 0, "tile x coordinate")
	locateCmd.Flags().Int("y", 0, "tile y coordinate")
	locateCmd.Flags().Int("z", 0, "tile zoom level")

	// Coordinate flags
	locateCmd.Flags().Float64("lat", 0, "latitude in degrees")
	locateCmd.Flags().Float64("lng", 0, "longitude in degrees")
	locateCmd.Flags().Int("zoom", 14, "zoom level for --lat/--lng")

	// Inspection flags
	locateCmd.Flags().Bool("address", false, "reverse geocode the tile corner")
	locateCmd.Flags().String("mvt", "", "vector tile file to decode for this tile")
	locateCmd.Flags().Bool("geojson", false, "print the decoded vector tile as GeoJSON")
	locateCmd.Flags().Bool("pretty", true, "pretty print JSON output")

	locateCmd.MarkFlagsRequiredTogether("x", "y", "z")
	locateCmd.MarkFlagsRequiredTogether("lat", "lng")
	locateCmd.MarkFlagsMutuallyExclusive("x", "lat")
	locateCmd.MarkFlagsOneRequired("x", "lat")
}

// LocateReport is the output of the locate command
type LocateReport struct {
	Index    tile.Index     `json:"index"`
	Name     string         `json:"name"`
	Corner   tile.LatLng    `json:"corner"`
	Centroid tile.LatLng    `json:"centroid"`
	Extent   tile.Extent    `json:"extent"`
	Radius   float64        `json:"radius"`
	BBox     [4]float64     `json:"bbox"`
	Address  string         `json:"address,omitempty"`
	Country  string         `json:"country,omitempty"`
	Layers   map[string]int `json:"layers,omitempty"`
}

// NewLocateReport describes the tile; bbox is [west, south, east, north]
// around the corner
func NewLocateReport(idx tile.Index) *LocateReport {
	loc := tile.Locate(idx)
	b := tile.BBoxFromPoint(loc.Center.Corner, loc.Radius)
	return &LocateReport{
		Index:    idx,
		Name:     idx.String(),
		Corner:   loc.Center.Corner,
		Centroid: loc.Center.Centroid,
		Extent:   loc.Extent,
		Radius:   loc.Radius,
		BBox:     [4]float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()},
	}
}

func runLocate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.Build(cfg.Logging, nil)

	idx, err := locateIndex(cmd)
	if err != nil {
		return err
	}
	report := NewLocateReport(idx)

	pretty, _ := cmd.Flags().GetBool("pretty")
	mvtPath, _ := cmd.Flags().GetString("mvt")
	asGeoJSON, _ := cmd.Flags().GetBool("geojson")

	if mvtPath != "" {
		decoded, err := decodeTileFile(afero.NewOsFs(), mvtPath, idx)
		if err != nil {
			return err
		}
		if asGeoJSON {
			data, err := decoded.GeoJSON(mvt.ConversionOptions{}, pretty)
			if err != nil {
				return fmt.Errorf("failed to convert vector tile: %w", err)
			}
			_, err = fmt.Fprintln(os.Stdout, string(data))
			return err
		}
		report.Layers = make(map[string]int)
		for _, name := range decoded.LayerNames() {
			report.Layers[name] = decoded.LayerFeatureCount(name)
		}
	}

	if address, _ := cmd.Flags().GetBool("address"); address {
		client := geocode.NewClient(geocode.Options{
			URL:       cfg.Records.NominatimURL,
			UserAgent: cfg.Network.UserAgent,
			Language:  cfg.Records.Language,
		}, log)

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		addr, err := client.Reverse(ctx, report.Corner)
		if err != nil {
			log.Warn().Err(err).Str("tile", report.Name).Msg("Reverse geocoding failed")
		} else {
			report.Address = addr
			report.Country = geocode.Country(addr)
		}
	}

	return writeReport(report, pretty)
}

// locateIndex resolves the tile from either flag group
func locateIndex(cmd *cobra.Command) (tile.Index, error) {
	if cmd.Flags().Changed("lat") {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lng, _ := cmd.Flags().GetFloat64("lng")
		zoom, _ := cmd.Flags().GetInt("zoom")
		if err := tile.ValidateCoordinates(zoom, 0, 0); err != nil {
			return tile.Index{}, fmt.Errorf("invalid zoom: %w", err)
		}
		if lat < -85.0511 || lat > 85.0511 || lng < -180 || lng > 180 {
			return tile.Index{}, fmt.Errorf("coordinate (%v, %v) is outside the web mercator range", lat, lng)
		}
		return tile.FromGeo(lat, lng, zoom), nil
	}

	x, _ := cmd.Flags().GetInt("x")
	y, _ := cmd.Flags().GetInt("y")
	z, _ := cmd.Flags().GetInt("z")
	idx, err := tile.NewIndex(x, y, z)
	if err != nil {
		return tile.Index{}, fmt.Errorf("invalid tile coordinates: %w", err)
	}
	return idx, nil
}

func decodeTileFile(fs afero.Fs, path string, idx tile.Index) (*mvt.DecodedTile, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vector tile: %w", err)
	}
	decoded, err := mvt.Decode(data, idx)
	if err != nil {
		return nil, fmt.Errorf("failed to decode vector tile: %w", err)
	}
	return decoded, nil
}

func writeReport(report *LocateReport, pretty bool) error {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}
