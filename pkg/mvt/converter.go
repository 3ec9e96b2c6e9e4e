// pkg/mvt/converter.go - Flattening decoded tiles into a single GeoJSON collection
package mvt

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb/geojson"
)

// LayerProperty names the property that records a feature's source layer
const LayerProperty = "_layer"

// ConversionOptions configures Merge
type ConversionOptions struct {
	LayerFilter    []string `json:"layer_filter,omitempty"`
	PropertyFilter []string `json:"property_filter,omitempty"`
}

// Merge returns every feature of the selected layers in one collection,
// tagged with its layer name. Layers are visited in sorted order.
func (dt *DecodedTile) Merge(opts ConversionOptions) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	for _, name := range dt.LayerNames() {
		if len(opts.LayerFilter) > 0 && !contains(opts.LayerFilter, name) {
			continue
		}
		for _, src := range dt.Layers[name].Features {
			if src.Geometry == nil {
				continue
			}
			f := geojson.NewFeature(src.Geometry)
			f.ID = src.ID
			for k, v := range src.Properties {
				if len(opts.PropertyFilter) > 0 && !contains(opts.PropertyFilter, k) {
					continue
				}
				f.Properties[k] = v
			}
			f.Properties[LayerProperty] = name
			out.Append(f)
		}
	}
	return out
}

// GeoJSON renders the merged collection as JSON
func (dt *DecodedTile) GeoJSON(opts ConversionOptions, pretty bool) ([]byte, error) {
	fc := dt.Merge(opts)

	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(fc, "", "  ")
	} else {
		data, err = json.Marshal(fc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}
	return data, nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
