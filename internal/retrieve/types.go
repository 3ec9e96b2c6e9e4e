// internal/retrieve/types.go - Retrieval boundary types
package retrieve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/valpere/tilemani/internal/graph"
	"github.com/valpere/tilemani/internal/tile"
)

// Retriever fetches OSM layers around a point. Both calls use
// tile.BBoxFromPoint(center, radiusM) so that the layers line up. A failed or
// empty fetch returns a nil result and a *internal.Error.
type Retriever interface {
	FetchRoadNetwork(ctx context.Context, center tile.LatLng, radiusM float64, networkType string) (*graph.Graph, error)
	FetchTaggedGeometries(ctx context.Context, center tile.LatLng, radiusM float64, tags TagFilter) (*geojson.FeatureCollection, error)
}

// TagFilter maps an OSM key to its accepted values. A nil or empty value
// list accepts any value.
type TagFilter map[string][]string

// Keys returns the filter keys in sorted order
func (f TagFilter) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Matches reports whether any filter key is present with an accepted value
func (f TagFilter) Matches(tags map[string]string) bool {
	for key, values := range f {
		v, ok := tags[key]
		if !ok {
			continue
		}
		if len(values) == 0 {
			return true
		}
		for _, want := range values {
			if v == want {
				return true
			}
		}
	}
	return false
}

// NetworkFilter returns the Overpass way filter for a network type. The
// filters are the ones osmnx uses.
func NetworkFilter(networkType string) (string, error) {
	switch networkType {
	case "drive":
		return `["highway"]["area"!~"yes"]["highway"!~"abandoned|bridleway|bus_guideway|construction|corridor|cycleway|elevator|escalator|footway|path|pedestrian|planned|platform|proposed|raceway|service|steps|track"]["motor_vehicle"!~"no"]["motorcar"!~"no"]["service"!~"alley|driveway|emergency_access|parking|parking_aisle|private"]`, nil
	case "drive_service":
		return `["highway"]["area"!~"yes"]["highway"!~"abandoned|bridleway|bus_guideway|construction|corridor|cycleway|elevator|escalator|footway|path|pedestrian|planned|platform|proposed|raceway|steps|track"]["motor_vehicle"!~"no"]["motorcar"!~"no"]["service"!~"emergency_access|parking|parking_aisle|private"]`, nil
	case "walk":
		return `["highway"]["area"!~"yes"]["highway"!~"abandoned|bus_guideway|construction|cycleway|motor|planned|platform|proposed|raceway"]["foot"!~"no"]["service"!~"private"]`, nil
	case "bike":
		return `["highway"]["area"!~"yes"]["highway"!~"abandoned|bus_guideway|construction|corridor|elevator|escalator|footway|motor|planned|platform|proposed|raceway|steps"]["bicycle"!~"no"]["service"!~"private"]`, nil
	case "all":
		return `["highway"]["area"!~"yes"]["highway"!~"abandoned|construction|planned|platform|proposed|raceway"]["service"!~"private"]`, nil
	case "all_private":
		return `["highway"]["area"!~"yes"]["highway"!~"abandoned|construction|planned|platform|proposed|raceway"]`, nil
	default:
		return "", fmt.Errorf("unknown network type %q", networkType)
	}
}

// Bidirectional reports whether oneway tags are ignored for a network type
func Bidirectional(networkType string) bool {
	return strings.EqualFold(networkType, "walk")
}
