// internal/retrieve/overpass.go - Overpass-backed Retriever
package retrieve

import (
	"context"
	"encoding/xml"
	"errors"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmgeojson"
	"github.com/rs/zerolog"
	"github.com/valpere/tilemani/internal"
	"github.com/valpere/tilemani/internal/graph"
	"github.com/valpere/tilemani/internal/tile"
)

// Querier runs a raw Overpass QL query
type Querier interface {
	Query(ctx context.Context, query string) ([]byte, error)
}

// Overpass implements Retriever on top of the Overpass API
type Overpass struct {
	querier  Querier
	settings Settings
	logger   zerolog.Logger
}

// Settings holds the query parameters shared by every fetch
type Settings struct {
	// BufferM pads the road query so border streets are counted correctly
	BufferM   float64
	RetainAll bool
	Timeout   time.Duration
}

// NewOverpass creates an Overpass retriever
func NewOverpass(q Querier, settings Settings, logger zerolog.Logger) *Overpass {
	return &Overpass{
		querier:  q,
		settings: settings,
		logger:   logger.With().Str("component", "retriever").Logger(),
	}
}

// FetchRoadNetwork returns the simplified, truncated road graph around center
func (o *Overpass) FetchRoadNetwork(ctx context.Context, center tile.LatLng, radiusM float64, networkType string) (*graph.Graph, error) {
	filter, err := NetworkFilter(networkType)
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeValidation, "invalid network type", err)
	}

	bbox := tile.BBoxFromPoint(center, radiusM)
	query := RoadQuery(filter, tile.PadBound(bbox, o.settings.BufferM), o.settings.Timeout)

	data, err := o.fetch(ctx, query)
	if err != nil {
		return nil, err
	}

	g, err := graph.Prepare(data, bbox, graph.Options{
		Bidirectional: Bidirectional(networkType),
		RetainAll:     o.settings.RetainAll,
	})
	if err != nil {
		if errors.Is(err, graph.ErrEmpty) {
			return nil, internal.NewError(internal.ErrorCodeNoData, "no road network in area", err)
		}
		return nil, internal.NewError(internal.ErrorCodeRetrieval, "failed to build road graph", err)
	}

	o.logger.Debug().
		Str("center", center.String()).
		Int("nodes", g.NodeCount()).
		Int("edges", g.EdgeCount()).
		Msg("Road network retrieved")
	return g, nil
}

// FetchTaggedGeometries returns the features matching tags around center.
// Each feature's properties hold its OSM tags plus element_type and osmid.
func (o *Overpass) FetchTaggedGeometries(ctx context.Context, center tile.LatLng, radiusM float64, tags TagFilter) (*geojson.FeatureCollection, error) {
	if len(tags) == 0 {
		return nil, internal.NewError(internal.ErrorCodeValidation, "empty tag filter", nil)
	}

	bbox := tile.BBoxFromPoint(center, radiusM)
	data, err := o.fetch(ctx, TagQuery(tags, bbox, o.settings.Timeout))
	if err != nil {
		return nil, err
	}

	converted, err := osmgeojson.Convert(data,
		osmgeojson.NoMeta(true),
		osmgeojson.NoRelationMembership(true))
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeRetrieval, "failed to convert OSM data", err)
	}

	fc := selectFeatures(converted, tags, bbox)
	if len(fc.Features) == 0 {
		return nil, internal.NewError(internal.ErrorCodeNoData, "no matching geometries in area", nil)
	}

	o.logger.Debug().
		Str("center", center.String()).
		Int("features", len(fc.Features)).
		Msg("Tagged geometries retrieved")
	return fc, nil
}

func (o *Overpass) fetch(ctx context.Context, query string) (*osm.OSM, error) {
	body, err := o.querier.Query(ctx, query)
	if err != nil {
		if internal.CodeOf(err) != "" {
			return nil, err
		}
		return nil, internal.NewError(internal.ErrorCodeRetrieval, "overpass query failed", err)
	}

	data := &osm.OSM{}
	if err := xml.Unmarshal(body, data); err != nil {
		return nil, internal.NewError(internal.ErrorCodeRetrieval, "failed to decode overpass response", err)
	}
	return data, nil
}

// selectFeatures keeps the features whose tags match and
// whose geometry touches bbox, flattening tags into the properties
func selectFeatures(in *geojson.FeatureCollection, tags TagFilter, bbox orb.Bound) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	for _, f := range in.Features {
		osmTags, ok := f.Properties["tags"].(map[string]string)
		if !ok || !tags.Matches(osmTags) {
			continue
		}
		if f.Geometry == nil || !f.Geometry.Bound().Intersects(bbox) {
			continue
		}

		feature := geojson.NewFeature(f.Geometry)
		feature.ID = f.ID
		for k, v := range osmTags {
			feature.Properties[k] = v
		}
		feature.Properties["element_type"] = f.Properties["type"]
		feature.Properties["osmid"] = f.Properties["id"]
		out.Append(feature)
	}
	return out
}

var (
	_ Retriever = (*Overpass)(nil)
	_ Querier   = (*Client)(nil)
)
