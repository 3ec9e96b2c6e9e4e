// internal/stats/stats.go - Road network statistics
package stats

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb/geo"
	"github.com/valpere/tilemani/internal/graph"
)

// Stat names shared with the record and CSV writers
const (
	NodeCount           = "n"
	EdgeCount           = "m"
	AvgDegree           = "k_avg"
	EdgeLengthTotal     = "edge_length_total"
	EdgeLengthAvg       = "edge_length_avg"
	StreetsPerNodeAvg   = "streets_per_node_avg"
	IntersectionCount   = "intersection_count"
	StreetLengthTotal   = "street_length_total"
	StreetSegmentCount  = "street_segment_count"
	StreetLengthAvg     = "street_length_avg"
	CircuityAvg         = "circuity_avg"
	SelfLoopProportion  = "self_loop_proportion"
	NodeDensity         = "node_density_km"
	IntersectionDensity = "intersection_density_km"
	EdgeDensity         = "edge_density_km"
	StreetDensity       = "street_density_km"
	streetsPerNodeCount = "streets_per_node_counts_%d"
	streetsPerNodeShare = "streets_per_node_proportions_%d"
)

// Computer computes network statistics for a road graph
type Computer interface {
	Compute(g *graph.Graph, areaM2 float64) (map[string]float64, error)
}

// Basic computes the osmnx basic_stats metric set
type Basic struct{}

// Compute returns a flat metric map. Density metrics are included only when
// areaM2 is positive. Nodes are expected to carry street counts.
func (Basic) Compute(g *graph.Graph, areaM2 float64) (map[string]float64, error) {
	if g.Empty() {
		return nil, fmt.Errorf("cannot compute statistics of an empty graph")
	}

	out := make(map[string]float64)

	n := float64(g.NodeCount())
	m := float64(g.EdgeCount())
	out[NodeCount] = n
	out[EdgeCount] = m
	out[AvgDegree] = 2 * m / n

	var edgeLength float64
	for _, e := range g.Edges {
		edgeLength += e.Length
	}
	out[EdgeLengthTotal] = edgeLength
	out[EdgeLengthAvg] = safeDiv(edgeLength, m)

	counts := make(map[int]int)
	var streetSum, intersections int
	for _, node := range g.Nodes {
		counts[node.StreetCount]++
		streetSum += node.StreetCount
		if node.StreetCount > 1 {
			intersections++
		}
	}
	out[StreetsPerNodeAvg] = float64(streetSum) / n
	keys := make([]int, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		out[fmt.Sprintf(streetsPerNodeCount, k)] = float64(counts[k])
		out[fmt.Sprintf(streetsPerNodeShare, k)] = float64(counts[k]) / n
	}
	out[IntersectionCount] = float64(intersections)

	streets := g.UndirectedEdges()
	var streetLength, straightLength float64
	var selfLoops int
	for _, e := range streets {
		streetLength += e.Length
		if e.IsSelfLoop() {
			selfLoops++
			continue
		}
		straightLength += geo.DistanceHaversine(g.Nodes[e.From].Point(), g.Nodes[e.To].Point())
	}
	segments := float64(len(streets))
	out[StreetLengthTotal] = streetLength
	out[StreetSegmentCount] = segments
	out[StreetLengthAvg] = safeDiv(streetLength, segments)
	out[SelfLoopProportion] = safeDiv(float64(selfLoops), segments)

	// self-loops add length but no straight-line distance
	out[CircuityAvg] = safeDiv(streetLength, straightLength)

	if areaM2 > 0 {
		areaKm := areaM2 / 1e6
		out[NodeDensity] = n / areaKm
		out[IntersectionDensity] = float64(intersections) / areaKm
		out[EdgeDensity] = edgeLength / areaKm
		out[StreetDensity] = streetLength / areaKm
	}

	return out, nil
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
