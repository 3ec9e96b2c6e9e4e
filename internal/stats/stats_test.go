package stats

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/valpere/tilemani/internal/graph"
)

func twoWay(g *graph.Graph, u, v int64, ls orb.LineString) {
	length := graph.EdgeLength(ls)
	g.AddEdge(graph.Edge{From: u, To: v, Highway: []string{"residential"}, Length: length, Geometry: ls})
	rev := make(orb.LineString, len(ls))
	for i := range ls {
		rev[len(ls)-1-i] = ls[i]
	}
	g.AddEdge(graph.Edge{From: v, To: u, Highway: []string{"residential"}, Length: length, Geometry: rev, Reversed: true})
}

// an L of two straight streets: A-B-C
func lShape() *graph.Graph {
	g := graph.New()
	a := g.AddNode(graph.Node{ID: 1, Lat: 0, Lng: 0})
	b := g.AddNode(graph.Node{ID: 2, Lat: 0, Lng: 0.001})
	c := g.AddNode(graph.Node{ID: 3, Lat: 0.001, Lng: 0.001})
	twoWay(g, 1, 2, orb.LineString{a.Point(), b.Point()})
	twoWay(g, 2, 3, orb.LineString{b.Point(), c.Point()})
	g.CountStreets()
	return g
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeBasic(t *testing.T) {
	g := lShape()

	got, err := Basic{}.Compute(g, 0)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	tests := []struct {
		name string
		want float64
	}{
		{NodeCount, 3},
		{EdgeCount, 4},
		{AvgDegree, 8.0 / 3.0},
		{IntersectionCount, 1},
		{StreetSegmentCount, 2},
		{StreetsPerNodeAvg, 4.0 / 3.0},
		{"streets_per_node_counts_1", 2},
		{"streets_per_node_counts_2", 1},
		{"streets_per_node_proportions_1", 2.0 / 3.0},
		{CircuityAvg, 1},
		{SelfLoopProportion, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := got[tt.name]
			if !ok {
				t.Fatalf("Expected stat %s to be present", tt.name)
			}
			if !near(v, tt.want) {
				t.Errorf("Expected %s = %f, got %f", tt.name, tt.want, v)
			}
		})
	}

	if !near(got[EdgeLengthTotal], 2*got[StreetLengthTotal]) {
		t.Errorf("Expected directed length %f to double street length %f", got[EdgeLengthTotal], got[StreetLengthTotal])
	}
	if _, ok := got[NodeDensity]; ok {
		t.Errorf("Expected no density stats without an area")
	}
}

func TestComputeDensities(t *testing.T) {
	got, err := Basic{}.Compute(lShape(), 4e6)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if !near(got[NodeDensity], 0.75) {
		t.Errorf("Expected node density 0.75 per km2, got %f", got[NodeDensity])
	}
	if !near(got[IntersectionDensity], 0.25) {
		t.Errorf("Expected intersection density 0.25 per km2, got %f", got[IntersectionDensity])
	}
	if !near(got[StreetDensity], got[StreetLengthTotal]/4) {
		t.Errorf("Expected street density %f, got %f", got[StreetLengthTotal]/4, got[StreetDensity])
	}
}

func TestComputeCircuityAndSelfLoops(t *testing.T) {
	g := graph.New()
	a := g.AddNode(graph.Node{ID: 1, Lat: 0, Lng: 0})
	b := g.AddNode(graph.Node{ID: 2, Lat: 0, Lng: 0.002})
	detour := orb.LineString{a.Point(), {0.001, 0.001}, b.Point()}
	twoWay(g, 1, 2, detour)
	loop := orb.LineString{b.Point(), {0.003, 0.001}, {0.003, -0.001}, b.Point()}
	g.AddEdge(graph.Edge{From: 2, To: 2, Highway: []string{"service"}, Length: graph.EdgeLength(loop), Geometry: loop})
	g.CountStreets()

	got, err := Basic{}.Compute(g, 0)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	// the loop length counts towards circuity, its straight-line distance is zero
	want := (graph.EdgeLength(detour) + graph.EdgeLength(loop)) / geo.DistanceHaversine(a.Point(), b.Point())
	if !near(got[CircuityAvg], want) {
		t.Errorf("Expected circuity %f including the self-loop length, got %f", want, got[CircuityAvg])
	}
	if got[CircuityAvg] <= 2.5 {
		t.Errorf("Expected circuity above the sqrt(2) of the detour alone, got %f", got[CircuityAvg])
	}
	if !near(got[SelfLoopProportion], 0.5) {
		t.Errorf("Expected self-loop proportion 0.5, got %f", got[SelfLoopProportion])
	}
	if g.Nodes[2].StreetCount != 3 {
		t.Errorf("Expected self-loop to count twice at node 2, got %d", g.Nodes[2].StreetCount)
	}
}

func TestComputeEmpty(t *testing.T) {
	if _, err := (Basic{}).Compute(graph.New(), 0); err == nil {
		t.Error("Expected error for empty graph")
	}
}
