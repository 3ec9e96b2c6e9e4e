// internal/graph/build.go - Graph construction from OSM data
package graph

import (
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// ErrEmpty is returned when no road survives construction and truncation
var ErrEmpty = errors.New("graph has no nodes")

var (
	onewayValues   = map[string]bool{"yes": true, "true": true, "1": true, "-1": true, "reverse": true, "T": true, "F": true}
	reversedValues = map[string]bool{"-1": true, "reverse": true, "T": true}
)

// Options controls how OSM ways become graph edges
type Options struct {
	// Bidirectional ignores oneway tags, as for pedestrian networks
	Bidirectional bool
	// RetainAll keeps every connected component instead of the largest
	RetainAll bool
}

// FromOSM builds an unsimplified directed multigraph from every way carrying a
// highway tag. Nodes without known coordinates are dropped.
func FromOSM(data *osm.OSM, opts Options) *Graph {
	g := New()

	coords := make(map[osm.NodeID]*osm.Node, len(data.Nodes))
	for _, n := range data.Nodes {
		coords[n.ID] = n
	}

	for _, w := range data.Ways {
		highway := w.Tags.Find("highway")
		if highway == "" {
			continue
		}

		nodeIDs := make([]int64, 0, len(w.Nodes))
		for _, wn := range w.Nodes {
			n, ok := coords[wn.ID]
			if !ok {
				if wn.Lat == 0 && wn.Lon == 0 {
					continue
				}
				n = &osm.Node{ID: wn.ID, Lat: wn.Lat, Lon: wn.Lon}
			}
			if _, exists := g.Nodes[int64(n.ID)]; !exists {
				g.AddNode(Node{ID: int64(n.ID), Lat: n.Lat, Lng: n.Lon, Highway: n.Tags.Find("highway")})
			}
			nodeIDs = append(nodeIDs, int64(n.ID))
		}
		if len(nodeIDs) < 2 {
			continue
		}

		oneway := isOneway(w.Tags, opts.Bidirectional)
		if oneway && reversedValues[w.Tags.Find("oneway")] {
			for i, j := 0, len(nodeIDs)-1; i < j; i, j = i+1, j-1 {
				nodeIDs[i], nodeIDs[j] = nodeIDs[j], nodeIDs[i]
			}
		}

		base := Edge{
			OSMIDs:  []int64{int64(w.ID)},
			Highway: []string{highway},
			Oneway:  oneway,
		}
		if name := w.Tags.Find("name"); name != "" {
			base.Name = []string{name}
		}

		for i := 1; i < len(nodeIDs); i++ {
			g.addSegment(base, nodeIDs[i-1], nodeIDs[i], false)
		}
		if !oneway {
			for i := 1; i < len(nodeIDs); i++ {
				g.addSegment(base, nodeIDs[i], nodeIDs[i-1], true)
			}
		}
	}

	return g
}

func (g *Graph) addSegment(base Edge, u, v int64, reversed bool) {
	e := base
	e.From, e.To = u, v
	e.Reversed = reversed
	e.Geometry = orb.LineString{g.Nodes[u].Point(), g.Nodes[v].Point()}
	e.Length = EdgeLength(e.Geometry)
	g.AddEdge(e)
}

func isOneway(tags osm.Tags, bidirectional bool) bool {
	if bidirectional {
		return false
	}
	if onewayValues[tags.Find("oneway")] {
		return true
	}
	return tags.Find("junction") == "roundabout"
}

// Prepare turns a raw OSM response into the road graph for bbox. The data is
// expected to cover a buffered area around bbox: the graph is reduced to its
// largest component, simplified, truncated to bbox and reduced again, with
// street counts taken from the buffered graph so border nodes keep the
// streets that were cut off.
func Prepare(data *osm.OSM, bbox orb.Bound, opts Options) (*Graph, error) {
	buffered := FromOSM(data, opts)
	if buffered.Empty() {
		return nil, ErrEmpty
	}

	if !opts.RetainAll {
		buffered = buffered.LargestComponent()
	}
	buffered = buffered.Simplify()
	buffered.CountStreets()

	g := buffered.Truncate(bbox)
	if !opts.RetainAll {
		g = g.LargestComponent()
	}
	if g.Empty() {
		return nil, ErrEmpty
	}

	g.CopyStreetCounts(buffered)
	return g, nil
}

// Truncate keeps the nodes inside bbox and the edges between them
func (g *Graph) Truncate(bbox orb.Bound) *Graph {
	keep := make(map[int64]bool, len(g.Nodes))
	for id, n := range g.Nodes {
		if bbox.Contains(n.Point()) {
			keep[id] = true
		}
	}
	return g.Subgraph(keep)
}

// LargestComponent returns the largest weakly connected component. Ties are
// broken by ascending node id order.
func (g *Graph) LargestComponent() *Graph {
	parent := make(map[int64]int64, len(g.Nodes))
	find := func(x int64) int64 {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	for id := range g.Nodes {
		parent[id] = id
	}
	for _, e := range g.Edges {
		a, b := find(e.From), find(e.To)
		if a != b {
			parent[a] = b
		}
	}

	sizes := make(map[int64]int)
	var best int64
	bestSize := 0
	for _, id := range g.NodeIDs() {
		root := find(id)
		sizes[root]++
		if sizes[root] > bestSize {
			best, bestSize = root, sizes[root]
		}
	}

	keep := make(map[int64]bool, bestSize)
	for id := range g.Nodes {
		if find(id) == best {
			keep[id] = true
		}
	}
	return g.Subgraph(keep)
}
