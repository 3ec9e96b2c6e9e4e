// internal/graph/simplify.go - Interstitial node removal
package graph

import (
	"github.com/paulmach/orb"
)

// isEndpoint reports whether a node must survive simplification. Besides
// self-loops, dead ends and true intersections, a node where two different
// OSM ways meet is kept.
func (g *Graph) isEndpoint(id int64) bool {
	neighbors := make(map[int64]bool)
	for _, n := range g.Predecessors(id) {
		neighbors[n] = true
	}
	for _, n := range g.Successors(id) {
		neighbors[n] = true
	}

	if neighbors[id] {
		return true
	}
	if len(g.out[id]) == 0 || len(g.in[id]) == 0 {
		return true
	}
	d := g.Degree(id)
	if !(len(neighbors) == 2 && (d == 2 || d == 4)) {
		return true
	}

	ways := make(map[int64]bool)
	for _, e := range g.in[id] {
		for _, w := range e.OSMIDs {
			ways[w] = true
		}
	}
	for _, e := range g.out[id] {
		for _, w := range e.OSMIDs {
			ways[w] = true
		}
	}
	return len(ways) > 1
}

// Simplify merges chains of interstitial nodes into single edges whose
// geometry follows the removed nodes. Lengths are summed and tag values are
// collected without duplicates.
func (g *Graph) Simplify() *Graph {
	endpoints := make(map[int64]bool)
	for id := range g.Nodes {
		if g.isEndpoint(id) {
			endpoints[id] = true
		}
	}

	var paths [][]int64
	for _, id := range g.NodeIDs() {
		if !endpoints[id] {
			continue
		}
		for _, succ := range g.Successors(id) {
			if endpoints[succ] {
				continue
			}
			if path := g.buildPath(id, succ, endpoints); len(path) > 0 {
				paths = append(paths, path)
			}
		}
	}

	interstitial := make(map[int64]bool)
	for _, path := range paths {
		for _, id := range path[1 : len(path)-1] {
			interstitial[id] = true
		}
	}

	out := New()
	for _, id := range g.NodeIDs() {
		if !interstitial[id] {
			out.AddNode(*g.Nodes[id])
		}
	}
	for _, e := range g.Edges {
		if !interstitial[e.From] && !interstitial[e.To] {
			out.AddEdge(*e)
		}
	}
	for _, path := range paths {
		out.AddEdge(g.mergePath(path))
	}
	return out
}

// buildPath follows successors from endpoint through non-endpoints until it
// reaches an endpoint
func (g *Graph) buildPath(endpoint, next int64, endpoints map[int64]bool) []int64 {
	path := []int64{endpoint, next}
	onPath := map[int64]bool{endpoint: true, next: true}

	for _, successor := range g.Successors(next) {
		if onPath[successor] {
			continue
		}
		path = append(path, successor)
		onPath[successor] = true

		for !endpoints[successor] {
			var candidates []int64
			for _, n := range g.Successors(successor) {
				if !onPath[n] {
					candidates = append(candidates, n)
				}
			}

			switch len(candidates) {
			case 1:
				successor = candidates[0]
				path = append(path, successor)
				onPath[successor] = true
			case 0:
				// a ring that closes back on its starting endpoint
				for _, n := range g.Successors(successor) {
					if n == endpoint {
						return append(path, endpoint)
					}
				}
				return path
			default:
				// an interstitial node can have at most one unvisited successor
				return path
			}
		}
		return path
	}
	return nil
}

func (g *Graph) mergePath(path []int64) Edge {
	merged := Edge{From: path[0], To: path[len(path)-1]}
	geometry := make(orb.LineString, 0, len(path))
	geometry = append(geometry, g.Nodes[path[0]].Point())

	for i := 1; i < len(path); i++ {
		e := g.FirstEdge(path[i-1], path[i])
		geometry = append(geometry, g.Nodes[path[i]].Point())
		if e == nil {
			continue
		}
		merged.Length += e.Length
		merged.OSMIDs = appendUniqueInt(merged.OSMIDs, e.OSMIDs...)
		merged.Highway = appendUniqueString(merged.Highway, e.Highway...)
		merged.Name = appendUniqueString(merged.Name, e.Name...)
		merged.Oneway = merged.Oneway || e.Oneway
		merged.Reversed = e.Reversed
	}

	merged.Geometry = geometry
	return merged
}

func appendUniqueInt(dst []int64, values ...int64) []int64 {
	for _, v := range values {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}

func appendUniqueString(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
