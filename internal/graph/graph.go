// internal/graph/graph.go - Road network multigraph
package graph

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Node is a road graph vertex: an intersection, a dead end or a way endpoint
type Node struct {
	ID          int64
	Lat         float64
	Lng         float64
	StreetCount int
	Highway     string
}

// Point returns the node location in orb's lng/lat order
func (n *Node) Point() orb.Point {
	return orb.Point{n.Lng, n.Lat}
}

// Edge is a directed road segment between two nodes. After simplification an
// edge may span several OSM ways, which is why the tag fields are slices.
type Edge struct {
	From     int64
	To       int64
	Key      int
	OSMIDs   []int64
	Highway  []string
	Name     []string
	Oneway   bool
	Reversed bool
	Length   float64
	Geometry orb.LineString
}

// PrimaryHighway returns the first highway type of the edge
func (e *Edge) PrimaryHighway() string {
	if len(e.Highway) == 0 {
		return ""
	}
	return e.Highway[0]
}

// IsSelfLoop reports whether the edge starts and ends at the same node
func (e *Edge) IsSelfLoop() bool {
	return e.From == e.To
}

// Graph is a directed multigraph of road nodes and edges
type Graph struct {
	Nodes map[int64]*Node
	Edges []*Edge

	keys map[[2]int64]int
	out  map[int64][]*Edge
	in   map[int64][]*Edge
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		Nodes: make(map[int64]*Node),
		keys:  make(map[[2]int64]int),
		out:   make(map[int64][]*Edge),
		in:    make(map[int64][]*Edge),
	}
}

// AddNode inserts or replaces a node
func (g *Graph) AddNode(n Node) *Node {
	node := n
	g.Nodes[n.ID] = &node
	return &node
}

// AddEdge appends an edge and assigns its parallel-edge key. Both endpoints
// must already exist.
func (g *Graph) AddEdge(e Edge) *Edge {
	pair := [2]int64{e.From, e.To}
	edge := e
	edge.Key = g.keys[pair]
	g.keys[pair]++

	g.Edges = append(g.Edges, &edge)
	g.out[edge.From] = append(g.out[edge.From], &edge)
	g.in[edge.To] = append(g.in[edge.To], &edge)
	return &edge
}

// NodeCount returns the number of nodes
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// EdgeCount returns the number of directed edges
func (g *Graph) EdgeCount() int {
	return len(g.Edges)
}

// Empty reports whether the graph has no nodes
func (g *Graph) Empty() bool {
	return g == nil || len(g.Nodes) == 0
}

// NodeIDs returns node ids in ascending order
func (g *Graph) NodeIDs() []int64 {
	ids := make([]int64, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Out returns the edges leaving id
func (g *Graph) Out(id int64) []*Edge {
	return g.out[id]
}

// In returns the edges entering id
func (g *Graph) In(id int64) []*Edge {
	return g.in[id]
}

// Degree returns in-degree plus out-degree
func (g *Graph) Degree(id int64) int {
	return len(g.in[id]) + len(g.out[id])
}

// Successors returns the distinct targets of edges leaving id, in edge order
func (g *Graph) Successors(id int64) []int64 {
	return distinct(g.out[id], func(e *Edge) int64 { return e.To })
}

// Predecessors returns the distinct sources of edges entering id, in edge order
func (g *Graph) Predecessors(id int64) []int64 {
	return distinct(g.in[id], func(e *Edge) int64 { return e.From })
}

// FirstEdge returns the key-0 edge from u to v, or nil
func (g *Graph) FirstEdge(u, v int64) *Edge {
	for _, e := range g.out[u] {
		if e.To == v {
			return e
		}
	}
	return nil
}

// Bound returns the bounding box of all nodes
func (g *Graph) Bound() orb.Bound {
	mp := make(orb.MultiPoint, 0, len(g.Nodes))
	for _, id := range g.NodeIDs() {
		mp = append(mp, g.Nodes[id].Point())
	}
	return mp.Bound()
}

// Subgraph returns a copy that keeps only the given nodes and the edges
// between them
func (g *Graph) Subgraph(keep map[int64]bool) *Graph {
	sub := New()
	for _, id := range g.NodeIDs() {
		if keep[id] {
			sub.AddNode(*g.Nodes[id])
		}
	}
	for _, e := range g.Edges {
		if keep[e.From] && keep[e.To] {
			sub.AddEdge(*e)
		}
	}
	return sub
}

// UndirectedEdges collapses reciprocal edges that share a key, the way a
// directed multigraph is viewed as an undirected one
func (g *Graph) UndirectedEdges() []*Edge {
	seen := make(map[[3]int64]bool, len(g.Edges))
	edges := make([]*Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		u, v := e.From, e.To
		if u > v {
			u, v = v, u
		}
		k := [3]int64{u, v, int64(e.Key)}
		if seen[k] {
			continue
		}
		seen[k] = true
		edges = append(edges, e)
	}
	return edges
}

// CountStreets sets StreetCount on every node: the number of undirected
// edges incident to it, with self-loops counted at both ends
func (g *Graph) CountStreets() {
	counts := make(map[int64]int, len(g.Nodes))
	for _, e := range g.UndirectedEdges() {
		counts[e.From]++
		counts[e.To]++
	}
	for id, n := range g.Nodes {
		n.StreetCount = counts[id]
	}
}

// CopyStreetCounts takes street counts from src for nodes present in both
func (g *Graph) CopyStreetCounts(src *Graph) {
	for id, n := range g.Nodes {
		if other, ok := src.Nodes[id]; ok {
			n.StreetCount = other.StreetCount
		}
	}
}

// EdgeLength returns the great-circle length of a line in meters
func EdgeLength(ls orb.LineString) float64 {
	var total float64
	for i := 1; i < len(ls); i++ {
		total += geo.DistanceHaversine(ls[i-1], ls[i])
	}
	return total
}

func distinct(edges []*Edge, pick func(*Edge) int64) []int64 {
	seen := make(map[int64]bool, len(edges))
	ids := make([]int64, 0, len(edges))
	for _, e := range edges {
		id := pick(e)
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
