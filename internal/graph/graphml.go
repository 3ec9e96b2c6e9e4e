// internal/graph/graphml.go - GraphML serialization
package graph

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/encoding/wkt"
)

const graphMLNamespace = "http://graphml.graphdrawing.org/xmlns"

type graphMLDoc struct {
	XMLName xml.Name     `xml:"graphml"`
	Xmlns   string       `xml:"xmlns,attr"`
	Keys    []graphMLKey `xml:"key"`
	Graph   graphMLGraph `xml:"graph"`
}

type graphMLKey struct {
	ID       string `xml:"id,attr"`
	For      string `xml:"for,attr"`
	AttrName string `xml:"attr.name,attr"`
	AttrType string `xml:"attr.type,attr"`
}

type graphMLGraph struct {
	EdgeDefault string        `xml:"edgedefault,attr"`
	Data        []graphMLData `xml:"data"`
	Nodes       []graphMLNode `xml:"node"`
	Edges       []graphMLEdge `xml:"edge"`
}

type graphMLData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

type graphMLNode struct {
	ID   string        `xml:"id,attr"`
	Data []graphMLData `xml:"data"`
}

type graphMLEdge struct {
	Source string        `xml:"source,attr"`
	Target string        `xml:"target,attr"`
	ID     string        `xml:"id,attr"`
	Data   []graphMLData `xml:"data"`
}

var graphMLKeys = []graphMLKey{
	{"d0", "graph", "created_date", "string"},
	{"d1", "graph", "created_with", "string"},
	{"d2", "graph", "crs", "string"},
	{"d3", "graph", "simplified", "string"},
	{"d4", "node", "y", "double"},
	{"d5", "node", "x", "double"},
	{"d6", "node", "street_count", "long"},
	{"d7", "node", "highway", "string"},
	{"d8", "edge", "osmid", "string"},
	{"d9", "edge", "highway", "string"},
	{"d10", "edge", "name", "string"},
	{"d11", "edge", "oneway", "string"},
	{"d12", "edge", "reversed", "string"},
	{"d13", "edge", "length", "double"},
	{"d14", "edge", "geometry", "string"},
}

// WriteGraphML writes the graph in the attribute layout osmnx uses, so the
// files load with osmnx.load_graphml and networkx.read_graphml
func (g *Graph) WriteGraphML(w io.Writer, createdAt time.Time) error {
	doc := graphMLDoc{
		Xmlns: graphMLNamespace,
		Keys:  graphMLKeys,
		Graph: graphMLGraph{
			EdgeDefault: "directed",
			Data: []graphMLData{
				{"d0", createdAt.UTC().Format("2006-01-02 15:04:05")},
				{"d1", "tilemani"},
				{"d2", "epsg:4326"},
				{"d3", "True"},
			},
		},
	}

	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		node := graphMLNode{
			ID: strconv.FormatInt(id, 10),
			Data: []graphMLData{
				{"d4", formatFloat(n.Lat)},
				{"d5", formatFloat(n.Lng)},
				{"d6", strconv.Itoa(n.StreetCount)},
			},
		}
		if n.Highway != "" {
			node.Data = append(node.Data, graphMLData{"d7", n.Highway})
		}
		doc.Graph.Nodes = append(doc.Graph.Nodes, node)
	}

	for _, e := range g.Edges {
		edge := graphMLEdge{
			Source: strconv.FormatInt(e.From, 10),
			Target: strconv.FormatInt(e.To, 10),
			ID:     strconv.Itoa(e.Key),
			Data: []graphMLData{
				{"d8", pyIntList(e.OSMIDs)},
				{"d9", pyStringList(e.Highway)},
			},
		}
		if len(e.Name) > 0 {
			edge.Data = append(edge.Data, graphMLData{"d10", pyStringList(e.Name)})
		}
		edge.Data = append(edge.Data,
			graphMLData{"d11", pyBool(e.Oneway)},
			graphMLData{"d12", pyBool(e.Reversed)},
			graphMLData{"d13", formatFloat(e.Length)},
		)
		if len(e.Geometry) > 2 {
			edge.Data = append(edge.Data, graphMLData{"d14", wkt.MarshalString(e.Geometry)})
		}
		doc.Graph.Edges = append(doc.Graph.Edges, edge)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode graphml: %w", err)
	}
	return enc.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// pyIntList renders a single value bare and several as a Python list literal
func pyIntList(values []int64) string {
	if len(values) == 1 {
		return strconv.FormatInt(values[0], 10)
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func pyStringList(values []string) string {
	if len(values) == 1 {
		return values[0]
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = "'" + strings.ReplaceAll(v, "'", "\\'") + "'"
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
