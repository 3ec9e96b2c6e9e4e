// internal/retrieve/query.go - Overpass QL query construction
package retrieve

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// overpassBBox formats a bound as Overpass "south,west,north,east"
func overpassBBox(b orb.Bound) string {
	parts := []float64{b.Min.Lat(), b.Min.Lon(), b.Max.Lat(), b.Max.Lon()}
	out := make([]string, len(parts))
	for i, v := range parts {
		out[i] = strconv.FormatFloat(v, 'f', 8, 64)
	}
	return strings.Join(out, ",")
}

func settings(timeout time.Duration) string {
	secs := int(timeout.Seconds())
	if secs <= 0 {
		secs = 180
	}
	return fmt.Sprintf("[out:xml][timeout:%d];", secs)
}

// RoadQuery selects the ways matching filter inside b together with their nodes
func RoadQuery(filter string, b orb.Bound, timeout time.Duration) string {
	return fmt.Sprintf("%s(way%s(%s);>;);out;", settings(timeout), filter, overpassBBox(b))
}

// TagQuery selects nodes, ways and relations matching tags inside b, recursing
// down to member ways and nodes
func TagQuery(tags TagFilter, b orb.Bound, timeout time.Duration) string {
	bbox := overpassBBox(b)

	var sb strings.Builder
	sb.WriteString(settings(timeout))
	sb.WriteString("(")
	for _, key := range tags.Keys() {
		selector := tagSelector(key, tags[key])
		for _, kind := range []string{"node", "way", "relation"} {
			fmt.Fprintf(&sb, "%s%s(%s);", kind, selector, bbox)
		}
	}
	sb.WriteString(");(._;>;);out;")
	return sb.String()
}

func tagSelector(key string, values []string) string {
	switch len(values) {
	case 0:
		return fmt.Sprintf("[%q]", key)
	case 1:
		return fmt.Sprintf("[%q=%q]", key, values[0])
	default:
		quoted := make([]string, len(values))
		for i, v := range values {
			quoted[i] = regexp.QuoteMeta(v)
		}
		return fmt.Sprintf("[%q~%q]", key, "^("+strings.Join(quoted, "|")+")$")
	}
}
