package pbfextract

import (
	"github.com/paulmach/osm"
)

// GraphNode is a node referenced by at least one accepted way. ID is the
// dense zero-based index assigned at load time; OSMID is the source id.
type GraphNode struct {
	ID    int
	OSMID osm.NodeID
	Lat   float64
	Lon   float64
}

// GraphEdge is a directed edge between two graph nodes. Source/Dest hold
// dense node indices once renumbering has run (-1 before that); the OSM ids
// of the endpoints are kept alongside. Costs holds one component per
// registered metric, in slot order.
type GraphEdge struct {
	Source    int
	Dest      int
	SourceOSM osm.NodeID
	DestOSM   osm.NodeID
	Costs     []float64
}

// ExternalCosts returns the cost components in metric slot order, skipping
// internal-only metrics. order must be the loader's full metric name list.
func (e *GraphEdge) ExternalCosts(order []string, internal InternalMetrics) []float64 {
	costs := make([]float64, 0, len(order))
	for i, name := range order {
		if _, ok := internal[name]; ok {
			continue
		}
		costs = append(costs, e.Costs[i])
	}
	return costs
}

// ExternalMetricNames filters a slot-ordered metric name list down to the
// externally emitted ones.
func ExternalMetricNames(order []string, internal InternalMetrics) []string {
	names := make([]string, 0, len(order))
	for _, name := range order {
		if _, ok := internal[name]; ok {
			continue
		}
		names = append(names, name)
	}
	return names
}
