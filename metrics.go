package pbfextract

import (
	"math"
	"strconv"

	"github.com/paulmach/osm"
	"github.com/pkg/errors"
)

// MetricIndices maps a metric name to its slot in every edge cost vector.
// Slots are assigned once at loader construction: tag metrics first, then
// node metrics, then cost metrics, in registration order.
type MetricIndices map[string]int

// InternalMetrics holds names of metrics that exist only to feed derived
// cost metrics and are excluded from emitted cost vectors.
type InternalMetrics map[string]struct{}

var (
	// ErrUnknownMetric is returned when a cost metric references a name
	// absent from the metric index. This is a configuration bug and fatal
	// for the whole load.
	ErrUnknownMetric = errors.New("unknown metric")
	// ErrNonFiniteTime is returned when a travel time computation divides
	// by a zero speed on a traversable edge.
	ErrNonFiniteTime = errors.New("non-finite travel time")
)

// Metric is anything with a stable name usable as a cost vector column.
type Metric interface {
	Name() string
}

// TagMetric computes a value from way tags, once per way; the value is
// shared by every edge segment derived from that way.
type TagMetric interface {
	Metric
	Calc(tags osm.Tags) (float64, error)
}

// NodeMetric computes a value from an edge's endpoints, once per edge after
// node renumbering.
type NodeMetric interface {
	Metric
	Calc(source, target *GraphNode, proj *Projection) (float64, error)
}

// CostMetric derives a value from already computed cost components, looked
// up by name through the metric index. Dependencies are declared up front so
// the loader can reject unknown names before parsing starts.
type CostMetric interface {
	Metric
	Dependencies() []string
	Calc(costs []float64, indices MetricIndices) (float64, error)
}

// EdgeCount weights every edge with 1 so that summed costs count hops.
type EdgeCount struct{}

func (EdgeCount) Name() string { return "edge_count" }

func (EdgeCount) Calc(osm.Tags) (float64, error) {
	return 1.0, nil
}

// BicycleUnsuitability scores how unpleasant a way is to cycle on; lower is
// better. Explicit cycle infrastructure scores 0.5, arterial roads without
// any score up to 6.
type BicycleUnsuitability struct{}

func (BicycleUnsuitability) Name() string { return "unsuitability" }

func (BicycleUnsuitability) Calc(tags osm.Tags) (float64, error) {
	bicycle := tags.Find("bicycle")
	if tags.Find("cycleway") != "" || (bicycle != "" && bicycle != "no") {
		return 0.5, nil
	}
	if tags.Find("sidewalk") == "yes" {
		return 1.0, nil
	}
	switch tags.Find("highway") {
	case "primary", "primary_link":
		return 5.0, nil
	case "secondary", "secondary_link":
		return 4.0, nil
	case "tertiary", "tertiary_link", "road", "bridleway":
		return 3.0, nil
	case "unclassified", "residential", "traffic_island":
		return 2.0, nil
	case "living_street", "service", "track", "platform", "pedestrian", "path", "footway":
		return 1.0, nil
	case "cycleway":
		return 0.5, nil
	default:
		return 6.0, nil
	}
}

// BoundedSpeed estimates free-flow speed in km/h from the highway class and
// an explicit maxspeed tag, clipped to the driver's maximum.
type BoundedSpeed struct {
	DriverMax float64
}

func (BoundedSpeed) Name() string { return "speed" }

func (m BoundedSpeed) Calc(tags osm.Tags) (float64, error) {
	var base float64
	switch tags.Find("highway") {
	case "motorway", "trunk":
		base = m.DriverMax
	case "primary":
		base = 100.0
	case "secondary", "trunk_link":
		base = 80.0
	case "motorway_link", "primary_link", "secondary_link", "tertiary", "tertiary_link":
		base = 70.0
	case "service":
		base = 30.0
	case "living_street":
		base = 5.0
	default:
		base = 50.0
	}

	maxSpeed := math.NaN()
	switch tagged := tags.Find("maxspeed"); tagged {
	case "":
	case "none":
		maxSpeed = m.DriverMax
	case "walk", "DE:walk", "living_street", "DE:living_street":
		maxSpeed = 10.0
	default:
		if parsed, err := strconv.ParseFloat(tagged, 64); err == nil {
			maxSpeed = parsed
		}
	}

	if maxSpeed > 0 && maxSpeed <= m.DriverMax {
		return maxSpeed, nil
	}
	return math.Min(base, m.DriverMax), nil
}

// Distance is the planar Euclidean distance between the projected endpoints,
// in target CRS units (meters for the usual metric CRS).
type Distance struct{}

func (Distance) Name() string { return "distance" }

func (Distance) Calc(source, target *GraphNode, proj *Projection) (float64, error) {
	return projectedDistance(proj, source.Lon, source.Lat, target.Lon, target.Lat)
}

// TravelTime derives seconds from a distance metric (meters) and a speed
// metric (km/h). A zero speed on a traversable edge yields ErrNonFiniteTime.
type TravelTime struct {
	Distance string
	Speed    string
}

func (TravelTime) Name() string { return "travel_time" }

func (m TravelTime) Dependencies() []string {
	return []string{m.Distance, m.Speed}
}

func (m TravelTime) Calc(costs []float64, indices MetricIndices) (float64, error) {
	distIdx, ok := indices[m.Distance]
	if !ok {
		return 0, errors.Wrap(ErrUnknownMetric, m.Distance)
	}
	speedIdx, ok := indices[m.Speed]
	if !ok {
		return 0, errors.Wrap(ErrUnknownMetric, m.Speed)
	}
	dist := costs[distIdx]
	speed := costs[speedIdx]
	seconds := dist / (speed / 3.6)
	if math.IsInf(seconds, 0) || math.IsNaN(seconds) {
		return 0, errors.Wrapf(ErrNonFiniteTime, "distance %f, speed %f", dist, speed)
	}
	return seconds, nil
}

// UnsuitabilityDistance weights a distance metric by an unsuitability score.
type UnsuitabilityDistance struct {
	Distance      string
	Unsuitability string
}

func (UnsuitabilityDistance) Name() string { return "unsuit_distance" }

func (m UnsuitabilityDistance) Dependencies() []string {
	return []string{m.Distance, m.Unsuitability}
}

func (m UnsuitabilityDistance) Calc(costs []float64, indices MetricIndices) (float64, error) {
	distIdx, ok := indices[m.Distance]
	if !ok {
		return 0, errors.Wrap(ErrUnknownMetric, m.Distance)
	}
	unsuitIdx, ok := indices[m.Unsuitability]
	if !ok {
		return 0, errors.Wrap(ErrUnknownMetric, m.Unsuitability)
	}
	return costs[distIdx] * costs[unsuitIdx], nil
}
