package pbfextract

import (
	"testing"

	"github.com/paulmach/osm"
	"github.com/pkg/errors"
)

// sliceScanner replays a fixed object slice; sliceSource hands out a fresh
// scanner per pass the way a file source does.
type sliceScanner struct {
	objects []osm.Object
	idx     int
}

func (s *sliceScanner) Scan() bool {
	s.idx++
	return s.idx <= len(s.objects)
}

func (s *sliceScanner) Object() osm.Object {
	return s.objects[s.idx-1]
}

func (s *sliceScanner) Close() error { return nil }
func (s *sliceScanner) Err() error   { return nil }

type sliceSource struct {
	objects []osm.Object
}

func (s *sliceSource) OpenScanner() (OSMScanner, error) {
	return &sliceScanner{objects: s.objects}, nil
}

func (s *sliceSource) Name() string { return "in-memory" }

func testNode(id int64, lat, lon float64, pairs ...string) *osm.Node {
	return &osm.Node{ID: osm.NodeID(id), Lat: lat, Lon: lon, Tags: tagsOf(pairs...)}
}

func testWay(id int64, nodeIDs []int64, pairs ...string) *osm.Way {
	nodes := make(osm.WayNodes, len(nodeIDs))
	for i, nodeID := range nodeIDs {
		nodes[i] = osm.WayNode{ID: osm.NodeID(nodeID)}
	}
	return &osm.Way{ID: osm.WayID(id), Nodes: nodes, Tags: tagsOf(pairs...)}
}

func walkConfig(objects []osm.Object) Config {
	return Config{
		Source:     &sliceSource{objects: objects},
		Filter:     PedestrianEdgeFilter{},
		TargetEPSG: 25832,
		TagMetrics: []TagMetric{EdgeCount{}},
		Workers:    2,
	}
}

func TestLoadGraphBidirectionalWay(t *testing.T) {
	objects := []osm.Object{
		testNode(1, 51.5136, 7.4653),
		testNode(2, 51.5146, 7.4653),
		testNode(3, 51.5146, 7.4663),
		testWay(10, []int64{1, 2, 3}, "highway", "residential"),
	}
	loader, err := NewLoader(walkConfig(objects))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nodes, edges, err := loader.LoadGraph()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(nodes))
	}
	for i, node := range nodes {
		if node.ID != i {
			t.Errorf("node %d: expected dense id %d, got %d", i, i, node.ID)
		}
		if node.OSMID != osm.NodeID(i+1) {
			t.Errorf("node %d: expected osm id %d, got %d", i, i+1, node.OSMID)
		}
	}
	// two segments, both directions
	if len(edges) != 4 {
		t.Fatalf("expected 4 edges, got %d", len(edges))
	}
	for _, edge := range edges {
		if edge.Source < 0 || edge.Dest < 0 {
			t.Errorf("edge %d->%d was not renumbered", edge.SourceOSM, edge.DestOSM)
		}
	}
}

func TestLoadGraphOnewayHeuristic(t *testing.T) {
	objects := []osm.Object{
		testNode(1, 51.5136, 7.4653),
		testNode(2, 51.5146, 7.4653),
		testWay(10, []int64{1, 2}, "highway", "motorway"),
	}
	cfg := Config{
		Source:     &sliceSource{objects: objects},
		Filter:     CarEdgeFilter{},
		TargetEPSG: 25832,
		TagMetrics: []TagMetric{EdgeCount{}},
		Workers:    2,
	}
	loader, err := NewLoader(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, edges, err := loader.LoadGraph()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 forward edge for a motorway, got %d", len(edges))
	}
	if edges[0].SourceOSM != 1 || edges[0].DestOSM != 2 {
		t.Errorf("expected edge 1->2, got %d->%d", edges[0].SourceOSM, edges[0].DestOSM)
	}
}

func TestLoadGraphAlwaysBidirectional(t *testing.T) {
	objects := []osm.Object{
		testNode(1, 51.5136, 7.4653),
		testNode(2, 51.5146, 7.4653),
		testWay(10, []int64{1, 2}, "highway", "motorway"),
	}
	cfg := Config{
		Source:              &sliceSource{objects: objects},
		Filter:              CarEdgeFilter{},
		TargetEPSG:          25832,
		AlwaysBidirectional: true,
		TagMetrics:          []TagMetric{EdgeCount{}},
		Workers:             2,
	}
	loader, err := NewLoader(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, edges, err := loader.LoadGraph()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges with the heuristic disabled, got %d", len(edges))
	}
}

func TestLoadGraphExplicitOnewayBeatsOverride(t *testing.T) {
	objects := []osm.Object{
		testNode(1, 51.5136, 7.4653),
		testNode(2, 51.5146, 7.4653),
		testWay(10, []int64{1, 2}, "highway", "residential", "oneway", "yes"),
	}
	cfg := walkConfig(objects)
	cfg.AlwaysBidirectional = true
	loader, err := NewLoader(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, edges, err := loader.LoadGraph()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected oneway=yes to stay directed, got %d edges", len(edges))
	}
}

func TestLoadGraphFilteredWayKeepsNoNodes(t *testing.T) {
	objects := []osm.Object{
		testNode(1, 51.5136, 7.4653),
		testNode(2, 51.5146, 7.4653),
		testWay(10, []int64{1, 2}, "highway", "motorway"),
	}
	cfg := walkConfig(objects)
	cfg.Filter = BicycleEdgeFilter{}
	loader, err := NewLoader(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nodes, edges, err := loader.LoadGraph()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(edges) != 0 {
		t.Errorf("expected no edges, got %d", len(edges))
	}
	if len(nodes) != 0 {
		t.Errorf("expected no nodes, got %d", len(nodes))
	}
}

func TestLoadGraphDedup(t *testing.T) {
	objects := []osm.Object{
		testNode(1, 51.5136, 7.4653),
		testNode(2, 51.5146, 7.4653),
		testWay(10, []int64{1, 2}, "highway", "residential"),
		testWay(11, []int64{1, 2}, "highway", "residential"),
	}
	loader, err := NewLoader(walkConfig(objects))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, edges, err := loader.LoadGraph()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("expected duplicate edges collapsed to 2, got %d", len(edges))
	}
}

func TestLoadGraphBoundary(t *testing.T) {
	objects := []osm.Object{
		testNode(1, 51.5136, 7.4653),
		testNode(2, 51.5146, 7.4653),
		testNode(3, 51.6000, 7.4653),
		testWay(10, []int64{1, 2, 3}, "highway", "residential"),
	}
	cfg := walkConfig(objects)
	cfg.Boundary = BoundaryFromPoints([][2]float64{
		{51.51, 7.46},
		{51.52, 7.46},
		{51.52, 7.47},
		{51.51, 7.47},
	})
	loader, err := NewLoader(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nodes, edges, err := loader.LoadGraph()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected the outside node dropped, got %d nodes", len(nodes))
	}
	// only the 1<->2 segment survives
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(edges))
	}
}

func TestLoadGraphMissingNodeDropsEdge(t *testing.T) {
	objects := []osm.Object{
		testNode(1, 51.5136, 7.4653),
		testNode(2, 51.5146, 7.4653),
		testWay(10, []int64{1, 2, 99}, "highway", "residential"),
	}
	loader, err := NewLoader(walkConfig(objects))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nodes, edges, err := loader.LoadGraph()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if len(edges) != 2 {
		t.Fatalf("expected segments touching node 99 dropped, got %d edges", len(edges))
	}
}

func TestLoadGraphMetricVector(t *testing.T) {
	objects := []osm.Object{
		testNode(1, 51.5136, 7.4653),
		testNode(2, 51.5146, 7.4653),
		testWay(10, []int64{1, 2}, "highway", "residential", "maxspeed", "36", "oneway", "yes"),
	}
	cfg := Config{
		Source:     &sliceSource{objects: objects},
		Filter:     CarEdgeFilter{},
		TargetEPSG: 25832,
		TagMetrics: []TagMetric{
			EdgeCount{},
			BoundedSpeed{DriverMax: 130.0},
		},
		NodeMetrics: []NodeMetric{Distance{}},
		CostMetrics: []CostMetric{
			TravelTime{Distance: "distance", Speed: "speed"},
		},
		InternalMetrics: []string{"speed"},
		Workers:         2,
	}
	loader, err := NewLoader(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	names := loader.MetricNames()
	expectedNames := []string{"edge_count", "speed", "distance", "travel_time"}
	if len(names) != len(expectedNames) {
		t.Fatalf("expected %d metrics, got %d", len(expectedNames), len(names))
	}
	for i := range expectedNames {
		if names[i] != expectedNames[i] {
			t.Errorf("metric %d: expected '%s', got '%s'", i, expectedNames[i], names[i])
		}
	}

	_, edges, err := loader.LoadGraph()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(edges))
	}
	indices := loader.MetricIndices()
	costs := edges[0].Costs
	if costs[indices["edge_count"]] != 1.0 {
		t.Errorf("expected edge count 1, got %f", costs[indices["edge_count"]])
	}
	if costs[indices["speed"]] != 36.0 {
		t.Errorf("expected speed 36, got %f", costs[indices["speed"]])
	}
	dist := costs[indices["distance"]]
	if dist < 100.0 || dist > 125.0 {
		t.Errorf("expected roughly 111 m, got %f", dist)
	}
	expectedTime := dist / 10.0
	if got := costs[indices["travel_time"]]; got != expectedTime {
		t.Errorf("expected travel time %f, got %f", expectedTime, got)
	}

	external := edges[0].ExternalCosts(loader.MetricNames(), loader.InternalMetrics())
	if len(external) != 3 {
		t.Errorf("expected speed excluded from external costs, got %d values", len(external))
	}
}

type zeroSpeed struct{}

func (zeroSpeed) Name() string                  { return "speed" }
func (zeroSpeed) Calc(osm.Tags) (float64, error) { return 0.0, nil }

func TestLoadGraphZeroSpeedFatal(t *testing.T) {
	objects := []osm.Object{
		testNode(1, 51.5136, 7.4653),
		testNode(2, 51.5146, 7.4653),
		testWay(10, []int64{1, 2}, "highway", "residential"),
	}
	cfg := Config{
		Source:          &sliceSource{objects: objects},
		Filter:          CarEdgeFilter{},
		TargetEPSG:      25832,
		TagMetrics:      []TagMetric{zeroSpeed{}},
		NodeMetrics:     []NodeMetric{Distance{}},
		CostMetrics:     []CostMetric{TravelTime{Distance: "distance", Speed: "speed"}},
		InternalMetrics: []string{"speed"},
		Workers:         2,
	}
	loader, err := NewLoader(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _, err = loader.LoadGraph()
	if !errors.Is(err, ErrNonFiniteTime) {
		t.Errorf("expected ErrNonFiniteTime, got %v", err)
	}
}

func TestNewLoaderUnknownDependency(t *testing.T) {
	cfg := walkConfig(nil)
	cfg.NodeMetrics = []NodeMetric{Distance{}}
	cfg.CostMetrics = []CostMetric{TravelTime{Distance: "distance", Speed: "speed"}}
	_, err := NewLoader(cfg)
	if !errors.Is(err, ErrUnknownMetric) {
		t.Errorf("expected ErrUnknownMetric, got %v", err)
	}
}

func TestNewLoaderMissingFields(t *testing.T) {
	_, err := NewLoader(Config{Filter: CarEdgeFilter{}, TargetEPSG: 25832})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "Source" {
		t.Errorf("expected ConfigError on Source, got %v", err)
	}

	_, err = NewLoader(Config{Source: &sliceSource{}, TargetEPSG: 25832})
	if !errors.As(err, &cfgErr) || cfgErr.Field != "Filter" {
		t.Errorf("expected ConfigError on Filter, got %v", err)
	}

	_, err = NewLoader(Config{Source: &sliceSource{}, Filter: CarEdgeFilter{}})
	if !errors.As(err, &cfgErr) || cfgErr.Field != "TargetEPSG" {
		t.Errorf("expected ConfigError on TargetEPSG, got %v", err)
	}
}

func TestDominanceAdjacentOnly(t *testing.T) {
	mkEdge := func(a, b float64) GraphEdge {
		return GraphEdge{Source: 0, Dest: 1, Costs: []float64{a, b}}
	}
	// already in (source, dest, costs) sort order
	edges := []GraphEdge{mkEdge(1, 5), mkEdge(1, 7), mkEdge(2, 6)}

	pruned := pruneDominatedEdges(edges)
	if len(pruned) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(pruned))
	}
	if pruned[0].Costs[1] != 5 {
		t.Errorf("expected (1, 5) kept, got %v", pruned[0].Costs)
	}
	// (2, 6) is dominated by (1, 5) but survives: only adjacent pairs are
	// compared, and its predecessor (1, 7) does not dominate it
	if pruned[1].Costs[0] != 2 || pruned[1].Costs[1] != 6 {
		t.Errorf("expected (2, 6) kept, got %v", pruned[1].Costs)
	}
}

func TestDominanceDistinctEndpoints(t *testing.T) {
	edges := []GraphEdge{
		{Source: 0, Dest: 1, Costs: []float64{1, 1}},
		{Source: 0, Dest: 2, Costs: []float64{2, 2}},
	}
	pruned := pruneDominatedEdges(edges)
	if len(pruned) != 2 {
		t.Errorf("expected edges with distinct endpoints untouched, got %d", len(pruned))
	}
}
