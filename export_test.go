package pbfextract

import (
	"path/filepath"
	"testing"
)

func TestNodesCSVRoundTrip(t *testing.T) {
	nodes := []GraphNode{
		{ID: 0, OSMID: 101, Lat: 51.5136, Lon: 7.4653},
		{ID: 1, OSMID: 205, Lat: 51.5146, Lon: 7.4663},
	}
	path := filepath.Join(t.TempDir(), "nodes.csv")
	if err := WriteNodesCSV(path, nodes); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := NodesFromCSV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(nodes) {
		t.Fatalf("expected %d nodes, got %d", len(nodes), len(got))
	}
	for i := range nodes {
		if got[i] != nodes[i] {
			t.Errorf("node %d: expected %+v, got %+v", i, nodes[i], got[i])
		}
	}
}

func TestWriteEdgesCSVSkipsInternalMetrics(t *testing.T) {
	edges := []GraphEdge{
		{Source: 0, Dest: 1, SourceOSM: 101, DestOSM: 205, Costs: []float64{1.0, 50.0, 111.0, 8.0}},
	}
	order := []string{"edge_count", "speed", "distance", "travel_time"}
	internal := InternalMetrics{"speed": {}}

	path := filepath.Join(t.TempDir(), "edges.csv")
	if err := WriteEdgesCSV(path, edges, order, internal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	external := edges[0].ExternalCosts(order, internal)
	expected := []float64{1.0, 111.0, 8.0}
	if len(external) != len(expected) {
		t.Fatalf("expected %d external costs, got %d", len(expected), len(external))
	}
	for i := range expected {
		if external[i] != expected[i] {
			t.Errorf("cost %d: expected %f, got %f", i, expected[i], external[i])
		}
	}
	names := ExternalMetricNames(order, internal)
	expectedNames := []string{"edge_count", "distance", "travel_time"}
	for i := range expectedNames {
		if names[i] != expectedNames[i] {
			t.Errorf("name %d: expected '%s', got '%s'", i, expectedNames[i], names[i])
		}
	}
}
