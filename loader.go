package pbfextract

import (
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/osm"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ConfigError reports a missing required loader configuration field.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing required config field: %s", e.Field)
}

// Config describes one graph extraction. Source, Filter and TargetEPSG are
// required; everything else is optional.
type Config struct {
	Source     EntitySource
	Filter     EdgeFilter
	TargetEPSG int
	// Boundary, when set, drops nodes outside the polygon (geographic
	// coordinates) together with the edges touching them.
	Boundary orb.Polygon
	// AlwaysBidirectional disables the motorway/roundabout one-way
	// heuristic. Explicit oneway tags are still honored.
	AlwaysBidirectional bool
	TagMetrics          []TagMetric
	NodeMetrics         []NodeMetric
	CostMetrics         []CostMetric
	// InternalMetrics names metrics that only feed derived cost metrics
	// and are excluded from emitted cost vectors.
	InternalMetrics []string
	Workers         int
	Logger          *zap.SugaredLogger
}

// Loader extracts a routable graph out of an OSM entity stream.
type Loader struct {
	source              EntitySource
	filter              EdgeFilter
	boundary            orb.Polygon
	alwaysBidirectional bool
	tagMetrics          []TagMetric
	nodeMetrics         []NodeMetric
	costMetrics         []CostMetric

	proj     *Projection
	indices  MetricIndices
	order    []string
	internal InternalMetrics
	workers  int
	log      *zap.SugaredLogger
}

// NewLoader validates the configuration and resolves the metric index.
// Unknown cost metric dependencies and unknown CRS codes are rejected here,
// before any parsing starts.
func NewLoader(cfg Config) (*Loader, error) {
	if cfg.Source == nil {
		return nil, &ConfigError{Field: "Source"}
	}
	if cfg.Filter == nil {
		return nil, &ConfigError{Field: "Filter"}
	}
	if cfg.TargetEPSG == 0 {
		return nil, &ConfigError{Field: "TargetEPSG"}
	}
	proj, err := NewProjection(cfg.TargetEPSG)
	if err != nil {
		return nil, err
	}

	indices := make(MetricIndices)
	order := []string{}
	register := func(name string) error {
		if _, ok := indices[name]; ok {
			return errors.Errorf("duplicate metric name: %s", name)
		}
		indices[name] = len(order)
		order = append(order, name)
		return nil
	}
	for _, m := range cfg.TagMetrics {
		if err := register(m.Name()); err != nil {
			return nil, err
		}
	}
	for _, m := range cfg.NodeMetrics {
		if err := register(m.Name()); err != nil {
			return nil, err
		}
	}
	for _, m := range cfg.CostMetrics {
		if err := register(m.Name()); err != nil {
			return nil, err
		}
	}
	for _, m := range cfg.CostMetrics {
		for _, dep := range m.Dependencies() {
			if _, ok := indices[dep]; !ok {
				return nil, errors.Wrapf(ErrUnknownMetric, "'%s' required by cost metric '%s'", dep, m.Name())
			}
		}
	}

	internal := make(InternalMetrics, len(cfg.InternalMetrics))
	for _, name := range cfg.InternalMetrics {
		internal[name] = struct{}{}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Loader{
		source:              cfg.Source,
		filter:              cfg.Filter,
		boundary:            cfg.Boundary,
		alwaysBidirectional: cfg.AlwaysBidirectional,
		tagMetrics:          cfg.TagMetrics,
		nodeMetrics:         cfg.NodeMetrics,
		costMetrics:         cfg.CostMetrics,
		proj:                proj,
		indices:             indices,
		order:               order,
		internal:            internal,
		workers:             workers,
		log:                 log,
	}, nil
}

// MetricNames returns all registered metric names in slot order.
func (l *Loader) MetricNames() []string {
	names := make([]string, len(l.order))
	copy(names, l.order)
	return names
}

// MetricIndices returns the name-to-slot mapping.
func (l *Loader) MetricIndices() MetricIndices {
	indices := make(MetricIndices, len(l.indices))
	for name, idx := range l.indices {
		indices[name] = idx
	}
	return indices
}

// InternalMetrics returns the set of internal-only metric names.
func (l *Loader) InternalMetrics() InternalMetrics {
	internal := make(InternalMetrics, len(l.internal))
	for name := range l.internal {
		internal[name] = struct{}{}
	}
	return internal
}

// Projection returns the loader's projection so that downstream matching can
// share the same metric space.
func (l *Loader) Projection() *Projection {
	return l.proj
}

// LoadGraph runs the whole extraction: two passes over the entity stream,
// metric computation, deduplication and dominance pruning. Scanner failures
// abort the load; ways referencing nodes absent from the extract are dropped
// silently.
func (l *Loader) LoadGraph() ([]GraphNode, []GraphEdge, error) {
	l.log.Infof("extracting data out of %s", l.source.Name())

	edges, idSet, err := l.scanWays()
	if err != nil {
		return nil, nil, errors.Wrap(err, "way pass")
	}
	l.log.Infof("collected %d edges", len(edges))

	nodes, err := l.scanNodes(idSet)
	if err != nil {
		return nil, nil, errors.Wrap(err, "node pass")
	}
	l.log.Infof("collected %d nodes", len(nodes))

	edges, err = l.renumberAndCalcNodeMetrics(nodes, edges)
	if err != nil {
		return nil, nil, err
	}
	if err := l.calcCostMetrics(edges); err != nil {
		return nil, nil, err
	}

	edges = dedupEdges(edges)
	edges = pruneDominatedEdges(edges)
	l.log.Infof("%d edges left after dedup and dominance pruning", len(edges))
	return nodes, edges, nil
}

// scanWays is the first pass: filter ways, compute tag metrics once per way
// and emit one edge per segment per direction. Referenced node ids are
// streamed to a single collector goroutine whose finished set is handed back
// exactly once; receiving it is the only point where the orchestrator blocks.
func (l *Loader) scanWays() ([]GraphEdge, map[osm.NodeID]struct{}, error) {
	scanner, err := l.source.OpenScanner()
	if err != nil {
		return nil, nil, err
	}
	defer scanner.Close()

	ids := make(chan osm.NodeID, 1024)
	idSetReady := make(chan map[osm.NodeID]struct{}, 1)
	go func() {
		set := make(map[osm.NodeID]struct{})
		for id := range ids {
			set[id] = struct{}{}
		}
		idSetReady <- set
	}()

	ways := make(chan *osm.Way, 64)
	batches := make(chan []GraphEdge, 64)

	var errOnce sync.Once
	var workerErr error
	fail := func(err error) {
		errOnce.Do(func() { workerErr = err })
	}

	var wg sync.WaitGroup
	for i := 0; i < l.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for way := range ways {
				batch, err := l.processWay(way, ids)
				if err != nil {
					fail(err)
					continue
				}
				if len(batch) > 0 {
					batches <- batch
				}
			}
		}()
	}

	var edges []GraphEdge
	collected := make(chan struct{})
	go func() {
		for batch := range batches {
			edges = append(edges, batch...)
		}
		close(collected)
	}()

	for scanner.Scan() {
		obj := scanner.Object()
		if obj.ObjectID().Type() != "way" {
			continue
		}
		ways <- obj.(*osm.Way)
	}
	close(ways)
	wg.Wait()
	close(batches)
	<-collected
	close(ids)
	idSet := <-idSetReady

	if err := scanner.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "scanner error on ways")
	}
	if workerErr != nil {
		return nil, nil, workerErr
	}
	return edges, idSet, nil
}

func (l *Loader) processWay(way *osm.Way, ids chan<- osm.NodeID) ([]GraphEdge, error) {
	if len(way.Nodes) < 2 {
		return nil, nil
	}
	if l.filter.IsInvalid(way.Tags) {
		return nil, nil
	}

	tagCosts := make([]float64, len(l.tagMetrics))
	for i, m := range l.tagMetrics {
		value, err := m.Calc(way.Tags)
		if err != nil {
			return nil, errors.Wrapf(err, "tag metric '%s' on way %d", m.Name(), way.ID)
		}
		tagCosts[i] = value
	}

	oneway := l.isOneway(way)
	segments := len(way.Nodes) - 1
	capacity := segments
	if !oneway {
		capacity *= 2
	}
	edges := make([]GraphEdge, 0, capacity)
	for i := 0; i < segments; i++ {
		from := way.Nodes[i].ID
		to := way.Nodes[i+1].ID
		ids <- from
		edges = append(edges, l.newEdge(from, to, tagCosts))
		if !oneway {
			edges = append(edges, l.newEdge(to, from, tagCosts))
		}
	}
	ids <- way.Nodes[segments].ID
	return edges, nil
}

func (l *Loader) newEdge(from, to osm.NodeID, tagCosts []float64) GraphEdge {
	costs := make([]float64, len(l.order))
	copy(costs, tagCosts)
	return GraphEdge{
		Source:    -1,
		Dest:      -1,
		SourceOSM: from,
		DestOSM:   to,
		Costs:     costs,
	}
}

func (l *Loader) isOneway(way *osm.Way) bool {
	switch way.Tags.Find("oneway") {
	case "yes", "true":
		return true
	case "no", "false":
		return false
	}
	if l.alwaysBidirectional {
		return false
	}
	if way.Tags.Find("highway") == "motorway" {
		return true
	}
	junction := way.Tags.Find("junction")
	return junction == "roundabout" || junction == "circular"
}

// scanNodes is the second pass: retain nodes referenced by accepted ways
// that lie inside the boundary (when one is configured), then assign dense
// indices in OSM id order so that output is reproducible.
func (l *Loader) scanNodes(idSet map[osm.NodeID]struct{}) ([]GraphNode, error) {
	scanner, err := l.source.OpenScanner()
	if err != nil {
		return nil, err
	}
	defer scanner.Close()

	candidates := make(chan *osm.Node, 64)
	accepted := make(chan GraphNode, 64)

	var wg sync.WaitGroup
	for i := 0; i < l.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for node := range candidates {
				if _, ok := idSet[node.ID]; !ok {
					continue
				}
				if len(l.boundary) > 0 && !planar.PolygonContains(l.boundary, orb.Point{node.Lon, node.Lat}) {
					continue
				}
				accepted <- GraphNode{OSMID: node.ID, Lat: node.Lat, Lon: node.Lon}
			}
		}()
	}

	var nodes []GraphNode
	collected := make(chan struct{})
	go func() {
		for node := range accepted {
			nodes = append(nodes, node)
		}
		close(collected)
	}()

	for scanner.Scan() {
		obj := scanner.Object()
		if obj.ObjectID().Type() != "node" {
			continue
		}
		candidates <- obj.(*osm.Node)
	}
	close(candidates)
	wg.Wait()
	close(accepted)
	<-collected

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanner error on nodes")
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].OSMID < nodes[j].OSMID })
	for i := range nodes {
		nodes[i].ID = i
	}
	return nodes, nil
}

// renumberAndCalcNodeMetrics replaces OSM ids with dense indices and fills
// node metric slots. Edges whose endpoints did not survive the node pass are
// dropped here.
func (l *Loader) renumberAndCalcNodeMetrics(nodes []GraphNode, edges []GraphEdge) ([]GraphEdge, error) {
	byOSMID := make(map[osm.NodeID]*GraphNode, len(nodes))
	for i := range nodes {
		byOSMID[nodes[i].OSMID] = &nodes[i]
	}

	offset := len(l.tagMetrics)
	kept := edges[:0]
	dropped := 0
	for _, edge := range edges {
		source, ok := byOSMID[edge.SourceOSM]
		if !ok {
			dropped++
			continue
		}
		dest, ok := byOSMID[edge.DestOSM]
		if !ok {
			dropped++
			continue
		}
		edge.Source = source.ID
		edge.Dest = dest.ID
		for i, m := range l.nodeMetrics {
			value, err := m.Calc(source, dest, l.proj)
			if err != nil {
				return nil, errors.Wrapf(err, "node metric '%s' on edge %d->%d", m.Name(), edge.SourceOSM, edge.DestOSM)
			}
			edge.Costs[offset+i] = value
		}
		kept = append(kept, edge)
	}
	if dropped > 0 {
		l.log.Debugf("dropped %d edges with missing endpoints", dropped)
	}
	return kept, nil
}

func (l *Loader) calcCostMetrics(edges []GraphEdge) error {
	offset := len(l.tagMetrics) + len(l.nodeMetrics)
	for i := range edges {
		for j, m := range l.costMetrics {
			value, err := m.Calc(edges[i].Costs, l.indices)
			if err != nil {
				return errors.Wrapf(err, "cost metric '%s' on edge %d->%d", m.Name(), edges[i].SourceOSM, edges[i].DestOSM)
			}
			edges[i].Costs[offset+j] = value
		}
	}
	return nil
}

func lessEdge(a, b *GraphEdge) bool {
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	if a.Dest != b.Dest {
		return a.Dest < b.Dest
	}
	for i := range a.Costs {
		if a.Costs[i] != b.Costs[i] {
			return a.Costs[i] < b.Costs[i]
		}
	}
	return false
}

func sameEdge(a, b *GraphEdge) bool {
	if a.Source != b.Source || a.Dest != b.Dest {
		return false
	}
	for i := range a.Costs {
		if a.Costs[i] != b.Costs[i] {
			return false
		}
	}
	return true
}

// dedupEdges sorts edges by (source, dest, cost vector) and removes exact
// duplicates.
func dedupEdges(edges []GraphEdge) []GraphEdge {
	sort.Slice(edges, func(i, j int) bool { return lessEdge(&edges[i], &edges[j]) })
	out := edges[:0]
	for i := range edges {
		if len(out) > 0 && sameEdge(&out[len(out)-1], &edges[i]) {
			continue
		}
		out = append(out, edges[i])
	}
	return out
}

// pruneDominatedEdges removes every edge whose immediate predecessor in sort
// order shares its endpoints and is component-wise <= it. Only adjacent
// pairs are compared, so groups of three or more parallel edges are not
// guaranteed Pareto-optimal; that keeps the scan linear per group.
func pruneDominatedEdges(edges []GraphEdge) []GraphEdge {
	dominated := make(map[int]struct{})
	for i := 1; i < len(edges); i++ {
		first := &edges[i-1]
		second := &edges[i]
		if first.Source != second.Source || first.Dest != second.Dest {
			continue
		}
		dominates := true
		for k := range first.Costs {
			if first.Costs[k] > second.Costs[k] {
				dominates = false
				break
			}
		}
		if dominates {
			dominated[i] = struct{}{}
		}
	}
	if len(dominated) == 0 {
		return edges
	}
	out := edges[:0]
	for i := range edges {
		if _, ok := dominated[i]; ok {
			continue
		}
		out = append(out, edges[i])
	}
	return out
}
