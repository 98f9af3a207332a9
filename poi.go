package pbfextract

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/osm"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type PoiCategory uint16

const (
	POI_PARKS = PoiCategory(iota + 1)
	POI_BANKS
	POI_HEALTH
	POI_EDUCATION
	POI_SUSTENANCE
	POI_GROCERY
	POI_SHOPS
)

func (iotaIdx PoiCategory) String() string {
	return [...]string{"parks", "banks", "health", "education", "sustenance", "grocery", "shops"}[iotaIdx-1]
}

// Poi is a categorized point of interest matched to its nearest reference
// node. DistToNearest is in target CRS units (meters).
type Poi struct {
	OSMID         osm.NodeID
	Lat           float64
	Lon           float64
	NearestOSMID  osm.NodeID
	DistToNearest float64
	Category      PoiCategory
}

type tagAttribute struct {
	Key   string
	Value string
}

var (
	parksAttributes = []tagAttribute{
		{"leisure", "park"},
		{"leisure", "dog park"},
	}

	banksAttributes = []tagAttribute{
		{"amenity", "atm"},
		{"amenity", "bank"},
		{"amenity", "bureau de change"},
		{"amenity", "post office"},
	}

	healthAttributes = []tagAttribute{
		{"amenity", "clinic"},
		{"amenity", "dentist"},
		{"amenity", "doctors"},
		{"amenity", "hospital"},
		{"amenity", "nursing home"},
		{"amenity", "pharmacy"},
		{"amenity", "social facility"},
	}

	educationAttributes = []tagAttribute{
		{"amenity", "college"},
		{"amenity", "driving school"},
		{"amenity", "kindergarten"},
		{"amenity", "language school"},
		{"amenity", "music school"},
		{"amenity", "school"},
		{"amenity", "university"},
	}

	sustenanceAttributes = []tagAttribute{
		{"amenity", "restaurant"},
		{"amenity", "pub"},
		{"amenity", "bar"},
		{"amenity", "cafe"},
		{"amenity", "fast-food"},
		{"amenity", "food court"},
		{"amenity", "ice-cream"},
		{"amenity", "biergarten"},
	}

	groceryAttributes = []tagAttribute{
		{"shop", "alcohol"},
		{"shop", "bakery"},
		{"shop", "beverages"},
		{"shop", "brewing supplies"},
		{"shop", "butcher"},
		{"shop", "cheese"},
		{"shop", "chocolate"},
		{"shop", "coffee"},
		{"shop", "confectionery"},
		{"shop", "convenience"},
		{"shop", "deli"},
		{"shop", "dairy"},
		{"shop", "farm"},
		{"shop", "frozen food"},
		{"shop", "greengrocer"},
		{"shop", "health food"},
		{"shop", "ice-cream"},
		{"shop", "pasta"},
		{"shop", "pastry"},
		{"shop", "seafood"},
		{"shop", "spices"},
		{"shop", "tea"},
		{"shop", "water"},
		{"shop", "supermarket"},
		{"shop", "department store"},
		{"shop", "general"},
		{"shop", "kiosk"},
		{"shop", "mall"},
	}

	// A few values carry typographic ligatures ("ﬁreplace", "ﬂorist",
	// "ﬂooring", "hiﬁ", "ﬁshing") and "copy node" rather than "copyshop".
	// These spellings are what the downstream consumers were built against
	// and are kept literally.
	shopsAttributes = []tagAttribute{
		{"shop", "department store"},
		{"shop", "general"},
		{"shop", "kiosk"},
		{"shop", "mall"},
		{"shop", "wholesale"},
		{"shop", "baby goods"},
		{"shop", "bag"},
		{"shop", "boutique"},
		{"shop", "clothes"},
		{"shop", "fabric"},
		{"shop", "fashion accessories"},
		{"shop", "jewelry"},
		{"shop", "leather"},
		{"shop", "watches"},
		{"shop", "wool"},
		{"shop", "charity"},
		{"shop", "secondhand"},
		{"shop", "variety store"},
		{"shop", "beauty"},
		{"shop", "chemist"},
		{"shop", "cosmetics"},
		{"shop", "erotic"},
		{"shop", "hairdresser"},
		{"shop", "hairdresser supply"},
		{"shop", "hearing aids"},
		{"shop", "herbalist"},
		{"shop", "massage"},
		{"shop", "medical supply"},
		{"shop", "nutrition supplements"},
		{"shop", "optician"},
		{"shop", "perfumery"},
		{"shop", "tattoo"},
		{"shop", "agrarian"},
		{"shop", "appliance"},
		{"shop", "bathroom furnishing"},
		{"shop", "do-it-yourself"},
		{"shop", "electrical"},
		{"shop", "energy"},
		{"shop", "ﬁreplace"},
		{"shop", "ﬂorist"},
		{"shop", "garden centre"},
		{"shop", "garden furniture"},
		{"amenity", "fuel"},
		{"shop", "glaziery"},
		{"shop", "groundskeeping"},
		{"shop", "hardware"},
		{"shop", "houseware"},
		{"shop", "locksmith"},
		{"shop", "paint"},
		{"shop", "security"},
		{"shop", "trade"},
		{"shop", "antiques"},
		{"shop", "bed"},
		{"shop", "candles"},
		{"shop", "carpet"},
		{"shop", "curtain"},
		{"shop", "doors"},
		{"shop", "ﬂooring"},
		{"shop", "furniture"},
		{"shop", "household linen"},
		{"shop", "interior decoration"},
		{"shop", "kitchen"},
		{"shop", "lighting"},
		{"shop", "tiles"},
		{"shop", "window blind"},
		{"shop", "computer"},
		{"shop", "electronics"},
		{"shop", "hiﬁ"},
		{"shop", "mobile phone"},
		{"shop", "radio-technics"},
		{"shop", "vacuum cleaner"},
		{"shop", "bicycle"},
		{"shop", "boat"},
		{"shop", "car"},
		{"shop", "repair"},
		{"shop", "car parts"},
		{"shop", "caravan"},
		{"shop", "fuel"},
		{"shop", "ﬁshing"},
		{"shop", "golf"},
		{"shop", "hunting"},
		{"shop", "jet ski"},
		{"shop", "military surplus"},
		{"shop", "motorcycle"},
		{"shop", "outdoor"},
		{"shop", "scuba diving"},
		{"shop", "ski"},
		{"shop", "snowmobile"},
		{"shop", "swimming pool"},
		{"shop", "trailer"},
		{"shop", "tyres"},
		{"shop", "art"},
		{"shop", "collector"},
		{"shop", "craft"},
		{"shop", "frame"},
		{"shop", "games"},
		{"shop", "model"},
		{"shop", "music"},
		{"shop", "musical instrument"},
		{"shop", "photo"},
		{"shop", "camera"},
		{"shop", "trophy"},
		{"shop", "video"},
		{"shop", "videogames"},
		{"shop", "anime"},
		{"shop", "books"},
		{"shop", "gift"},
		{"shop", "lottery"},
		{"shop", "newsagent"},
		{"shop", "stationery"},
		{"shop", "ticket"},
		{"shop", "bookmaker"},
		{"shop", "cannabis"},
		{"shop", "copy node"},
		{"shop", "drycleaning"},
		{"shop", "e-cigarette"},
		{"shop", "funeral directors"},
		{"shop", "laundry"},
		{"shop", "moneylender"},
		{"shop", "party"},
		{"shop", "pawnbroker"},
		{"shop", "pet"},
		{"shop", "grooming"},
		{"shop", "pest control"},
		{"shop", "pyrotechnics"},
		{"shop", "religion"},
		{"shop", "storage rental"},
		{"shop", "tobacco"},
		{"shop", "toys"},
		{"shop", "travel agency"},
		{"shop", "vacant"},
		{"shop", "weapons"},
		{"shop", "outpost"},
	}

	// Checked in this exact order; the first matching table wins, which
	// resolves multi-category tag overlaps deterministically.
	categoryTables = []struct {
		category   PoiCategory
		attributes []tagAttribute
	}{
		{POI_PARKS, parksAttributes},
		{POI_BANKS, banksAttributes},
		{POI_HEALTH, healthAttributes},
		{POI_EDUCATION, educationAttributes},
		{POI_SUSTENANCE, sustenanceAttributes},
		{POI_GROCERY, groceryAttributes},
		{POI_SHOPS, shopsAttributes},
	}
)

// ClassifyPoi maps a tag set to a POI category. The second return value is
// false when no table matches; such nodes are excluded from the POI set.
func ClassifyPoi(tags osm.Tags) (PoiCategory, bool) {
	for _, table := range categoryTables {
		for _, attr := range table.attributes {
			if tags.Find(attr.Key) == attr.Value {
				return table.category, true
			}
		}
	}
	return 0, false
}

// PoiConfig describes one POI extraction. Source, TargetEPSG and a non-empty
// MatchNodes reference set are required.
type PoiConfig struct {
	Source     EntitySource
	TargetEPSG int
	Boundary   orb.Polygon
	// MatchNodes is the reference set POIs are matched against, typically
	// the nodes of a previously built graph.
	MatchNodes []GraphNode
	Workers    int
	Logger     *zap.SugaredLogger
}

// PoiLoader extracts categorized POI nodes and matches each one to the
// nearest reference node in planar space.
type PoiLoader struct {
	source     EntitySource
	boundary   orb.Polygon
	proj       *Projection
	index      *NearestIndex
	matchNodes []GraphNode
	workers    int
	log        *zap.SugaredLogger
}

// NewPoiLoader validates the configuration and builds the nearest-node index
// over the projected reference set. Both the reference points and every
// query point go through the same projection, so distances are consistent.
func NewPoiLoader(cfg PoiConfig) (*PoiLoader, error) {
	if cfg.Source == nil {
		return nil, &ConfigError{Field: "Source"}
	}
	if cfg.TargetEPSG == 0 {
		return nil, &ConfigError{Field: "TargetEPSG"}
	}
	if len(cfg.MatchNodes) == 0 {
		return nil, &ConfigError{Field: "MatchNodes"}
	}
	proj, err := NewProjection(cfg.TargetEPSG)
	if err != nil {
		return nil, err
	}

	points := make([][2]float64, len(cfg.MatchNodes))
	for i, node := range cfg.MatchNodes {
		x, y, err := proj.Forward(node.Lon, node.Lat)
		if err != nil {
			return nil, errors.Wrapf(err, "can't project match node %d", node.OSMID)
		}
		points[i] = [2]float64{x, y}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &PoiLoader{
		source:     cfg.Source,
		boundary:   cfg.Boundary,
		proj:       proj,
		index:      NewNearestIndex(points),
		matchNodes: cfg.MatchNodes,
		workers:    workers,
		log:        log,
	}, nil
}

// LoadPois scans the entity stream once and returns every categorized POI
// node inside the boundary, matched to its nearest reference node. Nodes
// matching no category are skipped silently.
func (l *PoiLoader) LoadPois() ([]Poi, error) {
	l.log.Infof("extracting POIs out of %s", l.source.Name())

	scanner, err := l.source.OpenScanner()
	if err != nil {
		return nil, err
	}
	defer scanner.Close()

	candidates := make(chan *osm.Node, 64)
	accepted := make(chan Poi, 64)

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
			for node := range candidates {
				poi, ok, err := l.processNode(node)
				if err != nil {
					fail(err)
					continue
				}
				if ok {
					accepted <- poi
				}
			}
		}()
	}

	var pois []Poi
	collected := make(chan struct{})
	go func() {
		for poi := range accepted {
			pois = append(pois, poi)
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
		return nil, errors.Wrap(err, "scanner error on POI nodes")
	}
	if workerErr != nil {
		return nil, workerErr
	}

	sort.Slice(pois, func(i, j int) bool { return pois[i].OSMID < pois[j].OSMID })
	l.log.Infof("collected %d POIs", len(pois))
	return pois, nil
}

func (l *PoiLoader) processNode(node *osm.Node) (Poi, bool, error) {
	if len(l.boundary) > 0 && !planar.PolygonContains(l.boundary, orb.Point{node.Lon, node.Lat}) {
		return Poi{}, false, nil
	}
	category, ok := ClassifyPoi(node.Tags)
	if !ok {
		return Poi{}, false, nil
	}
	x, y, err := l.proj.Forward(node.Lon, node.Lat)
	if err != nil {
		return Poi{}, false, errors.Wrapf(err, "can't project POI node %d", node.ID)
	}
	pos, sqDist := l.index.Nearest(x, y)
	return Poi{
		OSMID:         node.ID,
		Lat:           node.Lat,
		Lon:           node.Lon,
		NearestOSMID:  l.matchNodes[pos].OSMID,
		DistToNearest: math.Sqrt(sqDist),
		Category:      category,
	}, true, nil
}
