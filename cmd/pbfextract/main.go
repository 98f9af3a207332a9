package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/LdDl/ch"
	"github.com/osmtools/pbfextract"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	cityName      = flag.String("city", "", "City name from the BBBike catalog; resolves to '<archive>/<city>.osm.pbf'")
	fileName      = flag.String("file", "", "Path to *.osm.pbf / *.osm file (takes precedence over -city)")
	mode          = flag.String("mode", "car", "Transport mode: car / bike / walk")
	outDir        = flag.String("out", "data", "Output directory")
	archiveDir    = flag.String("archive", "data", "Directory holding local *.osm.pbf extracts")
	epsgCode      = flag.Int("crs", 25832, "EPSG code of the planar target CRS")
	boundaryFile  = flag.String("boundary", "", "GeoJSON file with a bounding polygon (optional)")
	bidirectional = flag.Bool("bidirectional", false, "Treat ways without an explicit oneway tag as bidirectional, ignoring the motorway/roundabout heuristic")
	maxSpeed      = flag.Float64("maxspeed", 130.0, "Upper speed bound in km/h for the car travel time metric")
	download      = flag.Bool("download", false, "Download the extract from BBBike when it is missing locally")
	pois          = flag.Bool("pois", false, "Also extract POIs matched to graph nodes")
	matchFile     = flag.String("match-nodes", "", "Nodes CSV to match POIs against (defaults to the freshly built graph nodes)")
	contract      = flag.Bool("contract", false, "Prepare contraction hierarchies and export shortcuts")
)

func main() {
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	if err := run(log); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(log *zap.SugaredLogger) error {
	pbfPath := *fileName
	if pbfPath == "" {
		if *cityName == "" {
			return errors.New("either -file or -city is required")
		}
		var err error
		pbfPath, err = pbfextract.CheckArchive(*cityName, *archiveDir, *download)
		if err != nil {
			return err
		}
	}

	filter, tagMetrics, nodeMetrics, costMetrics, internal, err := modeSetup(*mode, *maxSpeed)
	if err != nil {
		return err
	}

	var boundary = pbfextract.BoundaryFromPoints(nil)
	if *boundaryFile != "" {
		boundary, err = pbfextract.BoundaryFromGeoJSON(*boundaryFile)
		if err != nil {
			return err
		}
	}

	source, err := pbfextract.NewFileSource(pbfPath)
	if err != nil {
		return err
	}
	defer source.Close()

	loader, err := pbfextract.NewLoader(pbfextract.Config{
		Source:              source,
		Filter:              filter,
		TargetEPSG:          *epsgCode,
		Boundary:            boundary,
		AlwaysBidirectional: *bidirectional,
		TagMetrics:          tagMetrics,
		NodeMetrics:         nodeMetrics,
		CostMetrics:         costMetrics,
		InternalMetrics:     internal,
		Logger:              log,
	})
	if err != nil {
		return err
	}

	st := time.Now()
	nodes, edges, err := loader.LoadGraph()
	if err != nil {
		return err
	}
	log.Infof("graph loaded in %v", time.Since(st))

	prefix := outPrefix(pbfPath)
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return errors.Wrap(err, "can't create output directory")
	}
	if err := pbfextract.WriteNodesCSV(prefix+"_nodes.csv", nodes); err != nil {
		return err
	}
	if err := pbfextract.WriteEdgesCSV(prefix+"_edges.csv", edges, loader.MetricNames(), loader.InternalMetrics()); err != nil {
		return err
	}

	mapping, err := pbfextract.BuildCellMapping(nodes, loader.Projection())
	if err != nil {
		return err
	}
	if err := pbfextract.WriteCellMappingCSV(prefix+"_h3mapping.csv", mapping); err != nil {
		return err
	}

	if *pois {
		matchNodes := nodes
		if *matchFile != "" {
			matchNodes, err = pbfextract.NodesFromCSV(*matchFile)
			if err != nil {
				return err
			}
		}
		poiLoader, err := pbfextract.NewPoiLoader(pbfextract.PoiConfig{
			Source:     source,
			TargetEPSG: *epsgCode,
			Boundary:   boundary,
			MatchNodes: matchNodes,
			Logger:     log,
		})
		if err != nil {
			return err
		}
		poiList, err := poiLoader.LoadPois()
		if err != nil {
			return err
		}
		if err := pbfextract.WritePoisCSV(prefix+"_pois.csv", poiList); err != nil {
			return err
		}
	}

	if *contract {
		return contractGraph(log, loader, edges, prefix+"_shortcuts.csv")
	}
	return nil
}

// modeSetup wires the per-mode filter and metric sets. The speed and
// unsuitability metrics exist only to feed derived costs and stay internal.
func modeSetup(mode string, driverMax float64) (pbfextract.EdgeFilter, []pbfextract.TagMetric, []pbfextract.NodeMetric, []pbfextract.CostMetric, []string, error) {
	nodeMetrics := []pbfextract.NodeMetric{pbfextract.Distance{}}
	switch mode {
	case "car":
		tagMetrics := []pbfextract.TagMetric{
			pbfextract.EdgeCount{},
			pbfextract.BoundedSpeed{DriverMax: driverMax},
		}
		costMetrics := []pbfextract.CostMetric{
			pbfextract.TravelTime{Distance: "distance", Speed: "speed"},
		}
		return pbfextract.CarEdgeFilter{}, tagMetrics, nodeMetrics, costMetrics, []string{"speed"}, nil
	case "bike":
		tagMetrics := []pbfextract.TagMetric{
			pbfextract.EdgeCount{},
			pbfextract.BicycleUnsuitability{},
		}
		costMetrics := []pbfextract.CostMetric{
			pbfextract.UnsuitabilityDistance{Distance: "distance", Unsuitability: "unsuitability"},
		}
		return pbfextract.BicycleEdgeFilter{}, tagMetrics, nodeMetrics, costMetrics, []string{"unsuitability"}, nil
	case "walk":
		tagMetrics := []pbfextract.TagMetric{pbfextract.EdgeCount{}}
		return pbfextract.PedestrianEdgeFilter{}, tagMetrics, nodeMetrics, nil, nil, nil
	default:
		return nil, nil, nil, nil, nil, errors.Errorf("unknown mode '%s' (expected car / bike / walk)", mode)
	}
}

func outPrefix(pbfPath string) string {
	base := filepath.Base(pbfPath)
	base = strings.TrimSuffix(base, ".osm.pbf")
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(*outDir, strings.ToLower(base)+"_"+*mode)
}

// contractGraph feeds the distance cost into contraction hierarchies
// preparation and exports the resulting shortcuts.
func contractGraph(log *zap.SugaredLogger, loader *pbfextract.Loader, edges []pbfextract.GraphEdge, outPath string) error {
	distIdx, ok := loader.MetricIndices()["distance"]
	if !ok {
		return errors.New("contraction requires the distance metric")
	}
	graph := ch.Graph{}
	for i := range edges {
		edge := &edges[i]
		if err := graph.CreateVertex(int64(edge.Source)); err != nil {
			return errors.Wrap(err, "can't create source vertex")
		}
		if err := graph.CreateVertex(int64(edge.Dest)); err != nil {
			return errors.Wrap(err, "can't create target vertex")
		}
		if err := graph.AddEdge(int64(edge.Source), int64(edge.Dest), edge.Costs[distIdx]); err != nil {
			return errors.Wrap(err, "can't add edge")
		}
	}
	log.Info("starting contraction process...")
	st := time.Now()
	graph.PrepareContractionHierarchies()
	log.Infof("done contraction process in %v", time.Since(st))
	return graph.ExportShortcutsToFile(outPath)
}
