package pbfextract

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/paulmach/osm"
	"github.com/pkg/errors"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func newCSVWriter(file *os.File) *csv.Writer {
	writer := csv.NewWriter(file)
	writer.Comma = ';'
	return writer
}

// WriteNodesCSV writes graph nodes as node_id;osm_id;lat;lon.
func WriteNodesCSV(path string, nodes []GraphNode) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "can't create '%s'", path)
	}
	defer file.Close()
	writer := newCSVWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"node_id", "osm_id", "lat", "lon"}); err != nil {
		return err
	}
	for _, node := range nodes {
		record := []string{
			strconv.Itoa(node.ID),
			strconv.FormatInt(int64(node.OSMID), 10),
			formatFloat(node.Lat),
			formatFloat(node.Lon),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteEdgesCSV writes edges with one column per external metric, in metric
// slot order. order must be the loader's full metric name list.
func WriteEdgesCSV(path string, edges []GraphEdge, order []string, internal InternalMetrics) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "can't create '%s'", path)
	}
	defer file.Close()
	writer := newCSVWriter(file)
	defer writer.Flush()

	header := []string{"source", "source_osm", "dest", "dest_osm"}
	header = append(header, ExternalMetricNames(order, internal)...)
	if err := writer.Write(header); err != nil {
		return err
	}
	for i := range edges {
		edge := &edges[i]
		record := []string{
			strconv.Itoa(edge.Source),
			strconv.FormatInt(int64(edge.SourceOSM), 10),
			strconv.Itoa(edge.Dest),
			strconv.FormatInt(int64(edge.DestOSM), 10),
		}
		for _, cost := range edge.ExternalCosts(order, internal) {
			record = append(record, formatFloat(cost))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WritePoisCSV writes POIs as
// osm_id;lat;lon;nearest_osm_node;dist_to_nearest;category.
func WritePoisCSV(path string, pois []Poi) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "can't create '%s'", path)
	}
	defer file.Close()
	writer := newCSVWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"osm_id", "lat", "lon", "nearest_osm_node", "dist_to_nearest", "category"}); err != nil {
		return err
	}
	for _, poi := range pois {
		record := []string{
			strconv.FormatInt(int64(poi.OSMID), 10),
			formatFloat(poi.Lat),
			formatFloat(poi.Lon),
			strconv.FormatInt(int64(poi.NearestOSMID), 10),
			formatFloat(poi.DistToNearest),
			poi.Category.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCellMappingCSV writes the H3 mapping as h3_cell_id;osm_node_id;node_id.
func WriteCellMappingCSV(path string, mapping []CellNode) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "can't create '%s'", path)
	}
	defer file.Close()
	writer := newCSVWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"h3_cell_id", "osm_node_id", "node_id"}); err != nil {
		return err
	}
	for _, cell := range mapping {
		record := []string{
			cell.Cell,
			strconv.FormatInt(int64(cell.OSMID), 10),
			strconv.Itoa(cell.NodeID),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// NodesFromCSV reads a nodes file written by WriteNodesCSV back in, e.g. to
// match POIs against a previously extracted graph.
func NodesFromCSV(path string) ([]GraphNode, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open '%s'", path)
	}
	defer file.Close()
	reader := csv.NewReader(file)
	reader.Comma = ';'

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "can't parse '%s'", path)
	}
	if len(records) == 0 {
		return nil, errors.Errorf("'%s' contains no header", path)
	}
	nodes := make([]GraphNode, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) < 4 {
			return nil, errors.Errorf("'%s' contains a malformed node record", path)
		}
		id, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, errors.Wrapf(err, "bad node_id in '%s'", path)
		}
		osmID, err := strconv.ParseInt(record[1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad osm_id in '%s'", path)
		}
		lat, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad lat in '%s'", path)
		}
		lon, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad lon in '%s'", path)
		}
		nodes = append(nodes, GraphNode{ID: id, OSMID: osm.NodeID(osmID), Lat: lat, Lon: lon})
	}
	return nodes, nil
}
