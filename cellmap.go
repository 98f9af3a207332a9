package pbfextract

import (
	"sort"

	"github.com/paulmach/osm"
	"github.com/pkg/errors"
	h3 "github.com/uber/h3-go/v4"
)

// cellResolution is the H3 resolution used for node bucketing (~0.7 km²
// cells).
const cellResolution = 8

// CellNode is the representative graph node of one H3 cell: the node
// closest to the cell center in planar space.
type CellNode struct {
	Cell   string
	OSMID  osm.NodeID
	NodeID int
}

// BuildCellMapping assigns every graph node to its resolution-8 H3 cell and
// keeps one representative node per cell. The result is sorted by cell id.
func BuildCellMapping(nodes []GraphNode, proj *Projection) ([]CellNode, error) {
	type closestNode struct {
		node GraphNode
		dist float64
	}
	best := make(map[h3.Cell]closestNode)
	for _, node := range nodes {
		cell := h3.LatLngToCell(h3.NewLatLng(node.Lat, node.Lon), cellResolution)
		center := h3.CellToLatLng(cell)
		dist, err := projectedDistance(proj, node.Lon, node.Lat, center.Lng, center.Lat)
		if err != nil {
			return nil, errors.Wrapf(err, "can't measure cell center distance for node %d", node.OSMID)
		}
		if current, ok := best[cell]; !ok || dist < current.dist {
			best[cell] = closestNode{node: node, dist: dist}
		}
	}

	mapping := make([]CellNode, 0, len(best))
	for cell, closest := range best {
		mapping = append(mapping, CellNode{
			Cell:   cell.String(),
			OSMID:  closest.node.OSMID,
			NodeID: closest.node.ID,
		})
	}
	sort.Slice(mapping, func(i, j int) bool { return mapping[i].Cell < mapping[j].Cell })
	return mapping, nil
}
