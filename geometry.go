package pbfextract

import (
	"os"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// BoundaryFromPoints builds a bounding polygon from geographic (lat, lon)
// pairs forming one outer ring without holes. The ring is closed if the
// input leaves it open.
func BoundaryFromPoints(points [][2]float64) orb.Polygon {
	if len(points) == 0 {
		return nil
	}
	ring := make(orb.Ring, 0, len(points)+1)
	for _, pt := range points {
		ring = append(ring, orb.Point{pt[1], pt[0]})
	}
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}
}

// BoundaryFromGeoJSON reads a bounding polygon from a GeoJSON file holding a
// Polygon geometry (or a Feature wrapping one). Only the outer ring is used.
func BoundaryFromGeoJSON(path string) (orb.Polygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't read boundary file '%s'", path)
	}
	geometry, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		if feature, ferr := geojson.UnmarshalFeature(data); ferr == nil {
			geometry = feature.Geometry
		} else {
			return nil, errors.Wrapf(err, "can't parse boundary file '%s'", path)
		}
	}
	if geometry == nil || !geometry.IsPolygon() || len(geometry.Polygon) == 0 {
		return nil, errors.Errorf("boundary file '%s' does not contain a polygon", path)
	}
	outer := geometry.Polygon[0]
	ring := make(orb.Ring, 0, len(outer)+1)
	for _, pt := range outer {
		if len(pt) < 2 {
			return nil, errors.Errorf("boundary file '%s' contains a malformed coordinate", path)
		}
		ring = append(ring, orb.Point{pt[0], pt[1]})
	}
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}, nil
}
