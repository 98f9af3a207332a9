package pbfextract

import (
	"math"

	"github.com/pkg/errors"
	"github.com/wroge/wgs84"
)

// ErrUnknownCRS is returned when the requested EPSG code has no known
// coordinate reference system.
var ErrUnknownCRS = errors.New("unknown CRS code")

// Projection converts geographic WGS84 coordinates (degrees) to a planar
// coordinate reference system (meters) and back. Immutable after
// construction and safe for concurrent use.
type Projection struct {
	epsg    int
	forward wgs84.Func
	inverse wgs84.Func
}

// NewProjection builds a projection from EPSG:4326 to the planar CRS
// identified by the given EPSG code.
func NewProjection(epsgCode int) (*Projection, error) {
	repo := wgs84.EPSG()
	target := repo.Code(epsgCode)
	if target == nil {
		return nil, errors.Wrapf(ErrUnknownCRS, "EPSG:%d", epsgCode)
	}
	geographic := repo.Code(4326)
	return &Projection{
		epsg:    epsgCode,
		forward: wgs84.Transform(geographic, target),
		inverse: wgs84.Transform(target, geographic),
	}, nil
}

// EPSG returns the target CRS code.
func (p *Projection) EPSG() int {
	return p.epsg
}

// Forward projects geographic lon/lat degrees to planar x/y meters.
func (p *Projection) Forward(lon, lat float64) (float64, float64, error) {
	x, y, _ := p.forward(lon, lat, 0)
	if math.IsNaN(x) || math.IsNaN(y) {
		return 0, 0, errors.Errorf("can't project (%f, %f) to EPSG:%d", lon, lat, p.epsg)
	}
	return x, y, nil
}

// Inverse projects planar x/y meters back to geographic lon/lat degrees.
func (p *Projection) Inverse(x, y float64) (float64, float64, error) {
	lon, lat, _ := p.inverse(x, y, 0)
	if math.IsNaN(lon) || math.IsNaN(lat) {
		return 0, 0, errors.Errorf("can't unproject (%f, %f) from EPSG:%d", x, y, p.epsg)
	}
	return lon, lat, nil
}

// projectedDistance returns the planar Euclidean distance in target CRS
// units between two geographic points.
func projectedDistance(proj *Projection, lon1, lat1, lon2, lat2 float64) (float64, error) {
	x1, y1, err := proj.Forward(lon1, lat1)
	if err != nil {
		return 0, err
	}
	x2, y2, err := proj.Forward(lon2, lat2)
	if err != nil {
		return 0, err
	}
	return math.Hypot(x2-x1, y2-y1), nil
}
