package shapefile

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// toMultiPolygon converts a go-shp shape to a geom.MultiPolygon.
// Contiguity weights are only defined for areal units, so any non-polygon
// shape type is an error rather than a skip.
func toMultiPolygon(shape shp.Shape) (*geom.MultiPolygon, error) {
	switch s := shape.(type) {
	case *shp.Polygon:
		mp := polygonToMultiPolygon(s)
		if mp == nil {
			return nil, eris.New("empty or malformed polygon")
		}
		return mp, nil
	case nil:
		return nil, eris.New("nil shape")
	default:
		return nil, eris.Errorf("unsupported shape type %T, contiguity requires polygons", shape)
	}
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Each part becomes its own single-ring polygon; shapefiles do not mark
// holes explicitly and vertex hashing treats rings uniformly anyway.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("shapefile: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}

		if err := mp.Push(poly); err != nil {
			zap.L().Debug("shapefile: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
