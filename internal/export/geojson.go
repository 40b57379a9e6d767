// Package export writes analysis results as GeoJSON and CSV, the two
// files the workflow contract names.
package export

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/eforoutan/LocalMorans/internal/lisa"
	"github.com/eforoutan/LocalMorans/internal/shapefile"
)

// WriteGeoJSON writes one feature per areal unit: the geometry plus the
// analyzed field and the LISA columns.
func WriteGeoJSON(path string, ds *shapefile.Dataset, res *lisa.Result) error {
	if ds.Len() != len(res.I) {
		return eris.Errorf("export: %d units but %d results", ds.Len(), len(res.I))
	}

	features := make([]*geojson.Feature, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		features[i] = &geojson.Feature{
			Geometry:   ds.Geoms[i],
			Properties: properties(ds, res, i),
		}
	}

	data, err := json.Marshal(&geojson.FeatureCollection{Features: features})
	if err != nil {
		return eris.Wrap(err, "export: marshal geojson")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

// properties builds the per-unit attribute map shared by both writers.
func properties(ds *shapefile.Dataset, res *lisa.Result, i int) map[string]interface{} {
	return map[string]interface{}{
		ds.Field:     ds.Values[i],
		"LocMoranI":  res.I[i],
		"p_value":    res.PValue[i],
		"Z_score":    res.ZScore[i],
		"LISA_Clust": res.Class[i].String(),
	}
}
