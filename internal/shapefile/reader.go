// Package shapefile reads polygon shapefiles into in-memory datasets for
// contiguity analysis.
package shapefile

import (
	"math"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// Dataset holds the areal units read from a shapefile plus the target
// attribute column, missing values already imputed.
type Dataset struct {
	Path    string
	Field   string // resolved DBF field name, original casing
	Geoms   []*geom.MultiPolygon
	Values  []float64 // target column after mean imputation
	Missing []bool    // true where the source value was absent or unparsable
	Imputed int

	// FieldNames lists every DBF column, for diagnostics.
	FieldNames []string
}

// Len returns the number of areal units.
func (d *Dataset) Len() int { return len(d.Geoms) }

// Read opens the shapefile at path and extracts field as a float64 column.
// The field is matched case-insensitively against the DBF columns. Missing
// or unparsable values are imputed with the mean of the present values.
func Read(path, field string) (*Dataset, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", path)
	}
	defer func() { _ = reader.Close() }()

	names, fieldIdx := fieldIndex(reader.Fields())

	idx, ok := fieldIdx[strings.ToLower(field)]
	if !ok {
		return nil, eris.Errorf("shapefile: field %q not found in attributes (available: %s)",
			field, strings.Join(names, ", "))
	}

	ds := &Dataset{
		Path:       path,
		Field:      names[idx],
		FieldNames: names,
	}

	for reader.Next() {
		recNo, shape := reader.Shape()

		mp, convErr := toMultiPolygon(shape)
		if convErr != nil {
			return nil, eris.Wrapf(convErr, "shapefile: record %d", recNo)
		}

		raw := strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
		val, parseErr := strconv.ParseFloat(raw, 64)
		missing := raw == "" || parseErr != nil || math.IsNaN(val)
		if missing {
			val = math.NaN()
		}

		ds.Geoms = append(ds.Geoms, mp)
		ds.Values = append(ds.Values, val)
		ds.Missing = append(ds.Missing, missing)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "shapefile: read %s", path)
	}

	if len(ds.Geoms) == 0 {
		return nil, eris.Errorf("shapefile: %s contains no records", path)
	}

	if err := imputeMean(ds); err != nil {
		return nil, err
	}

	if ds.Imputed > 0 {
		zap.L().Warn("shapefile: imputed missing values with field mean",
			zap.String("field", ds.Field),
			zap.Int("imputed", ds.Imputed),
			zap.Int("records", ds.Len()),
		)
	}

	return ds, nil
}

// ReadGeoms loads only the unit geometries, for weights inspection.
func ReadGeoms(path string) ([]*geom.MultiPolygon, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", path)
	}
	defer func() { _ = reader.Close() }()

	var geoms []*geom.MultiPolygon
	for reader.Next() {
		recNo, shape := reader.Shape()
		mp, convErr := toMultiPolygon(shape)
		if convErr != nil {
			return nil, eris.Wrapf(convErr, "shapefile: record %d", recNo)
		}
		geoms = append(geoms, mp)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "shapefile: read %s", path)
	}
	if len(geoms) == 0 {
		return nil, eris.Errorf("shapefile: %s contains no records", path)
	}
	return geoms, nil
}

// fieldIndex builds the DBF column list and a lowercase name → index map.
// DBF field names are fixed-width and NUL padded.
func fieldIndex(fields []shp.Field) ([]string, map[string]int) {
	names := make([]string, len(fields))
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		names[i] = name
		idx[strings.ToLower(name)] = i
	}
	return names, idx
}

// imputeMean replaces missing values with the mean of the present ones.
func imputeMean(ds *Dataset) error {
	var sum float64
	var n int
	for i, v := range ds.Values {
		if !ds.Missing[i] {
			sum += v
			n++
		}
	}
	if n == 0 {
		return eris.Errorf("shapefile: field %q has no numeric values", ds.Field)
	}

	mean := sum / float64(n)
	for i := range ds.Values {
		if ds.Missing[i] {
			ds.Values[i] = mean
			ds.Imputed++
		}
	}
	return nil
}
