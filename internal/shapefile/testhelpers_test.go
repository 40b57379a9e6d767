package shapefile

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
)

// squarePoly builds a closed unit-square shapefile polygon at (x, y).
func squarePoly(x, y, size float64) *shp.Polygon {
	pts := []shp.Point{
		{X: x, Y: y},
		{X: x, Y: y + size},
		{X: x + size, Y: y + size},
		{X: x + size, Y: y},
		{X: x, Y: y},
	}
	return &shp.Polygon{
		Box:       shp.Box{MinX: x, MinY: y, MaxX: x + size, MaxY: y + size},
		NumParts:  1,
		NumPoints: int32(len(pts)),
		Parts:     []int32{0},
		Points:    pts,
	}
}

// writeGrid writes a cols x rows grid of unit squares to path with a NAME
// string column and a VALUE float column. values holds one entry per cell
// in row-major order; an empty string leaves the DBF cell blank.
func writeGrid(t *testing.T, path string, cols, rows int, values []float64, blank map[int]bool) {
	t.Helper()
	require.Len(t, values, cols*rows)

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	w.SetFields([]shp.Field{
		shp.StringField("NAME", 20),
		shp.FloatField("VALUE", 16, 6),
	})

	n := 0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			w.Write(squarePoly(float64(c), float64(r), 1))
			require.NoError(t, w.WriteAttribute(n, 0, fmt.Sprintf("cell-%d", n)))
			if !blank[n] {
				require.NoError(t, w.WriteAttribute(n, 1, values[n]))
			}
			n++
		}
	}

	finishShapefile(t, w, path)
}

// finishShapefile closes the writer and moves the DBF sidecar to the name
// readers expect: go-shp's Create trims the whole ".shp" suffix, so the
// attribute file lands at <base>dbf instead of <base>.dbf.
func finishShapefile(t *testing.T, w *shp.Writer, path string) {
	t.Helper()
	w.Close()
	base := strings.TrimSuffix(path, ".shp")
	require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
}
