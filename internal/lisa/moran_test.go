package lisa

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/eforoutan/LocalMorans/internal/weights"
)

// squareMP builds a single-square MultiPolygon at (x, y).
func squareMP(x, y, size float64) *geom.MultiPolygon {
	flat := []float64{
		x, y,
		x, y + size,
		x + size, y + size,
		x + size, y,
		x, y,
	}
	poly := geom.NewPolygon(geom.XY)
	if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
		panic(err)
	}
	mp := geom.NewMultiPolygon(geom.XY)
	if err := mp.Push(poly); err != nil {
		panic(err)
	}
	return mp
}

// grid builds a cols x rows tiling of unit squares, row-major.
func grid(cols, rows int) []*geom.MultiPolygon {
	var geoms []*geom.MultiPolygon
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			geoms = append(geoms, squareMP(float64(c), float64(r), 1))
		}
	}
	return geoms
}

func queenGrid(t *testing.T, cols, rows int) *weights.Matrix {
	t.Helper()
	m, err := weights.Build(grid(cols, rows), weights.Queen)
	require.NoError(t, err)
	return m
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Seed = 42
	return cfg
}

func TestComputeStatistic(t *testing.T) {
	// 2x2 tiling: under queen contiguity all four squares share the
	// center vertex, so every unit neighbors every other.
	m := queenGrid(t, 2, 2)
	values := []float64{1, 2, 3, 4}

	res, err := Compute(context.Background(), values, m, testConfig())
	require.NoError(t, err)

	// Hand-computed: z = [-1.5 -0.5 0.5 1.5], sum(z^2) = 5, scale = 3/5.
	want := []float64{-0.45, -0.05, -0.05, -0.45}
	for i, w := range want {
		assert.InDelta(t, w, res.I[i], 1e-12, "I[%d]", i)
	}
	assert.Equal(t, []int{2, 2, 4, 4}, res.Quadrant)

	for i := range values {
		assert.Greater(t, res.PValue[i], 0.0)
		assert.LessOrEqual(t, res.PValue[i], 1.0)
	}
}

func TestComputeDeterministic(t *testing.T) {
	m := queenGrid(t, 3, 3)
	values := []float64{9, 1, 4, 6, 2, 8, 3, 7, 5}

	cfg := testConfig()
	a, err := Compute(context.Background(), values, m, cfg)
	require.NoError(t, err)
	b, err := Compute(context.Background(), values, m, cfg)
	require.NoError(t, err)

	assert.Equal(t, a.PValue, b.PValue)
	assert.Equal(t, a.ZScore, b.ZScore)
	assert.Equal(t, a.Class, b.Class)
}

// gridValues builds a 6x6 value surface: background bg with overrides at
// row-major cell indices.
func gridValues(bg float64, overrides map[int]float64) []float64 {
	v := make([]float64, 36)
	for i := range v {
		v[i] = bg
	}
	for i, o := range overrides {
		v[i] = o
	}
	return v
}

func TestComputeClusters(t *testing.T) {
	m := queenGrid(t, 6, 6)

	// High 2x2 block top-left, low 2x2 block bottom-right, background 40.
	values := gridValues(40, map[int]float64{
		0: 100, 1: 100, 6: 100, 7: 100,
		28: 0, 29: 0, 34: 0, 35: 0,
	})

	res, err := Compute(context.Background(), values, m, testConfig())
	require.NoError(t, err)

	// Corner of the high block: all three neighbors high.
	assert.Equal(t, 1, res.Quadrant[0])
	assert.Less(t, res.PValue[0], 0.05)
	assert.Equal(t, Hotspot, res.Class[0])
	assert.Greater(t, res.ZScore[0], 0.0)

	// Corner of the low block: all three neighbors low.
	assert.Equal(t, 3, res.Quadrant[35])
	assert.Less(t, res.PValue[35], 0.05)
	assert.Equal(t, Coldspot, res.Class[35])

	// Background cell far from both blocks.
	assert.Equal(t, NonSig, res.Class[18])
}

func TestComputeOutliers(t *testing.T) {
	m := queenGrid(t, 6, 6)

	// 3x3 high block top-left with a low hole at its center (1,1), and a
	// lone high at (5,5) ringed by lows.
	values := gridValues(40, map[int]float64{
		0: 100, 1: 100, 2: 100,
		6: 100, 7: 0, 8: 100,
		12: 100, 13: 100, 14: 100,
		28: 0, 29: 0, 34: 0,
		35: 100,
	})

	res, err := Compute(context.Background(), values, m, testConfig())
	require.NoError(t, err)

	// Low value surrounded by highs.
	assert.Equal(t, 2, res.Quadrant[7])
	assert.Less(t, res.PValue[7], 0.05)
	assert.Equal(t, OutlierLowHigh, res.Class[7])

	// High value surrounded by lows.
	assert.Equal(t, 4, res.Quadrant[35])
	assert.Less(t, res.PValue[35], 0.05)
	assert.Equal(t, OutlierHighLow, res.Class[35])
}

func TestComputeIsland(t *testing.T) {
	geoms := grid(3, 3)
	geoms = append(geoms, squareMP(100, 100, 1))
	m, err := weights.Build(geoms, weights.Queen)
	require.NoError(t, err)

	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 50}
	res, err := Compute(context.Background(), values, m, testConfig())
	require.NoError(t, err)

	assert.Equal(t, 0, res.Quadrant[9])
	assert.Equal(t, 0.0, res.I[9])
	assert.Equal(t, 1.0, res.PValue[9])
	assert.Equal(t, 0.0, res.ZScore[9])
	assert.Equal(t, NonSig, res.Class[9])
}

func TestComputeErrors(t *testing.T) {
	m := queenGrid(t, 2, 2)
	ctx := context.Background()

	_, err := Compute(ctx, []float64{1, 2, 3}, m, testConfig())
	assert.Error(t, err, "length mismatch")

	_, err = Compute(ctx, []float64{5, 5, 5, 5}, m, testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zero variance")

	cfg := testConfig()
	cfg.Permutations = 0
	_, err = Compute(ctx, []float64{1, 2, 3, 4}, m, cfg)
	assert.Error(t, err, "permutations")

	cfg = testConfig()
	cfg.Alpha = 1.5
	_, err = Compute(ctx, []float64{1, 2, 3, 4}, m, cfg)
	assert.Error(t, err, "alpha")
}

func TestGlobal(t *testing.T) {
	m := queenGrid(t, 2, 2)

	// Checkerboard-ish ramp: negative global autocorrelation.
	g, err := Global([]float64{1, 2, 3, 4}, m)
	require.NoError(t, err)
	assert.InDelta(t, -1.0/3.0, g, 1e-12)

	_, err = Global([]float64{7, 7, 7, 7}, m)
	assert.Error(t, err)
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "Non-sig", NonSig.String())
	assert.Equal(t, "Hotspot (High-High)", Hotspot.String())
	assert.Equal(t, "Coldspot(Low-Low)", Coldspot.String())
	assert.Equal(t, "outlier(Low-High)", OutlierLowHigh.String())
	assert.Equal(t, "outlier(High-Low)", OutlierHighLow.String())
	assert.Equal(t, "Non-sig", Class(99).String())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		quadrant int
		p        float64
		want     Class
	}{
		{name: "significant high-high", quadrant: 1, p: 0.01, want: Hotspot},
		{name: "significant low-low", quadrant: 3, p: 0.01, want: Coldspot},
		{name: "significant low-high", quadrant: 2, p: 0.01, want: OutlierLowHigh},
		{name: "significant high-low", quadrant: 4, p: 0.01, want: OutlierHighLow},
		{name: "insignificant high-high", quadrant: 1, p: 0.2, want: NonSig},
		{name: "at alpha is not significant", quadrant: 1, p: 0.05, want: NonSig},
		{name: "island never significant", quadrant: 0, p: 0.001, want: NonSig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.quadrant, tt.p, 0.05))
		})
	}
}
