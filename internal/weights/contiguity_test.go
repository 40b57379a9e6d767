package weights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
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

// grid3x3 builds a 3x3 tiling of unit squares, row-major.
func grid3x3() []*geom.MultiPolygon {
	var geoms []*geom.MultiPolygon
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			geoms = append(geoms, squareMP(float64(c), float64(r), 1))
		}
	}
	return geoms
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{in: "queen", want: Queen},
		{in: "QUEEN", want: Queen},
		{in: "Rook", want: Rook},
		{in: "bishop", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "queen or rook")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildQueenGrid(t *testing.T) {
	m, err := Build(grid3x3(), Queen)
	require.NoError(t, err)
	require.Equal(t, 9, m.Len())

	// Corner touches its two edge neighbors plus the diagonal.
	assert.Equal(t, []int{1, 3, 4}, m.Neighbors[0])
	// Center touches all eight cells.
	assert.Equal(t, []int{0, 1, 2, 3, 5, 6, 7, 8}, m.Neighbors[4])
	// Mid-edge touches five cells.
	assert.Equal(t, []int{0, 2, 3, 4, 5}, m.Neighbors[1])
}

func TestBuildRookGrid(t *testing.T) {
	m, err := Build(grid3x3(), Rook)
	require.NoError(t, err)

	// Diagonal contact does not count under rook.
	assert.Equal(t, []int{1, 3}, m.Neighbors[0])
	assert.Equal(t, []int{1, 3, 5, 7}, m.Neighbors[4])
	assert.Equal(t, []int{0, 2, 4}, m.Neighbors[1])
}

func TestBuildSymmetric(t *testing.T) {
	for _, typ := range []Type{Queen, Rook} {
		m, err := Build(grid3x3(), typ)
		require.NoError(t, err)
		for i, nbrs := range m.Neighbors {
			for _, j := range nbrs {
				assert.Contains(t, m.Neighbors[j], i, "%s: %d -> %d not symmetric", typ, i, j)
			}
		}
	}
}

func TestBuildRowStandardized(t *testing.T) {
	m, err := Build(grid3x3(), Queen)
	require.NoError(t, err)
	for i, w := range m.Weights {
		var sum float64
		for _, v := range w {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-12, "row %d", i)
	}
}

func TestBuildIsland(t *testing.T) {
	geoms := grid3x3()
	geoms = append(geoms, squareMP(100, 100, 1))

	m, err := Build(geoms, Queen)
	require.NoError(t, err)
	assert.Equal(t, []int{9}, m.Islands())
	assert.Empty(t, m.Neighbors[9])
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(nil, Queen)
	assert.Error(t, err)

	_, err = Build(grid3x3(), Type("bishop"))
	assert.Error(t, err)
}

func TestLag(t *testing.T) {
	m, err := Build(grid3x3(), Rook)
	require.NoError(t, err)

	z := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	lag := m.Lag(z)

	// Unit 0 neighbors are 1 and 3: mean of 2 and 4.
	assert.InDelta(t, 3.0, lag[0], 1e-12)
	// Center neighbors are 1, 3, 5, 7: mean of 2, 4, 6, 8.
	assert.InDelta(t, 5.0, lag[4], 1e-12)
}

func TestSummarize(t *testing.T) {
	geoms := grid3x3()
	geoms = append(geoms, squareMP(100, 100, 1))

	m, err := Build(geoms, Rook)
	require.NoError(t, err)

	s := m.Summarize()
	assert.Equal(t, 10, s.Units)
	assert.Equal(t, Rook, s.Type)
	// 3x3 rook: 12 undirected adjacencies = 24 nonzero entries.
	assert.Equal(t, 24, s.Links)
	assert.Equal(t, 0, s.MinNeighbors)
	assert.Equal(t, 4, s.MaxNeighbors)
	assert.Equal(t, 1, s.Islands)
	assert.InDelta(t, 2.4, s.AvgNeighbors, 1e-12)
}
