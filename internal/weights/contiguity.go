// Package weights builds spatial contiguity weights for polygon units.
package weights

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Type selects the contiguity rule.
type Type string

const (
	// Queen treats units sharing at least one boundary vertex as neighbors.
	Queen Type = "queen"
	// Rook treats units sharing at least one boundary edge as neighbors.
	Rook Type = "rook"
)

// ParseType validates a weight-type string.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(s)) {
	case Queen:
		return Queen, nil
	case Rook:
		return Rook, nil
	}
	return "", eris.Errorf("weights: invalid weight type %q, use queen or rook", s)
}

// Matrix is a row-standardized sparse spatial weights matrix. Neighbors[i]
// and Weights[i] are parallel: Weights[i][j] is the weight of edge
// i → Neighbors[i][j]. Every row with neighbors sums to 1.
type Matrix struct {
	Type      Type
	Neighbors [][]int
	Weights   [][]float64
}

// Len returns the number of units.
func (m *Matrix) Len() int { return len(m.Neighbors) }

// vertexKey identifies a ring vertex by its exact coordinates. Adjacent
// polygons in a common tiling carry bitwise-equal boundary coordinates, so
// float equality is the contiguity test (the same convention libpysal uses).
type vertexKey struct {
	x, y float64
}

// edgeKey identifies an undirected ring edge by its ordered endpoints.
type edgeKey struct {
	a, b vertexKey
}

func newEdgeKey(a, b vertexKey) edgeKey {
	if b.x < a.x || (b.x == a.x && b.y < a.y) {
		a, b = b, a
	}
	return edgeKey{a: a, b: b}
}

// Build constructs a contiguity matrix for the given unit geometries.
func Build(geoms []*geom.MultiPolygon, typ Type) (*Matrix, error) {
	if typ != Queen && typ != Rook {
		return nil, eris.Errorf("weights: invalid weight type %q, use queen or rook", typ)
	}
	if len(geoms) == 0 {
		return nil, eris.New("weights: no units")
	}

	// Map every shared vertex (queen) or edge (rook) to the units touching it.
	byVertex := make(map[vertexKey][]int)
	byEdge := make(map[edgeKey][]int)

	for i, mp := range geoms {
		seenV := make(map[vertexKey]bool)
		seenE := make(map[edgeKey]bool)
		forEachRing(mp, func(ring *geom.LinearRing) {
			n := ring.NumCoords()
			var prev vertexKey
			for c := 0; c < n; c++ {
				coord := ring.Coord(c)
				v := vertexKey{x: coord[0], y: coord[1]}
				if typ == Queen {
					if !seenV[v] {
						seenV[v] = true
						byVertex[v] = append(byVertex[v], i)
					}
				} else if c > 0 && v != prev {
					e := newEdgeKey(prev, v)
					if !seenE[e] {
						seenE[e] = true
						byEdge[e] = append(byEdge[e], i)
					}
				}
				prev = v
			}
		})
	}

	neighborSets := make([]map[int]bool, len(geoms))
	for i := range neighborSets {
		neighborSets[i] = make(map[int]bool)
	}

	link := func(units []int) {
		for _, a := range units {
			for _, b := range units {
				if a != b {
					neighborSets[a][b] = true
				}
			}
		}
	}
	if typ == Queen {
		for _, units := range byVertex {
			link(units)
		}
	} else {
		for _, units := range byEdge {
			link(units)
		}
	}

	m := &Matrix{
		Type:      typ,
		Neighbors: make([][]int, len(geoms)),
		Weights:   make([][]float64, len(geoms)),
	}
	for i, set := range neighborSets {
		nbrs := make([]int, 0, len(set))
		for j := range set {
			nbrs = append(nbrs, j)
		}
		sort.Ints(nbrs)
		m.Neighbors[i] = nbrs

		// Row standardization: each neighbor weighs 1/k.
		w := make([]float64, len(nbrs))
		for j := range w {
			w[j] = 1 / float64(len(nbrs))
		}
		m.Weights[i] = w
	}

	return m, nil
}

// forEachRing visits every linear ring of every polygon in mp.
func forEachRing(mp *geom.MultiPolygon, fn func(*geom.LinearRing)) {
	for p := 0; p < mp.NumPolygons(); p++ {
		poly := mp.Polygon(p)
		for r := 0; r < poly.NumLinearRings(); r++ {
			fn(poly.LinearRing(r))
		}
	}
}

// Lag computes the spatial lag W·z.
func (m *Matrix) Lag(z []float64) []float64 {
	lag := make([]float64, m.Len())
	for i, nbrs := range m.Neighbors {
		var s float64
		for j, nb := range nbrs {
			s += m.Weights[i][j] * z[nb]
		}
		lag[i] = s
	}
	return lag
}

// Islands returns the indices of units with no neighbors.
func (m *Matrix) Islands() []int {
	var islands []int
	for i, nbrs := range m.Neighbors {
		if len(nbrs) == 0 {
			islands = append(islands, i)
		}
	}
	return islands
}

// Summary describes the connectivity structure of a matrix.
type Summary struct {
	Units        int
	Type         Type
	Links        int // nonzero entries
	MinNeighbors int
	MaxNeighbors int
	AvgNeighbors float64
	Islands      int
}

// Summarize computes connectivity statistics for the matrix.
func (m *Matrix) Summarize() Summary {
	s := Summary{Units: m.Len(), Type: m.Type}
	if s.Units == 0 {
		return s
	}
	s.MinNeighbors = len(m.Neighbors[0])
	for _, nbrs := range m.Neighbors {
		k := len(nbrs)
		s.Links += k
		if k < s.MinNeighbors {
			s.MinNeighbors = k
		}
		if k > s.MaxNeighbors {
			s.MaxNeighbors = k
		}
		if k == 0 {
			s.Islands++
		}
	}
	s.AvgNeighbors = float64(s.Links) / float64(s.Units)
	return s
}
