// Package lisa implements the Local Moran's I statistic with conditional
// permutation inference.
package lisa

import (
	"context"
	"math/rand"
	"runtime"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/eforoutan/LocalMorans/internal/weights"
)

// Config controls the estimator.
type Config struct {
	// Permutations is the number of conditional randomizations used for
	// the pseudo p-values.
	Permutations int
	// Alpha is the significance cutoff for cluster classification.
	Alpha float64
	// Seed seeds the permutation RNG; 0 means nondeterministic.
	Seed int64
	// Workers caps the number of concurrent units; 0 means NumCPU.
	Workers int
}

// DefaultConfig returns the standard estimator settings.
func DefaultConfig() Config {
	return Config{
		Permutations: 999,
		Alpha:        0.05,
	}
}

// Result holds per-unit Local Moran's I statistics. All slices are
// parallel to the input units.
type Result struct {
	I        []float64
	PValue   []float64 // conditional permutation pseudo p, folded two-tail
	ZScore   []float64 // standardized I under the permutation distribution
	Quadrant []int     // 1 HH, 2 LH, 3 LL, 4 HL, 0 island
	Class    []Class
	Alpha    float64
}

// Compute runs the Local Moran's I estimator. Units with no neighbors get
// I = 0, p = 1 and are never classified as significant.
//
// For unit i with deviations z and row-standardized lag, the statistic is
// (n-1) * z_i * lag_i / sum(z^2). The pseudo p-value conditions on z_i:
// the remaining n-1 deviations are permuted and k_i of them stand in for
// the neighbors.
func Compute(ctx context.Context, values []float64, w *weights.Matrix, cfg Config) (*Result, error) {
	n := len(values)
	if n != w.Len() {
		return nil, eris.Errorf("lisa: %d values but %d units in weights", n, w.Len())
	}
	if n < 2 {
		return nil, eris.Errorf("lisa: need at least 2 units, got %d", n)
	}
	if cfg.Permutations < 1 {
		return nil, eris.Errorf("lisa: permutations must be positive, got %d", cfg.Permutations)
	}
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		return nil, eris.Errorf("lisa: alpha must be in (0, 1), got %g", cfg.Alpha)
	}

	mean := stat.Mean(values, nil)
	z := make([]float64, n)
	var den float64
	for i, v := range values {
		z[i] = v - mean
		den += z[i] * z[i]
	}
	if den == 0 {
		return nil, eris.New("lisa: field has zero variance")
	}

	lag := w.Lag(z)
	scale := float64(n-1) / den

	res := &Result{
		I:        make([]float64, n),
		PValue:   make([]float64, n),
		ZScore:   make([]float64, n),
		Quadrant: make([]int, n),
		Class:    make([]Class, n),
		Alpha:    cfg.Alpha,
	}
	for i := 0; i < n; i++ {
		res.I[i] = scale * z[i] * lag[i]
		res.Quadrant[i] = quadrant(z[i], lag[i], len(w.Neighbors[i]))
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return eris.Wrap(err, "lisa: cancelled")
			}
			// A per-unit source keeps results deterministic for a given
			// seed regardless of scheduling.
			rng := rand.New(rand.NewSource(seed + int64(i)))
			res.PValue[i], res.ZScore[i] = permute(rng, z, w.Weights[i], w.Neighbors[i], i, res.I[i], scale, cfg.Permutations)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		res.Class[i] = classify(res.Quadrant[i], res.PValue[i], cfg.Alpha)
	}
	return res, nil
}

// permute computes the conditional permutation pseudo p-value and
// permutation z-score for a single unit.
func permute(rng *rand.Rand, z []float64, wRow []float64, nbrs []int, i int, observed, scale float64, perms int) (p, zScore float64) {
	k := len(nbrs)
	if k == 0 {
		// Degenerate distribution: the lag is always zero.
		return 1, 0
	}

	// Pool of deviations excluding unit i.
	pool := make([]float64, 0, len(z)-1)
	for j, v := range z {
		if j != i {
			pool = append(pool, v)
		}
	}

	sims := make([]float64, perms)
	larger := 0
	for s := 0; s < perms; s++ {
		// Partial Fisher-Yates: only the first k draws are used.
		for j := 0; j < k; j++ {
			swap := j + rng.Intn(len(pool)-j)
			pool[j], pool[swap] = pool[swap], pool[j]
		}
		var lag float64
		for j := 0; j < k; j++ {
			lag += wRow[j] * pool[j]
		}
		sims[s] = scale * z[i] * lag
		if sims[s] >= observed {
			larger++
		}
	}

	if perms-larger < larger {
		larger = perms - larger
	}
	p = float64(larger+1) / float64(perms+1)

	mean := stat.Mean(sims, nil)
	sd := stat.PopStdDev(sims, nil)
	if sd == 0 {
		return p, 0
	}
	return p, (observed - mean) / sd
}

// quadrant returns the Moran scatterplot quadrant: 1 high-high, 2 low-high,
// 3 low-low, 4 high-low. Islands get 0.
func quadrant(z, lag float64, neighbors int) int {
	if neighbors == 0 {
		return 0
	}
	zp, lp := z > 0, lag > 0
	switch {
	case zp && lp:
		return 1
	case !zp && lp:
		return 2
	case !zp && !lp:
		return 3
	default:
		return 4
	}
}

// Global computes the global Moran's I for the same values and weights,
// used as a run summary statistic.
func Global(values []float64, w *weights.Matrix) (float64, error) {
	n := len(values)
	if n != w.Len() {
		return 0, eris.Errorf("lisa: %d values but %d units in weights", n, w.Len())
	}
	if n < 2 {
		return 0, eris.Errorf("lisa: need at least 2 units, got %d", n)
	}

	mean := stat.Mean(values, nil)
	z := make([]float64, n)
	var den float64
	for i, v := range values {
		z[i] = v - mean
		den += z[i] * z[i]
	}
	if den == 0 {
		return 0, eris.New("lisa: field has zero variance")
	}

	var s0, num float64
	lag := w.Lag(z)
	for i := 0; i < n; i++ {
		num += z[i] * lag[i]
		for _, wij := range w.Weights[i] {
			s0 += wij
		}
	}
	if s0 == 0 {
		return 0, eris.New("lisa: weights matrix has no links")
	}

	return float64(n) / s0 * num / den, nil
}
