// Package vegas implements the Vegas-style stratified adaptive importance
// sampling Monte Carlo integrator described in spec.md §4.5: a grid of bin
// edges per dimension is trained during a warmup run and refined after
// every subsequent production run, concentrating samples where the
// integrand's contribution to the variance is largest.
package vegas

import (
	"math"
	"math/rand"
)

const dims = 5

// Options are the tunable knobs of spec.md §4.5/§6's environment defaults.
type Options struct {
	Calls                  int
	MaxIntegrationMomentum float64
	RelativeErrorGoal      float64
	AbsoluteErrorGoal      float64
	MaxTries               int
}

// DefaultOptions returns the defaults spec.md §6 names.
func DefaultOptions() Options {
	return Options{
		Calls:                  50000,
		MaxIntegrationMomentum: 20,
		RelativeErrorGoal:      1e-2,
		AbsoluteErrorGoal:      0,
		MaxTries:               50,
	}
}

// Result is the (mu, sigma, converged) report of spec.md §4.5.
type Result struct {
	Mean      float64
	Sigma     float64
	Converged bool
	Tries     int
}

// SampleFunc is the integrand: one 5-tuple (p2, phi2, phi3, cosTheta2,
// cosTheta3) in, one scalar value out.
type SampleFunc func(p2, phi2, phi3, cosTheta2, cosTheta3 float64) float64

// Integrator holds the adaptive grid state for one 5-dimensional box. It is
// not safe for concurrent use: spec.md §5 gives each worker its own
// Integrator, seeded from a disjoint stream via SplitSeed.
type Integrator struct {
	bins  int
	boxLo [dims]float64
	boxHi [dims]float64
	edges [dims][]float64 // len bins+1, each row spans [0,1]
	rng   *rand.Rand
	dHist [dims][]float64 // scratch, reused across iterations
}

// New returns an Integrator over the box spec.md §6 describes:
// [0,maxIntegrationMomentum] x [0,2pi]^2 x [-1,1]^2.
func New(maxIntegrationMomentum float64, seed int64, bins int) *Integrator {
	return NewBox([dims]float64{0, 0, 0, -1, -1}, [dims]float64{maxIntegrationMomentum, 2 * math.Pi, 2 * math.Pi, 1, 1}, seed, bins)
}

// NewBox returns an Integrator over an arbitrary axis-aligned box, mainly
// useful for testing the grid-refinement machinery against analytically
// known integrals.
func NewBox(lo, hi [dims]float64, seed int64, bins int) *Integrator {
	it := &Integrator{
		bins:  bins,
		boxLo: lo,
		boxHi: hi,
		rng:   rand.New(rand.NewSource(seed)),
	}
	for d := 0; d < dims; d++ {
		it.edges[d] = uniformEdges(bins)
		it.dHist[d] = make([]float64, bins)
	}
	return it
}

func uniformEdges(bins int) []float64 {
	e := make([]float64, bins+1)
	for i := range e {
		e[i] = float64(i) / float64(bins)
	}
	return e
}

// SplitSeed deterministically derives a worker's RNG seed from the
// process-wide master seed and the worker's id, per spec.md §4.5's
// "parallel workers derive disjoint streams by stream-splitting from the
// master seed." The mixing step is SplitMix64's finalizer, chosen because
// it is a small, well-known, allocation-free way to turn two integers into
// an evenly distributed one without pulling in an external RNG library.
func SplitSeed(master int64, workerID int) int64 {
	z := uint64(master) + uint64(workerID)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z ^= z >> 31
	return int64(z)
}

// Run executes the two-phase protocol of spec.md §4.5: a warmup of
// ceil(0.2*calls) samples to train the grid, then repeated production runs
// of calls samples, stopping when the running combined estimate satisfies
// the relative or absolute error goal, or maxTries is reached.
func (it *Integrator) Run(f SampleFunc, opts Options) Result {
	warmup := int(math.Ceil(0.2 * float64(opts.Calls)))
	if warmup > 0 {
		it.runIteration(f, warmup, true)
	}

	var sumWeight, sumWeightedMean float64
	tries := 0
	for tries < opts.MaxTries {
		tries++
		mean, sigma := it.runIteration(f, opts.Calls, true)

		w := 0.0
		if sigma > 0 {
			w = 1 / (sigma * sigma)
		}
		if w == 0 {
			// A perfectly zero-variance run: trust it outright.
			sumWeight = 1
			sumWeightedMean = mean
		} else {
			sumWeight += w
			sumWeightedMean += w * mean
		}

		combinedMean := sumWeightedMean / sumWeight
		combinedSigma := 0.0
		if sumWeight > 0 {
			combinedSigma = math.Sqrt(1 / sumWeight)
		}

		if converged(combinedMean, combinedSigma, opts) {
			return Result{Mean: combinedMean, Sigma: combinedSigma, Converged: true, Tries: tries}
		}

		if tries == opts.MaxTries {
			return Result{Mean: combinedMean, Sigma: combinedSigma, Converged: false, Tries: tries}
		}
	}
	return Result{Converged: false, Tries: tries}
}

func converged(mean, sigma float64, opts Options) bool {
	if sigma <= opts.AbsoluteErrorGoal {
		return true
	}
	if mean == 0 {
		return false
	}
	return sigma/math.Abs(mean) <= opts.RelativeErrorGoal
}

// runIteration draws n samples through the current grid, optionally
// accumulating per-bin contributions and refining the grid for the next
// iteration.
func (it *Integrator) runIteration(f SampleFunc, n int, refine bool) (mean, sigma float64) {
	if refine {
		for d := 0; d < dims; d++ {
			for i := range it.dHist[d] {
				it.dHist[d][i] = 0
			}
		}
	}

	var sample [dims]float64
	var bin [dims]int

	var sum, sumSq float64
	for i := 0; i < n; i++ {
		jacobian := 1.0
		for d := 0; d < dims; d++ {
			u := it.rng.Float64() * float64(it.bins)
			ib := int(u)
			if ib >= it.bins {
				ib = it.bins - 1
			}
			frac := u - float64(ib)
			xLo, xHi := it.edges[d][ib], it.edges[d][ib+1]
			width := xHi - xLo
			y := xLo + frac*width
			sample[d] = it.boxLo[d] + y*(it.boxHi[d]-it.boxLo[d])
			jacobian *= width * float64(it.bins) * (it.boxHi[d] - it.boxLo[d])
			bin[d] = ib
		}

		value := f(sample[0], sample[1], sample[2], sample[3], sample[4]) * jacobian
		sum += value
		sumSq += value * value

		if refine {
			contribution := value * value
			for d := 0; d < dims; d++ {
				it.dHist[d][bin[d]] += contribution
			}
		}
	}

	mean = sum / float64(n)
	if n > 1 {
		variance := (sumSq/float64(n) - mean*mean) * float64(n) / float64(n-1)
		if variance < 0 {
			variance = 0
		}
		sigma = math.Sqrt(variance / float64(n))
	}

	if refine {
		for d := 0; d < dims; d++ {
			it.edges[d] = rebin(it.edges[d], it.dHist[d])
		}
	}

	return mean, sigma
}

// rebin redistributes bin edges so that each new bin captures an equal
// share of the accumulated weight d, the classic Vegas grid-refinement
// step. If no bin received any weight, the grid is returned unchanged.
func rebin(edges, d []float64) []float64 {
	bins := len(d)

	smoothed := make([]float64, bins)
	total := 0.0
	for i := range d {
		lo, hi := d[i], d[i]
		if i > 0 {
			lo = d[i-1]
		}
		if i < bins-1 {
			hi = d[i+1]
		}
		smoothed[i] = (lo + d[i] + hi) / 3
		total += smoothed[i]
	}
	if total <= 0 {
		return edges
	}

	avgPerBin := total / float64(bins)

	newEdges := make([]float64, bins+1)
	newEdges[0] = edges[0]
	newEdges[bins] = edges[bins]

	oldBin := 0
	position := edges[0]
	remaining := smoothed[0]

	for newIdx := 1; newIdx < bins; newIdx++ {
		target := avgPerBin
		for target > 0 && oldBin < bins {
			if remaining > target {
				position += (target / remaining) * (edges[oldBin+1] - position)
				remaining -= target
				target = 0
			} else {
				target -= remaining
				oldBin++
				if oldBin >= bins {
					position = edges[bins]
					break
				}
				position = edges[oldBin]
				remaining = smoothed[oldBin]
			}
		}
		newEdges[newIdx] = position
	}

	return newEdges
}
