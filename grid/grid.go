// Package grid implements the parallel fork-join sweep of spec.md §4.6:
// enumerate the independent (m,n,j,k) index set, evaluate each point's
// collision integral with a per-worker Vegas integrator, and assemble a
// CollisionResultsGrid, cooperatively cancellable between points.
package grid

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/JulianSchoen/WallGo/basis"
	"github.com/JulianSchoen/WallGo/collision"
	"github.com/JulianSchoen/WallGo/integrand"
	"github.com/JulianSchoen/WallGo/kinematics"
	"github.com/JulianSchoen/WallGo/store"
	"github.com/JulianSchoen/WallGo/vegas"
	"github.com/sirupsen/logrus"
)

// ReductionMode selects whether the driver exploits the k<->N-k parity
// reflection identity of spec.md §4.6 to halve the evaluated point count.
type ReductionMode int

const (
	// ReductionNone evaluates every (m,n,j,k) point directly.
	ReductionNone ReductionMode = iota
	// ReductionParity evaluates only k in [1, N/2] and reconstructs the
	// remainder via result(m,n,j,N-k) = parity(n) * result(m,n,j,k).
	ReductionParity
)

func (r ReductionMode) String() string {
	if r == ReductionParity {
		return "parity"
	}
	return "none"
}

// GridPoint is one independent work unit of spec.md §4.6.
type GridPoint struct {
	M, N, J, K int
}

// CollisionResultsGrid holds the (m,n,j,k)-indexed integration results, one
// cell per combination of m in [2,N], n in [1,N-1], j in [1,N-1], k in
// [1,N-1]. Cells are allocated over the full [0,N]^4 range for simple
// direct indexing; cells outside the valid ranges are left at their zero
// value and Evaluated=false.
type CollisionResultsGrid struct {
	BasisSize     int
	ReductionMode ReductionMode

	Result    [][][][]float64
	Error     [][][][]float64
	Converged [][][][]bool
	Evaluated [][][][]bool
}

// NewCollisionResultsGrid allocates a grid sized for basis size n, every
// cell initialized to notEvaluated.
func NewCollisionResultsGrid(n int) *CollisionResultsGrid {
	dim := n + 1
	g := &CollisionResultsGrid{
		BasisSize: n,
		Result:    alloc4f(dim),
		Error:     alloc4f(dim),
		Converged: alloc4b(dim),
		Evaluated: alloc4b(dim),
	}
	return g
}

func alloc4f(dim int) [][][][]float64 {
	out := make([][][][]float64, dim)
	for i := range out {
		out[i] = make([][][]float64, dim)
		for j := range out[i] {
			out[i][j] = make([][]float64, dim)
			for k := range out[i][j] {
				out[i][j][k] = make([]float64, dim)
			}
		}
	}
	return out
}

func alloc4b(dim int) [][][][]bool {
	out := make([][][][]bool, dim)
	for i := range out {
		out[i] = make([][][]bool, dim)
		for j := range out[i] {
			out[i][j] = make([][]bool, dim)
			for k := range out[i][j] {
				out[i][j][k] = make([]bool, dim)
			}
		}
	}
	return out
}

// Flatten packs the grid into the row-major store.Dataset layout for the
// given particle pair, for callers persisting through a store.Store.
func (g *CollisionResultsGrid) Flatten(pair [2]string) store.Dataset {
	dim := g.BasisSize + 1
	size := dim * dim * dim * dim
	ds := store.Dataset{
		Pair:      pair,
		Shape:     [4]int{dim, dim, dim, dim},
		Result:    make([]float64, 0, size),
		Error:     make([]float64, 0, size),
		Converged: make([]bool, 0, size),
	}
	for m := 0; m < dim; m++ {
		for n := 0; n < dim; n++ {
			for j := 0; j < dim; j++ {
				for k := 0; k < dim; k++ {
					ds.Result = append(ds.Result, g.Result[m][n][j][k])
					ds.Error = append(ds.Error, g.Error[m][n][j][k])
					ds.Converged = append(ds.Converged, g.Converged[m][n][j][k])
				}
			}
		}
	}
	return ds
}

func (g *CollisionResultsGrid) set(p GridPoint, result, errVal float64, converged bool) {
	g.Result[p.M][p.N][p.J][p.K] = result
	g.Error[p.M][p.N][p.J][p.K] = errVal
	g.Converged[p.M][p.N][p.J][p.K] = converged
	g.Evaluated[p.M][p.N][p.J][p.K] = true
}

// parityOf is the reflection sign spec.md §4.6 attaches to the k<->N-k
// identity: even n reflects with the same sign, odd n flips it.
func parityOf(n int) float64 {
	if n%2 == 0 {
		return 1
	}
	return -1
}

// enumeratePoints lists every independent work unit for basis size n, in
// increasing (m,n,j,k) order, restricted to the reduced k range when mode
// is ReductionParity.
func enumeratePoints(n int, mode ReductionMode) []GridPoint {
	var points []GridPoint
	kMax := n - 1
	if mode == ReductionParity {
		kMax = n / 2
		if kMax < 1 {
			kMax = 1
		}
	}
	for m := 2; m <= n; m++ {
		for nn := 1; nn <= n-1; nn++ {
			for j := 1; j <= n-1; j++ {
				for k := 1; k <= kMax; k++ {
					points = append(points, GridPoint{M: m, N: nn, J: j, K: k})
				}
			}
		}
	}
	return points
}

// reconstructParity fills in the k > N/2 half of the grid from the
// evaluated k <= N/2 half, per the reflection identity enumeratePoints
// skipped when mode is ReductionParity.
func reconstructParity(g *CollisionResultsGrid) {
	n := g.BasisSize
	for m := 2; m <= n; m++ {
		for nn := 1; nn <= n-1; nn++ {
			sign := parityOf(nn)
			for k := n/2 + 1; k <= n-1; k++ {
				mirror := n - k
				if mirror < 1 || mirror > n-1 {
					continue
				}
				for j := 1; j <= n-1; j++ {
					if !g.Evaluated[m][nn][j][mirror] {
						continue
					}
					g.Result[m][nn][j][k] = sign * g.Result[m][nn][j][mirror]
					g.Error[m][nn][j][k] = g.Error[m][nn][j][mirror]
					g.Converged[m][nn][j][k] = g.Converged[m][nn][j][mirror]
					g.Evaluated[m][nn][j][k] = true
				}
			}
		}
	}
}

// Driver runs the parallel sweep described by spec.md §4.6.
type Driver struct {
	Basis                     basis.Basis
	Workers                   int
	OptimizeUltrarelativistic bool
	ReductionMode             ReductionMode
	VegasOptions              vegas.Options
	VegasBins                 int
	MasterSeed                int64

	// ShouldContinue is polled by the single dispatching goroutine between
	// grid points, never from inside a worker's integration loop (spec.md
	// §5's cancellation discipline). A nil value never cancels.
	ShouldContinue func() bool

	// CacheLookup, if non-nil, is consulted by the dispatching goroutine
	// before a point is sent to a worker; a hit is written directly into
	// the result grid without spending any Vegas samples on it. CacheStore,
	// if non-nil, is called after every point a worker finishes; cache hits
	// never reach a worker and are not stored again. A caller backed by
	// internal/checkpoint can thereby resume a cancelled sweep from where it
	// left off.
	CacheLookup func(pt GridPoint) (result, errVal float64, converged, ok bool)
	CacheStore  func(pt GridPoint, result, errVal float64, converged bool)

	Logger        *logrus.Logger
	ProgressEvery time.Duration
}

// Evaluate runs the fork-join sweep over every grid point for one
// CollisionIntegral4's element list, returning a (possibly partially
// filled, if cancelled) CollisionResultsGrid.
func (d *Driver) Evaluate(elements []*collision.Element, massLookup func(name string) float64) *CollisionResultsGrid {
	n := d.Basis.N
	grid := NewCollisionResultsGrid(n)
	grid.ReductionMode = d.ReductionMode

	points := enumeratePoints(n, d.ReductionMode)

	workers := d.Workers
	if workers < 1 {
		workers = 1
	}
	bins := d.VegasBins
	if bins < 1 {
		bins = 32
	}

	logger := d.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	var completed int64
	reporter := newProgressReporter(logger, len(points), d.ProgressEvery)
	reporter.start(func() int64 { return atomic.LoadInt64(&completed) })
	defer reporter.stopAndWait()

	var evalMu sync.Mutex
	evalCache := make(map[[2]int]*integrand.Evaluator)
	getEvaluator := func(m, nn int) *integrand.Evaluator {
		key := [2]int{m, nn}
		evalMu.Lock()
		defer evalMu.Unlock()
		if ev, ok := evalCache[key]; ok {
			return ev
		}
		ev := integrand.NewEvaluator(elements, massLookup, d.Basis, m, nn, d.OptimizeUltrarelativistic)
		evalCache[key] = ev
		return ev
	}

	// Each point is assigned to worker (index-in-enumeration mod workers), a
	// static partition fixed at dispatch time rather than work-stolen off a
	// shared channel, so the RNG stream a given (m,n,j,k) consumes depends
	// only on (masterSeed, workerID, enumeration order) and never on
	// goroutine scheduling, per spec.md §8's reproducibility requirement.
	workerJobs := make([]chan GridPoint, workers)
	for w := range workerJobs {
		workerJobs[w] = make(chan GridPoint)
	}
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			integrator := vegas.New(d.VegasOptions.MaxIntegrationMomentum, vegas.SplitSeed(d.MasterSeed, workerID), bins)
			for pt := range workerJobs[workerID] {
				evaluatePoint(integrator, getEvaluator(pt.M, pt.N), d.Basis, pt, d.VegasOptions, grid)
				if d.CacheStore != nil {
					d.CacheStore(pt, grid.Result[pt.M][pt.N][pt.J][pt.K], grid.Error[pt.M][pt.N][pt.J][pt.K], grid.Converged[pt.M][pt.N][pt.J][pt.K])
				}
				atomic.AddInt64(&completed, 1)
			}
		}(w)
	}

	for i, pt := range points {
		if d.ShouldContinue != nil && !d.ShouldContinue() {
			logger.WithField("completed", atomic.LoadInt64(&completed)).Warn("grid evaluation cancelled")
			break
		}
		if d.CacheLookup != nil {
			if result, errVal, converged, ok := d.CacheLookup(pt); ok {
				grid.set(pt, result, errVal, converged)
				atomic.AddInt64(&completed, 1)
				continue
			}
		}
		workerJobs[i%workers] <- pt
	}
	for _, ch := range workerJobs {
		close(ch)
	}
	wg.Wait()

	if d.ReductionMode == ReductionParity {
		reconstructParity(grid)
	}

	return grid
}

func evaluatePoint(integrator *vegas.Integrator, ev *integrand.Evaluator, bas basis.Basis, pt GridPoint, opts vegas.Options, grid *CollisionResultsGrid) {
	pz1 := bas.RhoZToPZ(bas.RhoZGrid(pt.J))
	pPar1 := bas.RhoParToPPar(bas.RhoParGrid(pt.K))
	params := integrand.Parameters{P1: kinematics.ThreeVector{Y: pPar1, Z: pz1}}

	f := func(p2, phi2, phi3, cosTheta2, cosTheta3 float64) float64 {
		return ev.Calculate(params, p2, phi2, phi3, cosTheta2, cosTheta3)
	}

	res := integrator.Run(f, opts)
	grid.set(pt, res.Mean, res.Sigma, res.Converged)
}
