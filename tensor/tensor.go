// Package tensor implements CollisionTensor, the top-level object of
// spec.md §4.7: owner of the particle catalog and model parameters, builder
// of the per-pair CollisionElement list from a parsed matrix-element file,
// and orchestrator of grid evaluation and persistence.
package tensor

import (
	"fmt"
	"os"
	"sort"

	"github.com/JulianSchoen/WallGo/basis"
	"github.com/JulianSchoen/WallGo/collerr"
	"github.com/JulianSchoen/WallGo/collision"
	"github.com/JulianSchoen/WallGo/grid"
	"github.com/JulianSchoen/WallGo/internal/checkpoint"
	"github.com/JulianSchoen/WallGo/matrixelement"
	"github.com/JulianSchoen/WallGo/particle"
	"github.com/JulianSchoen/WallGo/store"
	"github.com/JulianSchoen/WallGo/vegas"
	"github.com/sirupsen/logrus"
)

// pairKey identifies a cached collision integral by its ordered particle
// pair, mirroring the original's map<pair<string,string>, CollisionIntegral4>.
type pairKey struct {
	A, B string
}

// collisionIntegral is one pair's cached element list. The basis is held by
// the CollisionTensor itself; ChangePolynomialBasisSize replaces it without
// touching Elements, per spec.md's "fast operation" note.
type collisionIntegral struct {
	Elements []*collision.Element
}

// CollisionTensor is the main entry point of this module. A zero-value
// CollisionTensor is not usable; construct with New or NewWithBasisSize.
type CollisionTensor struct {
	catalog *particle.Catalog
	basis   basis.Basis

	matrixElementFile string
	declarations      []matrixelement.Declaration

	cache map[pairKey]*collisionIntegral

	defaultOptions            vegas.Options
	Workers                   int
	ReductionMode             grid.ReductionMode
	OptimizeUltrarelativistic bool

	Checkpoint *checkpoint.Cache
	Store      store.Store
	OutputDir  string

	Logger *logrus.Logger
}

// New returns a CollisionTensor with basis size N=1, which yields no grid
// points (m ranges over [2,N]); ChangePolynomialBasisSize must be called, or
// NewWithBasisSize used instead, before any grid is evaluated.
func New() *CollisionTensor {
	return NewWithBasisSize(1)
}

// NewWithBasisSize returns a CollisionTensor whose polynomial basis has n
// polynomials, following the teacher's constructor-takes-a-size convention.
func NewWithBasisSize(n int) *CollisionTensor {
	return &CollisionTensor{
		catalog:                   particle.NewCatalog(),
		basis:                     basis.New(n),
		cache:                     make(map[pairKey]*collisionIntegral),
		defaultOptions:            vegas.DefaultOptions(),
		Workers:                   1,
		OptimizeUltrarelativistic: true,
		Store:                     store.NewLocalCodec(),
		Logger:                    logrus.StandardLogger(),
	}
}

// SetDefaultIntegrationOptions configures the Vegas options used by
// evaluateCollisionsGrid and calculateAllIntegrals when no override is
// passed.
func (t *CollisionTensor) SetDefaultIntegrationOptions(opts vegas.Options) {
	t.defaultOptions = opts
}

// DefineParticle registers a new species. Returns collerr.DuplicateParticle
// if the name is already registered.
func (t *CollisionTensor) DefineParticle(s particle.Species) error {
	return t.catalog.DefineParticle(s)
}

// DefineVariable declares a model parameter with an initial value.
func (t *CollisionTensor) DefineVariable(name string, value float64) {
	t.catalog.DefineVariable(name, value)
}

// DefineVariables declares several model parameters at once.
func (t *CollisionTensor) DefineVariables(vars map[string]float64) {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t.catalog.DefineVariable(name, vars[name])
	}
}

// SetVariable updates a previously declared parameter and rebinds every
// cached MatrixElement that references it.
func (t *CollisionTensor) SetVariable(name string, value float64) error {
	return t.catalog.SetVariable(name, value)
}

// SetVariables updates several previously declared parameters at once,
// stopping at the first unknown name.
func (t *CollisionTensor) SetVariables(vars map[string]float64) error {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := t.catalog.SetVariable(name, vars[name]); err != nil {
			return err
		}
	}
	return nil
}

// UpdateParticleMasses sets vacuum/thermal mass-squared values for the
// named particles. Only names present in the maps are touched.
func (t *CollisionTensor) UpdateParticleMasses(msqVacuum, msqThermal map[string]float64) error {
	for name, v := range msqVacuum {
		v := v
		if err := t.catalog.UpdateMasses(name, &v, nil); err != nil {
			return err
		}
	}
	for name, v := range msqThermal {
		v := v
		if err := t.catalog.UpdateMasses(name, nil, &v); err != nil {
			return err
		}
	}
	return nil
}

// ChangePolynomialBasisSize swaps in a new basis size. Cached element lists
// are left untouched; only the Basis value used by future evaluations
// changes, matching spec.md's "does not require rebuild" contract.
func (t *CollisionTensor) ChangePolynomialBasisSize(n int) {
	t.basis = basis.New(n)
}

// SetMatrixElementFile records the path matrix elements are read from on
// the next setupCollisionIntegrals call. Returns false (not an error) if
// the file does not exist, per spec.md §4.7.
func (t *CollisionTensor) SetMatrixElementFile(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	t.matrixElementFile = path
	return true
}

// catalogIndex returns the definition-order index of name, following the
// Indices[4] convention matrixelement.Declaration uses.
func (t *CollisionTensor) catalogIndex(name string) (int, bool) {
	for i, s := range t.catalog.All() {
		if s.Name == name {
			return i, true
		}
	}
	return 0, false
}

// SetupCollisionIntegrals (re)parses the matrix-element file set by
// SetMatrixElementFile and rebuilds the per-pair element cache for every
// ordered pair (a,b) of out-of-equilibrium particles. A declaration targets
// pair (a,b) when its slot-0 index names a and b's index appears among its
// remaining three slots, following the original's "particleName1 is not
// needed (could be inferred from indices[0])" convention for
// makeCollisionElement/parseMatrixElements.
func (t *CollisionTensor) SetupCollisionIntegrals(verbose bool) error {
	if t.matrixElementFile == "" {
		return collerr.New(collerr.FileNotFound, "no matrix element file configured, call SetMatrixElementFile first")
	}
	f, err := os.Open(t.matrixElementFile)
	if err != nil {
		return collerr.Wrap(collerr.FileNotFound, err, "opening matrix element file %q", t.matrixElementFile)
	}
	defer f.Close()

	decls, err := matrixelement.ParseFile(f, t.catalog.KnownParameterSet())
	if err != nil {
		return collerr.Wrap(collerr.MatrixElementParseError, err, "parsing %q", t.matrixElementFile)
	}
	t.declarations = decls
	t.catalog.ClearParameterListeners()

	species := t.catalog.All()
	offEq := t.catalog.OutOfEquilibrium()
	params := t.catalog.Parameters()

	cache := make(map[pairKey]*collisionIntegral, len(offEq)*len(offEq))
	for _, a := range offEq {
		aIdx, ok := t.catalogIndex(a)
		if !ok {
			continue
		}
		for _, b := range offEq {
			bIdx, ok := t.catalogIndex(b)
			if !ok {
				continue
			}
			elements := t.buildElementsForPair(decls, species, params, aIdx, bIdx)
			if len(elements) == 0 {
				continue
			}
			cache[pairKey{A: a, B: b}] = &collisionIntegral{Elements: elements}
			if verbose {
				t.Logger.WithFields(logrus.Fields{"pair": [2]string{a, b}, "elements": len(elements)}).Info("built collision integral")
			}
		}
	}
	t.cache = cache
	return nil
}

// buildElementsForPair collects one collision.Element per declaration whose
// slot 0 is particle aIdx and whose remaining slots contain particle bIdx,
// each weighted by 1/(2N) where N is the number of declarations selected
// for the pair (a,b), per spec.md §3's SymmetryWeight contract.
func (t *CollisionTensor) buildElementsForPair(decls []matrixelement.Declaration, species []particle.Species, params map[string]float64, aIdx, bIdx int) []*collision.Element {
	var matching []matrixelement.Declaration
	for _, d := range decls {
		if d.Indices[0] != aIdx {
			continue
		}
		if d.Indices[1] == bIdx || d.Indices[2] == bIdx || d.Indices[3] == bIdx {
			matching = append(matching, d)
		}
	}
	if len(matching) == 0 {
		return nil
	}

	weight := 1.0 / (2.0 * float64(len(matching)))
	elements := make([]*collision.Element, 0, len(matching))
	for _, d := range matching {
		var names [4]string
		var inEq, ur [4]bool
		for slot := 0; slot < 4; slot++ {
			s := species[d.Indices[slot]]
			names[slot] = s.Name
			inEq[slot] = s.InEquilibrium
			ur[slot] = s.Ultrarelativistic
		}
		m := matrixelement.Bind(d, params)
		t.catalog.OnParameterChange(func(string, float64) {
			m.Rebind(t.catalog.Parameters())
		})
		elements = append(elements, collision.New(names, inEq, ur, m, weight))
	}
	return elements
}

// ClearIntegralCache drops every cached collision integral.
func (t *CollisionTensor) ClearIntegralCache() {
	t.cache = make(map[pairKey]*collisionIntegral)
}

// PairName names one ordered out-of-equilibrium particle pair with a cached
// collision integral.
type PairName struct {
	Particle1, Particle2 string
}

// CachedPairs lists every pair currently holding a built collision
// integral, in sorted order for stable CLI/log output.
func (t *CollisionTensor) CachedPairs() []PairName {
	out := make([]PairName, 0, len(t.cache))
	for k := range t.cache {
		out = append(out, PairName{Particle1: k.A, Particle2: k.B})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Particle1 != out[j].Particle1 {
			return out[i].Particle1 < out[j].Particle1
		}
		return out[i].Particle2 < out[j].Particle2
	})
	return out
}

// massLookup resolves a particle name to its dispersion-relation mass
// squared, for collision.Element.Masses / integrand.NewEvaluator.
func (t *CollisionTensor) massLookup(name string) float64 {
	s, ok := t.catalog.Get(name)
	if !ok {
		return 0
	}
	return s.MassSquared()
}

// EvaluateCollisionsGrid runs the full grid sweep for one cached pair
// (particle1, particle2), using opts in place of the tensor's default
// integration options when non-nil.
func (t *CollisionTensor) EvaluateCollisionsGrid(particle1, particle2 string, opts *vegas.Options) (*grid.CollisionResultsGrid, error) {
	ci, ok := t.cache[pairKey{A: particle1, B: particle2}]
	if !ok {
		return nil, collerr.New(collerr.InvalidGridPoint, "no collision integral cached for pair (%s, %s); call SetupCollisionIntegrals first", particle1, particle2)
	}

	options := t.defaultOptions
	if opts != nil {
		options = *opts
	}

	t.catalog.SetBusy(true)
	defer t.catalog.SetBusy(false)

	driver := &grid.Driver{
		Basis:                     t.basis,
		Workers:                   t.Workers,
		OptimizeUltrarelativistic: t.OptimizeUltrarelativistic,
		ReductionMode:             t.ReductionMode,
		VegasOptions:              options,
		MasterSeed:                deriveSeed(particle1, particle2),
		Logger:                    t.Logger,
	}
	t.wireCheckpoint(driver, particle1, particle2)
	return driver.Evaluate(ci.Elements, t.massLookup), nil
}

// wireCheckpoint attaches driver's CacheLookup/CacheStore to t.Checkpoint
// when one is configured, keyed by the pair name and a hash of the model
// parameters currently in effect so a parameter change invalidates stale
// cached points instead of silently reusing them.
func (t *CollisionTensor) wireCheckpoint(driver *grid.Driver, particle1, particle2 string) {
	if t.Checkpoint == nil {
		return
	}
	inputHash := checkpoint.HashParameters(t.catalog.Parameters())

	driver.CacheLookup = func(pt grid.GridPoint) (float64, float64, bool, bool) {
		entry, ok, err := t.Checkpoint.Lookup(particle1, particle2, pt.M, pt.N, pt.J, pt.K, inputHash)
		if err != nil {
			t.Logger.WithError(err).Warn("checkpoint lookup failed, re-evaluating point")
			return 0, 0, false, false
		}
		if !ok {
			return 0, 0, false, false
		}
		return entry.Result, entry.Error, entry.Converged, true
	}
	driver.CacheStore = func(pt grid.GridPoint, result, errVal float64, converged bool) {
		entry := checkpoint.Entry{Result: result, Error: errVal, Converged: converged}
		if err := t.Checkpoint.Store(particle1, particle2, pt.M, pt.N, pt.J, pt.K, inputHash, entry); err != nil {
			t.Logger.WithError(err).Warn("checkpoint store failed")
		}
	}
}

// deriveSeed picks a deterministic per-pair master seed, so repeated runs
// over the same pair reproduce the same Vegas sample path.
func deriveSeed(a, b string) int64 {
	h := int64(1469598103934665603) // FNV-64 offset basis without its last digit, so it fits in int64; kept non-negative below
	for _, r := range a + "\x00" + b {
		h ^= int64(r)
		h *= 1099511628211
		if h < 0 {
			h = -h
		}
	}
	return h
}

// CollisionTensorResult bundles every pair's grid result with the tensor's
// current basis size and parameter snapshot, the unit calculateAllIntegrals
// persists via Store.
type CollisionTensorResult struct {
	BasisSize       int
	ModelParameters map[string]float64
	Grids           map[pairKeyResult]*grid.CollisionResultsGrid
}

// pairKeyResult is the exported form of pairKey, safe to use as a map key
// from outside the package.
type pairKeyResult struct {
	Particle1, Particle2 string
}

// CalculateAllIntegrals evaluates every cached pair's grid and writes the
// results through Store, if one is configured. Returns the assembled
// result regardless of persistence failures, so a caller can recover the
// in-memory data even if the output directory is unwritable.
func (t *CollisionTensor) CalculateAllIntegrals(verbose bool) (*CollisionTensorResult, error) {
	result := &CollisionTensorResult{
		BasisSize:       t.basis.N,
		ModelParameters: t.catalog.Parameters(),
		Grids:           make(map[pairKeyResult]*grid.CollisionResultsGrid, len(t.cache)),
	}

	pairs := make([]pairKey, 0, len(t.cache))
	for k := range t.cache {
		pairs = append(pairs, k)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})

	for _, pk := range pairs {
		g, err := t.EvaluateCollisionsGrid(pk.A, pk.B, nil)
		if err != nil {
			return result, err
		}
		result.Grids[pairKeyResult{Particle1: pk.A, Particle2: pk.B}] = g
		if verbose {
			t.Logger.WithField("pair", [2]string{pk.A, pk.B}).Info("finished collision integral")
		}
	}

	if t.Store != nil && t.OutputDir != "" {
		if err := t.persist(result); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (t *CollisionTensor) persist(result *CollisionTensorResult) error {
	meta := store.Metadata{
		BasisSize:       result.BasisSize,
		SchemaVersion:   store.SchemaVersion,
		ReductionMode:   t.ReductionMode.String(),
		ModelParameters: result.ModelParameters,
	}
	if err := t.Store.WriteMetadata(t.OutputDir, meta); err != nil {
		return fmt.Errorf("tensor: persisting metadata: %w", err)
	}

	for pk, g := range result.Grids {
		ds := g.Flatten([2]string{pk.Particle1, pk.Particle2})
		if err := t.Store.WriteDataset(t.OutputDir, ds); err != nil {
			return fmt.Errorf("tensor: persisting dataset for pair (%s, %s): %w", pk.Particle1, pk.Particle2, err)
		}
	}
	return nil
}

// CountIndependentIntegrals reports the number of independent grid points
// for a basis of size n and outOfEqCount out-of-equilibrium species,
// matching the original's static countIndependentIntegrals helper. Not
// reduced by the k<->N-k parity identity; callers that use ReductionParity
// evaluate roughly half this count.
func CountIndependentIntegrals(basisSize, outOfEqCount int) int {
	if basisSize < 2 {
		return 0
	}
	perPair := (basisSize - 1) * (basisSize - 1) * (basisSize - 1) * basisSize
	return perPair * outOfEqCount * outOfEqCount
}
