// Package integrand implements the 5-step integrand driver of spec.md
// §4.4: given a fixed incoming momentum p1 and a Monte Carlo sample of the
// remaining five integration variables, it sums every CollisionElement's
// contribution into one scalar value.
package integrand

import (
	"math"

	"github.com/JulianSchoen/WallGo/basis"
	"github.com/JulianSchoen/WallGo/collision"
	"github.com/JulianSchoen/WallGo/kinematics"
)

// phaseSpacePrefactor is (2*pi)^-5 / 8, spec.md §4.3's overall normalization.
var phaseSpacePrefactor = 1 / (math.Pow(2*math.Pi, 5) * 8)

// Parameters is the per-grid-point precomputation spec.md §4.4 step 1 calls
// out as an optimization: P1 is fixed for every Monte Carlo sample drawn at
// one (m,n,j,k) grid point, so it is built once by the caller (grid.Driver)
// rather than rebuilt on every Evaluator.Calculate call.
type Parameters struct {
	P1 kinematics.ThreeVector
}

// elementState pairs a collision.Element with the mass-squared values its
// slots resolve to, computed once when the Evaluator is built rather than
// once per Monte Carlo sample (the particle catalog is read-only for the
// duration of a grid evaluation, per spec.md §5).
type elementState struct {
	element *collision.Element
	masses  kinematics.Masses
}

// Evaluator sums every collision.Element assigned to one CollisionIntegral4
// at one (m,n) basis index pair. An Evaluator is copyable by value-ish
// contract (its slices are read-only after construction) so each grid
// worker can hold its own without sharing mutable state, matching spec.md
// §5's "copyable by contract" requirement carried over from integrand's
// sibling packages.
type Evaluator struct {
	basis basis.Basis
	m, n  int

	// optimizeUltrarelativistic gates step 2: when true, every
	// all-ultrarelativistic element shares one cached
	// SolveUltrarelativistic call per sample instead of going through the
	// general quadratic solver.
	optimizeUltrarelativistic bool

	urElements      []elementState
	generalElements []elementState
}

// NewEvaluator builds an Evaluator for one set of collision elements.
// massLookup resolves a particle name to its current dispersion-relation
// mass squared (particle.Species.MassSquared); it is called once per
// element slot at construction time, not per sample.
func NewEvaluator(elements []*collision.Element, massLookup func(name string) float64, bas basis.Basis, m, n int, optimizeUltrarelativistic bool) *Evaluator {
	e := &Evaluator{basis: bas, m: m, n: n, optimizeUltrarelativistic: optimizeUltrarelativistic}
	for _, el := range elements {
		st := elementState{element: el, masses: el.Masses(massLookup)}
		if optimizeUltrarelativistic && el.IsUltrarelativistic() {
			e.urElements = append(e.urElements, st)
			continue
		}
		e.generalElements = append(e.generalElements, st)
	}
	return e
}

// Calculate runs the 5-step driver of spec.md §4.4 for one Monte Carlo
// sample (p2, phi2, phi3, cosTheta2, cosTheta3), returning the integrand
// value at that point.
func (e *Evaluator) Calculate(params Parameters, p2, phi2, phi3, cosTheta2, cosTheta3 float64) float64 {
	inputs := kinematics.BuildInputs(params.P1, p2, phi2, phi3, cosTheta2, cosTheta3)

	var total float64

	if len(e.urElements) > 0 {
		if rec, ok := kinematics.SolveUltrarelativistic(inputs); ok {
			for _, st := range e.urElements {
				total += st.element.Evaluate(rec, e.basis, e.m, e.n)
			}
		}
	}

	for _, st := range e.generalElements {
		for _, rec := range kinematics.Solve(inputs, st.masses) {
			total += st.element.Evaluate(rec, e.basis, e.m, e.n)
		}
	}

	return total * phaseSpacePrefactor
}
