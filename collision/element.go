// Package collision implements one diagrammatic contribution to the
// collision integrand: a fixed assignment of four external particle slots
// to a MatrixElement, together with the spectral deltaF substitution
// described in spec.md §4.3.
package collision

import (
	"math"

	"github.com/JulianSchoen/WallGo/basis"
	"github.com/JulianSchoen/WallGo/kinematics"
	"github.com/JulianSchoen/WallGo/matrixelement"
)

// populationSign is sigma_i from spec.md §4.3: slot 0 (the fixed incoming
// particle) enters the linearized population with the opposite sign from
// slots 1..3.
var populationSign = [4]float64{-1, 1, 1, 1}

// Element is one CollisionElement<4>: four external particle slots, the
// matrix element evaluated at their Mandelstam invariants, and the
// symmetry weight 1/(2N).
type Element struct {
	// Particles holds the catalog names of the four external slots.
	// Slot 0 is the fixed "incoming" particle whose momentum is not
	// integrated over.
	Particles [4]string

	InEquilibrium     [4]bool
	Ultrarelativistic [4]bool

	Matrix *matrixelement.MatrixElement

	// SymmetryWeight is 1/(2N), N the internal multiplicity of slot 0.
	SymmetryWeight float64
}

// New constructs an Element, ready to be classified with
// IsUltrarelativistic.
func New(particles [4]string, inEq, ur [4]bool, matrix *matrixelement.MatrixElement, symmetryWeight float64) *Element {
	return &Element{
		Particles:         particles,
		InEquilibrium:     inEq,
		Ultrarelativistic: ur,
		Matrix:            matrix,
		SymmetryWeight:    symmetryWeight,
	}
}

// IsUltrarelativistic reports whether all four external slots are
// ultrarelativistic, per spec.md §3's CollisionElement classification.
func (e *Element) IsUltrarelativistic() bool {
	for _, ur := range e.Ultrarelativistic {
		if !ur {
			return false
		}
	}
	return true
}

// Masses returns the four dispersion-relation mass-squared values,
// ultrarelativistic slots forced to zero, in the order kinematics.Solve
// expects them.
func (e *Element) Masses(catalogMass func(name string) float64) kinematics.Masses {
	var m kinematics.Masses
	for i, name := range e.Particles {
		if e.Ultrarelativistic[i] {
			m[i] = 0
			continue
		}
		m[i] = catalogMass(name)
	}
	return m
}

// deltaF evaluates T_m(rhoZ)*Ttilde_n(rhoPar)*sigma_i for one external slot,
// or 0 if that slot is in equilibrium (spec.md §4.3).
func deltaF(bas basis.Basis, m, n, slot int, p kinematics.FourVector, inEquilibrium bool) float64 {
	if inEquilibrium {
		return 0
	}
	pt := basis.Point{PZ: p.Z, PPar: math.Hypot(p.X, p.Y)}
	return bas.TmTn(m, n, pt) * populationSign[slot]
}

// Evaluate computes this element's contribution to the collision integrand
// at one kinematic record and one (m,n) basis index pair, per spec.md
// §4.3:
//
//	M^2/(2N) * (deltaF_0 + deltaF_1 - deltaF_2 - deltaF_3) * prefactor
func (e *Element) Evaluate(rec kinematics.Record, bas basis.Basis, m, n int) float64 {
	p := [4]kinematics.FourVector{rec.P1, rec.P2, rec.P3, rec.P4}

	var df [4]float64
	for i := range p {
		df[i] = deltaF(bas, m, n, i, p[i], e.InEquilibrium[i])
	}
	combo := df[0] + df[1] - df[2] - df[3]
	if combo == 0 {
		return 0
	}

	s := p[0].Add(p[1]).MassSquared()
	t := p[0].Sub(p[2]).MassSquared()
	u := p[0].Sub(p[3]).MassSquared()

	msq := e.Matrix.Eval(s, t, u)

	return msq * e.SymmetryWeight * combo * rec.Prefactor
}
