package kinematics

import (
	"math"

	"github.com/JulianSchoen/WallGo/physconst"
)

// Masses holds the four external mass-squared values for one collision
// element, in slot order (incoming-fixed, p2, p3, p4).
type Masses [4]float64

// Inputs carries the sample-level geometry shared by every collision
// element evaluated at one (p2, phi2, phi3, cosTheta2, cosTheta3) point:
// the fixed p1 3-vector and the p2/p3-hat vectors built from the five
// integration variables. Building these once per sample (rather than once
// per element) is the optimization spec.md §4.4 step 1 calls for.
type Inputs struct {
	P1, P2           float64
	P1Vec, P2Vec     ThreeVector
	P3VecHat         ThreeVector
	P1P2Dot          float64
	P1P3HatDot       float64
	P2P3HatDot       float64
}

// BuildInputs assembles an Inputs from the five Monte Carlo integration
// variables and the fixed p1 3-vector (derived from the basis grid point).
func BuildInputs(p1Vec ThreeVector, p2, phi2, phi3, cosTheta2, cosTheta3 float64) Inputs {
	p2Vec := FromSpherical(p2, cosTheta2, phi2)
	p3Hat := FromSpherical(1, cosTheta3, phi3)

	return Inputs{
		P1:         p1Vec.Norm(),
		P2:         p2,
		P1Vec:      p1Vec,
		P2Vec:      p2Vec,
		P3VecHat:   p3Hat,
		P1P2Dot:    p1Vec.Dot(p2Vec),
		P1P3HatDot: p1Vec.Dot(p3Hat),
		P2P3HatDot: p2Vec.Dot(p3Hat),
	}
}

// Record is one complete solution of the momentum-conserving delta
// function: four on-shell four-vectors and the kinematic prefactor
// p2^2/E2 * p3^2/E3 * |1/g'(p3)|.
type Record struct {
	P1, P2, P3, P4 FourVector
	Prefactor      float64
}

// kappaOf returns p, treated through the "massless" regularization when
// msq falls below physconst.MassSquaredLowerBound, else p^2/E.
func kappaOf(p, e, msq float64) float64 {
	if math.Abs(msq) < physconst.MassSquaredLowerBound {
		return p
	}
	return p * p / e
}

// Solve computes the 0, 1, or 2 kinematic records for one Monte Carlo
// sample and one set of external masses, per spec.md §4.2. Both roots are
// kept whenever both are physically valid; spec.md explicitly forbids
// silently discarding a second valid root.
func Solve(in Inputs, m Masses) []Record {
	e1 := math.Sqrt(in.P1*in.P1 + m[0])
	e2 := math.Sqrt(in.P2*in.P2 + m[1])

	kappa := m[0] + m[1] + m[2] - m[3] + 2*(e1*e2-in.P1P2Dot)
	delta := 2 * (in.P1P3HatDot + in.P2P3HatDot)
	eps := 2 * (e1 + e2)

	m3 := m[2]
	g := func(p3 float64) float64 {
		return kappa + delta*p3 - eps*math.Sqrt(p3*p3+m3)
	}

	roots := quadraticRoots(delta*delta-eps*eps, 2*kappa*delta, kappa*kappa-eps*eps*m3)

	tol := physconst.RootResidualTolerance * math.Max(1, math.Abs(kappa))

	var out []Record
	for _, p3 := range roots {
		if p3 < 0 {
			continue
		}
		if math.Abs(g(p3)) > tol {
			continue
		}

		e3 := math.Sqrt(p3*p3 + m3)
		e4 := e1 + e2 - e3
		if e4 < 0 {
			continue
		}

		p1v := NewFourVector(e1, in.P1Vec)
		p2v := NewFourVector(e2, in.P2Vec)
		p3v := NewFourVector(e3, in.P3VecHat.Scale(p3))
		p4v := p1v.Add(p2v).Sub(p3v)

		var gDer float64
		if math.Abs(m3) < physconst.MassSquaredLowerBound {
			gDer = delta - eps
		} else {
			gDer = delta - eps*p3/e3
		}
		if math.Abs(gDer) < physconst.SmallNumber {
			continue
		}

		prefactor := kappaOf(in.P2, e2, m[1]) * kappaOf(p3, e3, m3) / math.Abs(gDer)

		out = append(out, Record{
			P1: p1v, P2: p2v, P3: p3v, P4: p4v,
			Prefactor: prefactor,
		})
	}
	return out
}

// quadraticRoots returns the real roots of A*x^2 + B*x + C = 0. If A is
// negligible the equation is treated as linear (B*x + C = 0), matching the
// ultrarelativistic degeneration described in spec.md §4.2.
func quadraticRoots(a, b, c float64) []float64 {
	if math.Abs(a) < physconst.SmallNumber {
		if math.Abs(b) < physconst.SmallNumber {
			return nil
		}
		return []float64{-c / b}
	}

	disc := b*b - 4*a*c
	if disc < 0 {
		return nil
	}
	sq := math.Sqrt(disc)
	r1 := (-b - sq) / (2 * a)
	r2 := (-b + sq) / (2 * a)
	if r1 == r2 {
		return []float64{r1}
	}
	return []float64{r1, r2}
}

// SolveUltrarelativistic computes the unique kinematic record for the
// all-massless fast path of spec.md §4.2. E_i = |p_i| and the
// momentum-conserving delta function degenerates to a linear equation in
// p3, solved directly without going through the general quadratic.
func SolveUltrarelativistic(in Inputs) (Record, bool) {
	e1, e2 := in.P1, in.P2

	kappa := 2 * (e1*e2 - in.P1P2Dot)
	delta := 2 * (in.P1P3HatDot + in.P2P3HatDot)
	eps := 2 * (e1 + e2)

	denom := eps - delta
	if denom == 0 {
		return Record{}, false
	}
	p3 := kappa / denom
	if p3 <= 0 {
		return Record{}, false
	}

	e3 := p3
	e4 := e1 + e2 - e3
	if e4 < 0 {
		return Record{}, false
	}

	p1v := NewFourVector(e1, in.P1Vec)
	p2v := NewFourVector(e2, in.P2Vec)
	p3v := NewFourVector(e3, in.P3VecHat.Scale(p3))
	p4v := p1v.Add(p2v).Sub(p3v)

	gDer := delta - eps
	if math.Abs(gDer) < physconst.SmallNumber {
		return Record{}, false
	}

	prefactor := in.P2 * p3 / math.Abs(gDer)

	return Record{P1: p1v, P2: p2v, P3: p3v, P4: p4v, Prefactor: prefactor}, true
}
