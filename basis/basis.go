// Package basis implements the spectral reparametrization of momentum
// coordinates and the Chebyshev-like test polynomials used to project the
// collision integrand onto the (m,n) basis.
package basis

import (
	"math"

	"github.com/JulianSchoen/WallGo/physconst"
)

// Basis holds the polynomial grid size N and the reference momentum scale
// used by the rho<->p inverse maps (temperature units, so normally 1).
type Basis struct {
	N     int
	Scale float64
}

// New returns a Basis of size n with the reference momentum scale fixed to
// temperature units (scale = 1).
func New(n int) Basis {
	return Basis{N: n, Scale: 1}
}

// RhoZGrid returns rho_Z(j) = cos(j*pi/N) for j = 1..N-1.
func (b Basis) RhoZGrid(j int) float64 {
	return math.Cos(float64(j) * math.Pi / float64(b.N))
}

// RhoParGrid returns rho_par(k) = -cos(k*pi/N) for k = 1..N-1.
func (b Basis) RhoParGrid(k int) float64 {
	return -math.Cos(float64(k) * math.Pi / float64(b.N))
}

func clamp(rho float64) float64 {
	eps := physconst.GridClampEpsilon
	if rho > 1-eps {
		return 1 - eps
	}
	if rho < -1+eps {
		return -1 + eps
	}
	return rho
}

// RhoZToPZ inverts the longitudinal reparametrization, p_Z = scale*atanh(rho).
func (b Basis) RhoZToPZ(rho float64) float64 {
	return b.Scale * math.Atanh(clamp(rho))
}

// RhoParToPPar inverts the transverse reparametrization, p_par = scale*atanh(rho).
func (b Basis) RhoParToPPar(rho float64) float64 {
	return b.Scale * math.Atanh(clamp(rho))
}

// chebyshevT evaluates the ordinary Chebyshev polynomial T_m(x) via the
// stable trigonometric form, valid on x in [-1, 1].
func chebyshevT(m int, x float64) float64 {
	if x >= 1 {
		return 1
	}
	if x <= -1 {
		if m%2 == 0 {
			return 1
		}
		return -1
	}
	return math.Cos(float64(m) * math.Acos(x))
}

// TbarM evaluates the boundary-subtracted basis polynomial used for the
// longitudinal direction, defined so that Tbar_m(+-1) = 0 for m >= 2:
//
//	Tbar_m(x) = T_m(x) - 1,            m even
//	Tbar_m(x) = T_m(x) - x,            m odd
//
// This matches T_m(1) = 1 and T_m(-1) = (-1)^m, so subtracting the constant
// (even m) or linear (odd m) term that agrees with T_m at both endpoints
// removes the endpoint values while leaving the polynomial degree and
// interior oscillation unchanged.
func TbarM(m int, x float64) float64 {
	t := chebyshevT(m, x)
	if m%2 == 0 {
		return t - 1
	}
	return t - x
}

// TtildeN evaluates the momentum-direction basis polynomial. Unlike Tbar_m,
// the transverse grid is not required to vanish at its endpoints (rho_par
// ranges over a different physical domain), so this is plain T_n.
func TtildeN(n int, x float64) float64 {
	return chebyshevT(n, x)
}

// Point is the minimal view of a four-momentum that TmTn needs: the
// longitudinal and transverse momentum components used to recompute
// rho_Z/rho_par.
type Point struct {
	PZ, PPar float64
}

// rhoFromP inverts RhoZToPZ/RhoParToPPar: rho = tanh(p/scale).
func (b Basis) rhoFromP(p float64) float64 {
	return math.Tanh(p / b.Scale)
}

// TmTn evaluates Tbar_m(rho_Z(P)) * Ttilde_n(rho_par(P)) for a four-momentum
// given by its longitudinal/transverse components.
func (b Basis) TmTn(m, n int, p Point) float64 {
	rhoZ := b.rhoFromP(p.PZ)
	rhoPar := b.rhoFromP(p.PPar)
	return TbarM(m, rhoZ) * TtildeN(n, rhoPar)
}
