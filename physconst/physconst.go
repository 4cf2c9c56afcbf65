// Package physconst centralizes the numerical thresholds referenced
// throughout the collision integrand, per spec.md's design note that these
// should be named configuration rather than scattered magic numbers.
package physconst

const (
	// SmallNumber guards against division by zero in kinematic prefactors.
	SmallNumber = 1e-50

	// MassSquaredLowerBound is the threshold below which a mass-squared
	// value is treated as the "massless" regularization branch rather
	// than evaluated through E = sqrt(p^2+m^2) directly. This is a
	// regularization of small mass, not an exact zero-mass limit.
	MassSquaredLowerBound = 1e-14

	// RootResidualTolerance bounds |g(p3)| for an accepted root of the
	// energy-conservation quadratic, relative to max(1, |kappa|).
	RootResidualTolerance = 1e-8

	// GridClampEpsilon bounds how close a basis rho value may approach
	// +-1 before the atanh inverse map is evaluated.
	GridClampEpsilon = 1e-12
)
