// Package kinematics solves the momentum-conserving delta function for the
// 2->2 collision integrand, reducing the naive 9D phase-space integral to a
// 5D one by enumerating the (0, 1, or 2) roots of the energy-conservation
// residual g(p3).
package kinematics

import "math"

// ThreeVector is a Euclidean 3-momentum.
type ThreeVector struct {
	X, Y, Z float64
}

// Dot returns the Euclidean dot product.
func (v ThreeVector) Dot(w ThreeVector) float64 {
	return v.X*w.X + v.Y*w.Y + v.Z*w.Z
}

// Scale returns v scaled by s.
func (v ThreeVector) Scale(s float64) ThreeVector {
	return ThreeVector{v.X * s, v.Y * s, v.Z * s}
}

// Add returns v + w.
func (v ThreeVector) Add(w ThreeVector) ThreeVector {
	return ThreeVector{v.X + w.X, v.Y + w.Y, v.Z + w.Z}
}

// Norm returns |v|.
func (v ThreeVector) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// FromSpherical builds a 3-vector from magnitude and angles, matching the
// (theta, phi) convention used throughout spec.md: z = r*cosTheta.
func FromSpherical(r, cosTheta, phi float64) ThreeVector {
	sinTheta := math.Sqrt(math.Max(0, 1-cosTheta*cosTheta))
	return ThreeVector{
		X: r * sinTheta * math.Cos(phi),
		Y: r * sinTheta * math.Sin(phi),
		Z: r * cosTheta,
	}
}

// FourVector is (E, px, py, pz) with the (+,-,-,-) metric.
type FourVector struct {
	E, X, Y, Z float64
}

// NewFourVector builds a four-vector from an energy and a 3-momentum.
func NewFourVector(e float64, p ThreeVector) FourVector {
	return FourVector{e, p.X, p.Y, p.Z}
}

// Spatial returns the spatial part of the four-vector.
func (v FourVector) Spatial() ThreeVector {
	return ThreeVector{v.X, v.Y, v.Z}
}

// Dot returns the Minkowski inner product v.w = E_v*E_w - p_v.p_w.
func (v FourVector) Dot(w FourVector) float64 {
	return v.E*w.E - v.Spatial().Dot(w.Spatial())
}

// Add returns the component-wise sum v + w.
func (v FourVector) Add(w FourVector) FourVector {
	return FourVector{v.E + w.E, v.X + w.X, v.Y + w.Y, v.Z + w.Z}
}

// Sub returns the component-wise difference v - w.
func (v FourVector) Sub(w FourVector) FourVector {
	return FourVector{v.E - w.E, v.X - w.X, v.Y - w.Y, v.Z - w.Z}
}

// MassSquared returns v.v, the squared invariant mass implied by v.
func (v FourVector) MassSquared() float64 {
	return v.Dot(v)
}
