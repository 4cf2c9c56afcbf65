package kinematics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSolveMomentumConservation(t *testing.T) {
	p1 := ThreeVector{X: 0, Y: 0, Z: 1.3}
	in := BuildInputs(p1, 0.7, 0.4, 1.1, 0.2, -0.5)

	records := Solve(in, Masses{0, 0, 0, 0})
	assert.NotEmpty(t, records)

	for _, r := range records {
		sum12 := r.P1.Add(r.P2)
		sum34 := r.P3.Add(r.P4)
		assert.InDelta(t, sum12.E, sum34.E, 1e-6, "energy conservation")
		assert.InDelta(t, sum12.X, sum34.X, 1e-6, "px conservation")
		assert.InDelta(t, sum12.Y, sum34.Y, 1e-6, "py conservation")
		assert.InDelta(t, sum12.Z, sum34.Z, 1e-6, "pz conservation")

		assert.True(t, r.P3.Spatial().Norm() >= 0)
		assert.True(t, r.P4.E >= 0)
	}
}

func TestSolveOnShell(t *testing.T) {
	p1 := ThreeVector{X: 0.2, Y: -0.1, Z: 0.9}
	in := BuildInputs(p1, 1.1, 0.3, 2.0, -0.4, 0.6)
	masses := Masses{0.01, 0.02, 0.03, 0.04}

	for _, r := range Solve(in, masses) {
		assert.InDelta(t, masses[0], r.P1.MassSquared(), 1e-6)
		assert.InDelta(t, masses[1], r.P2.MassSquared(), 1e-6)
		assert.InDelta(t, masses[2], r.P3.MassSquared(), 1e-6)
		assert.InDelta(t, masses[3], r.P4.MassSquared(), 1e-6)
	}
}

func TestUltrarelativisticConsistency(t *testing.T) {
	p1 := ThreeVector{X: 0, Y: 0, Z: 2.1}
	in := BuildInputs(p1, 0.9, 0.3, 1.7, 0.1, -0.2)

	urRecord, urOk := SolveUltrarelativistic(in)
	general := Solve(in, Masses{0, 0, 0, 0})

	if urOk {
		assert.NotEmpty(t, general)
		found := false
		for _, r := range general {
			if math.Abs(r.Prefactor-urRecord.Prefactor) < 1e-9 {
				found = true
			}
		}
		assert.True(t, found, "UR fast path should agree with a general-path root")
	}
}

func TestQuadraticRootsLinearDegeneracy(t *testing.T) {
	roots := quadraticRoots(0, 2, -4)
	assert.Equal(t, []float64{2}, roots)
}

func TestQuadraticRootsNoRealSolution(t *testing.T) {
	roots := quadraticRoots(1, 0, 1)
	assert.Nil(t, roots)
}
