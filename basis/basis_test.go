package basis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRhoGridsBounded(t *testing.T) {
	b := New(8)
	for j := 1; j < b.N; j++ {
		rho := b.RhoZGrid(j)
		assert.True(t, rho > -1 && rho < 1, "rhoZ(%d) out of range: %g", j, rho)
	}
	for k := 1; k < b.N; k++ {
		rho := b.RhoParGrid(k)
		assert.True(t, rho > -1 && rho < 1, "rhoPar(%d) out of range: %g", k, rho)
	}
}

func TestTbarVanishesAtBoundary(t *testing.T) {
	for m := 2; m < 8; m++ {
		assert.InDelta(t, 0, TbarM(m, 1), 1e-12, "Tbar_%d(1)", m)
		assert.InDelta(t, 0, TbarM(m, -1), 1e-12, "Tbar_%d(-1)", m)
	}
}

func TestTtildeMatchesChebyshev(t *testing.T) {
	for n := 0; n < 6; n++ {
		x := 0.37
		assert.InDelta(t, math.Cos(float64(n)*math.Acos(x)), TtildeN(n, x), 1e-12)
	}
}

func TestInverseMapRoundTrip(t *testing.T) {
	b := New(16)
	for j := 1; j < b.N; j++ {
		rho := b.RhoZGrid(j)
		p := b.RhoZToPZ(rho)
		rhoBack := b.rhoFromP(p)
		assert.InDelta(t, rho, rhoBack, 1e-9)
	}
}

func TestTmTnAtOrigin(t *testing.T) {
	b := New(8)
	// p=0 maps to rho=0.
	v := b.TmTn(2, 1, Point{PZ: 0, PPar: 0})
	assert.InDelta(t, TbarM(2, 0)*TtildeN(1, 0), v, 1e-12)
}
