package vegas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegratesConstantOverUnitBox(t *testing.T) {
	it := NewBox([5]float64{0, 0, 0, 0, 0}, [5]float64{1, 1, 1, 1, 1}, 1, 8)
	f := func(p2, phi2, phi3, cosTheta2, cosTheta3 float64) float64 { return 1 }

	res := it.Run(f, Options{Calls: 2000, RelativeErrorGoal: 0.05, AbsoluteErrorGoal: 0, MaxTries: 10})
	require.True(t, res.Converged)
	assert.InDelta(t, 1.0, res.Mean, 0.2)
}

func TestIntegratesKnownLinearFunction(t *testing.T) {
	lo := [5]float64{0, 0, 0, 0, 0}
	hi := [5]float64{2, 1, 1, 1, 1}
	it := NewBox(lo, hi, 42, 16)
	f := func(p2, phi2, phi3, cosTheta2, cosTheta3 float64) float64 { return p2 }

	// integral of p2 over [0,2]x[0,1]^4 = 2.
	res := it.Run(f, Options{Calls: 8000, RelativeErrorGoal: 0.05, AbsoluteErrorGoal: 0, MaxTries: 30})
	assert.InDelta(t, 2.0, res.Mean, 0.4)
}

func TestSplitSeedIsDeterministicAndDistinct(t *testing.T) {
	a := SplitSeed(7, 0)
	b := SplitSeed(7, 0)
	c := SplitSeed(7, 1)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestRebinLeavesUniformGridOnZeroWeight(t *testing.T) {
	edges := uniformEdges(4)
	d := make([]float64, 4)
	got := rebin(edges, d)
	assert.Equal(t, edges, got)
}

func TestRebinConcentratesWhereWeightIsLarge(t *testing.T) {
	edges := uniformEdges(4)
	d := []float64{0, 0, 100, 0}
	got := rebin(edges, d)

	require.Len(t, got, 5)
	assert.Equal(t, 0.0, got[0])
	assert.Equal(t, 1.0, got[4])
	// bin 2 had nearly all the weight, so the refined bins straddling it
	// should be narrower than the untouched low-weight region.
	widthNearHeavyBin := got[3] - got[2]
	widthAwayFromHeavyBin := got[1] - got[0]
	assert.Less(t, widthNearHeavyBin, widthAwayFromHeavyBin)
}

func TestConvergedHonorsAbsoluteGoal(t *testing.T) {
	assert.True(t, converged(10, 0.0, Options{AbsoluteErrorGoal: 0, RelativeErrorGoal: 1e-9}))
	assert.False(t, converged(10, 5, Options{AbsoluteErrorGoal: 0, RelativeErrorGoal: 1e-9}))
}

func TestDefaultOptionsMatchEnvironmentDefaults(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 50000, opts.Calls)
	assert.Equal(t, 20.0, opts.MaxIntegrationMomentum)
	assert.Equal(t, 1e-2, opts.RelativeErrorGoal)
	assert.Equal(t, 0.0, opts.AbsoluteErrorGoal)
	assert.Equal(t, 50, opts.MaxTries)
}

func TestNewBuildsSpecDefaultBox(t *testing.T) {
	it := New(20, 0, 10)
	assert.Equal(t, [5]float64{0, 0, 0, -1, -1}, it.boxLo)
	assert.Equal(t, [5]float64{20, 2 * math.Pi, 2 * math.Pi, 1, 1}, it.boxHi)
}
