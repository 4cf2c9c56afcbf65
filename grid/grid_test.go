package grid

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JulianSchoen/WallGo/basis"
	"github.com/JulianSchoen/WallGo/collision"
	"github.com/JulianSchoen/WallGo/matrixelement"
	"github.com/JulianSchoen/WallGo/vegas"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitElement(t *testing.T) *collision.Element {
	t.Helper()
	decls, err := matrixelement.ParseFile(strings.NewReader("M[0,0,0,0] -> 1"), nil)
	require.NoError(t, err)
	me := matrixelement.Bind(decls[0], nil)
	return collision.New([4]string{"a", "b", "c", "d"}, [4]bool{}, [4]bool{true, true, true, true}, me, 0.5)
}

func zeroMass(string) float64 { return 0 }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(testWriter{})
	return l
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestEnumeratePointsCoversFullRange(t *testing.T) {
	pts := enumeratePoints(3, ReductionNone)
	// m in [2,3] (2), n in [1,2] (2), j in [1,2] (2), k in [1,2] (2) = 16
	assert.Len(t, pts, 16)
}

func TestEnumeratePointsParityHalvesK(t *testing.T) {
	full := enumeratePoints(4, ReductionNone)
	reduced := enumeratePoints(4, ReductionParity)
	assert.Less(t, len(reduced), len(full))
}

func TestCancellationStopsAfterExactCount(t *testing.T) {
	el := unitElement(t)
	d := &Driver{
		Basis:         basis.New(3),
		Workers:       1,
		VegasOptions:  vegas.Options{Calls: 50, RelativeErrorGoal: 1, AbsoluteErrorGoal: 1, MaxTries: 1},
		VegasBins:     4,
		MasterSeed:    1,
		Logger:        quietLogger(),
		ProgressEvery: time.Hour,
	}

	// With a single worker, the dispatcher's unbuffered handoff to the
	// worker guarantees point i is fully evaluated before point i+1 is
	// sent, so a plain call counter deterministically admits exactly 3
	// points before cancellation.
	var calls int64
	d.ShouldContinue = func() bool {
		return atomic.AddInt64(&calls, 1) <= 3
	}

	grid := d.Evaluate([]*collision.Element{el}, zeroMass)

	count := 0
	for m := range grid.Evaluated {
		for n := range grid.Evaluated[m] {
			for j := range grid.Evaluated[m][n] {
				for k := range grid.Evaluated[m][n][j] {
					if grid.Evaluated[m][n][j][k] {
						count++
					}
				}
			}
		}
	}
	assert.Equal(t, 3, count)
}

func TestReductionParityReconstructsMirroredPoints(t *testing.T) {
	el := unitElement(t)
	d := &Driver{
		Basis:         basis.New(4),
		Workers:       2,
		ReductionMode: ReductionParity,
		VegasOptions:  vegas.Options{Calls: 100, RelativeErrorGoal: 0.5, AbsoluteErrorGoal: 0.5, MaxTries: 1},
		VegasBins:     4,
		MasterSeed:    7,
		Logger:        quietLogger(),
		ProgressEvery: time.Hour,
	}
	grid := d.Evaluate([]*collision.Element{el}, zeroMass)

	n := 4
	for m := 2; m <= n; m++ {
		for nn := 1; nn <= n-1; nn++ {
			for j := 1; j <= n-1; j++ {
				for k := n/2 + 1; k <= n-1; k++ {
					mirror := n - k
					if !grid.Evaluated[m][nn][j][mirror] {
						continue
					}
					assert.True(t, grid.Evaluated[m][nn][j][k])
					want := parityOf(nn) * grid.Result[m][nn][j][mirror]
					assert.InDelta(t, want, grid.Result[m][nn][j][k], 1e-12)
				}
			}
		}
	}
}

func TestCacheLookupSkipsIntegrationAndCacheStoreRecordsEveryEvaluatedPoint(t *testing.T) {
	el := unitElement(t)
	cached := GridPoint{M: 2, N: 1, J: 1, K: 1}

	var stored []GridPoint
	d := &Driver{
		Basis:         basis.New(3),
		Workers:       1,
		VegasOptions:  vegas.Options{Calls: 50, RelativeErrorGoal: 1, AbsoluteErrorGoal: 1, MaxTries: 1},
		VegasBins:     4,
		MasterSeed:    1,
		Logger:        quietLogger(),
		ProgressEvery: time.Hour,
		CacheLookup: func(pt GridPoint) (float64, float64, bool, bool) {
			if pt == cached {
				return 42, 0.01, true, true
			}
			return 0, 0, false, false
		},
		CacheStore: func(pt GridPoint, result, errVal float64, converged bool) {
			stored = append(stored, pt)
		},
	}

	grid := d.Evaluate([]*collision.Element{el}, zeroMass)

	assert.Equal(t, 42.0, grid.Result[cached.M][cached.N][cached.J][cached.K])
	assert.Equal(t, 0.01, grid.Error[cached.M][cached.N][cached.J][cached.K])
	assert.True(t, grid.Converged[cached.M][cached.N][cached.J][cached.K])

	assert.NotContains(t, stored, cached, "cache-hit points are not re-stored")
	assert.NotEmpty(t, stored, "non-cached points are still recorded")
}

func TestParityOfSign(t *testing.T) {
	assert.Equal(t, 1.0, parityOf(0))
	assert.Equal(t, -1.0, parityOf(1))
	assert.Equal(t, 1.0, parityOf(2))
}

func TestFlattenProducesRowMajorDatasetOfExpectedShape(t *testing.T) {
	g := NewCollisionResultsGrid(2)
	g.set(GridPoint{M: 2, N: 1, J: 1, K: 1}, 5, 0.1, true)

	ds := g.Flatten([2]string{"top", "gluon"})
	assert.Equal(t, [2]string{"top", "gluon"}, ds.Pair)
	assert.Equal(t, [4]int{3, 3, 3, 3}, ds.Shape)
	assert.Len(t, ds.Result, 3*3*3*3)

	flatIndex := ((2*3+1)*3+1)*3 + 1
	assert.Equal(t, 5.0, ds.Result[flatIndex])
	assert.Equal(t, 0.1, ds.Error[flatIndex])
	assert.True(t, ds.Converged[flatIndex])
}
