package collision

import (
	"math"
	"strings"
	"testing"

	"github.com/JulianSchoen/WallGo/basis"
	"github.com/JulianSchoen/WallGo/kinematics"
	"github.com/JulianSchoen/WallGo/matrixelement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantMatrixElement(t *testing.T, value string) *matrixelement.MatrixElement {
	t.Helper()
	decls, err := matrixelement.ParseFile(strings.NewReader("M[0,0,0,0] -> "+value), nil)
	require.NoError(t, err)
	require.Len(t, decls, 1)
	return matrixelement.Bind(decls[0], nil)
}

func TestIsUltrarelativistic(t *testing.T) {
	e := &Element{Ultrarelativistic: [4]bool{true, true, true, true}}
	assert.True(t, e.IsUltrarelativistic())

	e2 := &Element{Ultrarelativistic: [4]bool{true, true, false, true}}
	assert.False(t, e2.IsUltrarelativistic())
}

func TestEvaluateZeroWhenAllInEquilibrium(t *testing.T) {
	me := constantMatrixElement(t, "2")
	e := New([4]string{"a", "b", "c", "d"}, [4]bool{true, true, true, true}, [4]bool{}, me, 0.5)

	bas := basis.New(4)
	rec := kinematics.Record{
		P1:        kinematics.FourVector{E: 1, Z: 0.5},
		P2:        kinematics.FourVector{E: 1, Z: -0.5},
		P3:        kinematics.FourVector{E: 1, X: 0.3},
		P4:        kinematics.FourVector{E: 1, X: -0.3},
		Prefactor: 1,
	}
	got := e.Evaluate(rec, bas, 1, 1)
	assert.Equal(t, 0.0, got)
}

func TestEvaluateCombinesSignsAndPrefactor(t *testing.T) {
	me := constantMatrixElement(t, "3")
	e := New([4]string{"a", "b", "c", "d"}, [4]bool{false, false, false, false}, [4]bool{}, me, 0.5)

	bas := basis.New(4)
	rec := kinematics.Record{
		P1:        kinematics.FourVector{E: 1.2, Z: 0.4},
		P2:        kinematics.FourVector{E: 1.1, Z: -0.2, X: 0.1},
		P3:        kinematics.FourVector{E: 0.9, X: 0.3, Y: 0.1},
		P4:        kinematics.FourVector{E: 1.4, Z: 0.1, Y: -0.2},
		Prefactor: 2.0,
	}

	df0 := bas.TmTn(2, 1, basis.Point{PZ: rec.P1.Z, PPar: 0}) * -1
	df1 := bas.TmTn(2, 1, basis.Point{PZ: rec.P2.Z, PPar: rec.P2.X}) * 1
	df2 := bas.TmTn(2, 1, basis.Point{PZ: rec.P3.Z, PPar: math.Hypot(rec.P3.X, rec.P3.Y)}) * 1
	df3 := bas.TmTn(2, 1, basis.Point{PZ: rec.P4.Z, PPar: math.Hypot(rec.P4.X, rec.P4.Y)}) * 1
	combo := df0 + df1 - df2 - df3

	s := rec.P1.Add(rec.P2).MassSquared()
	tt := rec.P1.Sub(rec.P3).MassSquared()
	u := rec.P1.Sub(rec.P4).MassSquared()
	msq := me.Eval(s, tt, u)

	want := msq * 0.5 * combo * rec.Prefactor
	got := e.Evaluate(rec, bas, 2, 1)
	assert.InDelta(t, want, got, 1e-12)
}

func TestMassesForcesUltrarelativisticSlotsToZero(t *testing.T) {
	e := &Element{
		Particles:         [4]string{"a", "b", "c", "d"},
		Ultrarelativistic: [4]bool{true, false, false, false},
	}
	masses := e.Masses(func(name string) float64 {
		switch name {
		case "b":
			return 4.0
		case "c":
			return 9.0
		case "d":
			return 16.0
		}
		return -1
	})
	assert.Equal(t, kinematics.Masses{0, 4.0, 9.0, 16.0}, masses)
}
