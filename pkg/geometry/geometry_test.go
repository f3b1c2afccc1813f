package geometry

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestExpLogSO3RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		w := r3.Vec{X: rng.NormFloat64() * 0.5, Y: rng.NormFloat64() * 0.5, Z: rng.NormFloat64() * 0.5}
		q := ExpSO3(w)
		require.InDelta(t, 1.0, quatNorm(q), 1e-9)

		back := LogSO3(q)
		require.InDelta(t, w.X, back.X, 1e-6)
		require.InDelta(t, w.Y, back.Y, 1e-6)
		require.InDelta(t, w.Z, back.Z, 1e-6)
	}
}

func TestRetractIsUnitQuat(t *testing.T) {
	p := IdentitySE3()
	delta := [6]float64{0.1, -0.2, 0.05, 0.3, -0.1, 0.2}
	next := p.Retract(delta)
	require.True(t, next.IsUnitQuat(1e-9))
}

func TestWrapYawRange(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 200; i++ {
		theta := (rng.Float64() - 0.5) * 40
		w := WrapYaw(theta)
		require.True(t, w > -math.Pi-1e-12 && w <= math.Pi+1e-12, "wrap(%v) = %v out of range", theta, w)
	}
}

func TestAvgYawPoseIsArithmeticMean(t *testing.T) {
	a := YawPose{X: 1, Yaw: 0.4}
	b := YawPose{X: 3, Yaw: -0.2}
	avg := AvgYawPose(a, b)
	require.InDelta(t, 2.0, avg.X, 1e-12)
	require.InDelta(t, 0.1, avg.Yaw, 1e-12)
}

func TestAvgYawPoseWrapsResult(t *testing.T) {
	a := YawPose{Yaw: math.Pi - 0.01}
	b := YawPose{Yaw: -math.Pi + 0.01}
	avg := AvgYawPose(a, b)
	require.InDelta(t, 0.0, avg.Yaw, 1e-12, "arithmetic mean of near +/-pi is near zero, not the circular mean")
}

func TestSlerpEndpoints(t *testing.T) {
	a := ExpSO3(r3.Vec{X: 0.4})
	b := ExpSO3(r3.Vec{X: -0.3, Y: 0.2})

	s0 := Slerp(a, b, 0)
	s1 := Slerp(a, b, 1)

	require.InDelta(t, 0.0, quatAngleBetween(a, s0), 1e-6)
	require.InDelta(t, 0.0, quatAngleBetween(b, s1), 1e-6)
}

func quatNorm(q quat.Number) float64 { return quat.Abs(q) }

func quatAngleBetween(a, b quat.Number) float64 {
	d := quat.Mul(ConjQuat(a), b)
	return r3.Norm(LogSO3(d))
}
