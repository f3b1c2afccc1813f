package geometry

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// SE3 is a pose: a translation and a unit-quaternion rotation. Storage
// order matches the wire format's 7 scalars (tx,ty,tz, qx,qy,qz,qw).
type SE3 struct {
	Trans r3.Vec
	Rot   quat.Number
}

// IdentitySE3 returns the identity pose.
func IdentitySE3() SE3 {
	return SE3{Rot: quat.Number{Real: 1}}
}

// SE3FromScalars builds a pose from the wire-order 7 scalars.
func SE3FromScalars(tx, ty, tz, qx, qy, qz, qw float64) SE3 {
	return SE3{Trans: r3.Vec{X: tx, Y: ty, Z: tz}, Rot: NormalizeQuat(QuatFromXYZW(qx, qy, qz, qw))}
}

// SE3FromSlice builds a pose from a 7-element wire-order slice.
func SE3FromSlice(v []float64) SE3 {
	return SE3FromScalars(v[0], v[1], v[2], v[3], v[4], v[5], v[6])
}

// Scalars returns the wire-order 7 scalars for p.
func (p SE3) Scalars() [7]float64 {
	x, y, z, w := XYZW(p.Rot)
	return [7]float64{p.Trans.X, p.Trans.Y, p.Trans.Z, x, y, z, w}
}

// BoxMinus computes the 6-D right-perturbation tangent error
// Log( p ⊟ ref ): translational error first, then so(3) rotational
// error expressed in ref's local frame, matching spec.md §4.3's SE3
// consensus residual r = Log(X ⊟ X_dual).
func (p SE3) BoxMinus(ref SE3) [6]float64 {
	dt := r3.Sub(p.Trans, ref.Trans)
	dq := quat.Mul(ConjQuat(ref.Rot), p.Rot)
	dr := LogSO3(dq)
	return [6]float64{dt.X, dt.Y, dt.Z, dr.X, dr.Y, dr.Z}
}

// Retract applies a 6-D tangent step to p by right-perturbation:
// translation updates additively in the world frame, rotation composes
// on the right through the exponential map. Used by the ARock dual
// update's retraction z_l' = z_l · Exp(-δ).
func (p SE3) Retract(delta [6]float64) SE3 {
	dt := r3.Vec{X: delta[0], Y: delta[1], Z: delta[2]}
	dr := r3.Vec{X: delta[3], Y: delta[4], Z: delta[5]}
	return SE3{
		Trans: r3.Add(p.Trans, dt),
		Rot:   NormalizeQuat(quat.Mul(p.Rot, ExpSO3(dr))),
	}
}

// AvgSE3 averages two poses: arithmetic mean of translations,
// quaternion-Slerp of rotations, per spec.md §4.5's ARock dual update.
func AvgSE3(a, b SE3) SE3 {
	return SE3{
		Trans: r3.Scale(0.5, r3.Add(a.Trans, b.Trans)),
		Rot:   AvgQuat(a.Rot, b.Rot),
	}
}

// IsUnitQuat reports whether p.Rot has unit norm within tol, the
// manifold-correctness invariant from spec.md §8.
func (p SE3) IsUnitQuat(tol float64) bool {
	n := quat.Abs(p.Rot)
	d := n - 1
	if d < 0 {
		d = -d
	}
	return d <= tol
}
