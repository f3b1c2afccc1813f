// Package geometry implements the tangent-space math the consensus core
// needs for SE3 poses, yaw-only poses, and plain Euclidean parameters:
// quaternion Log/Exp, Slerp averaging, and right-perturbation retraction.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// QuatFromXYZW builds a quaternion from the wire order (qx, qy, qz, qw)
// used throughout spec.md's on-the-wire message.
func QuatFromXYZW(x, y, z, w float64) quat.Number {
	return quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}
}

// XYZW returns the wire-order components of q.
func XYZW(q quat.Number) (x, y, z, w float64) {
	return q.Imag, q.Jmag, q.Kmag, q.Real
}

// NormalizeQuat rescales q to unit norm. The zero quaternion maps to the
// identity rotation rather than dividing by zero.
func NormalizeQuat(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n < 1e-12 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// ConjQuat returns the conjugate (== inverse for a unit quaternion) of q.
func ConjQuat(q quat.Number) quat.Number {
	return quat.Conj(q)
}

// LogSO3 maps a unit quaternion to its so(3) rotation vector via the
// matrix logarithm: axis*angle, angle in [0, pi].
func LogSO3(q quat.Number) r3.Vec {
	q = NormalizeQuat(q)
	if q.Real < 0 {
		// Keep the shortest rotation: q and -q represent the same
		// rotation, but only one has a well-behaved log near angle=pi.
		q = quat.Scale(-1, q)
	}
	v := r3.Vec{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	vn := r3.Norm(v)
	if vn < 1e-9 {
		// Near-identity: log(q) ~= 2*v for small angles.
		return r3.Scale(2, v)
	}
	angle := 2 * math.Atan2(vn, q.Real)
	return r3.Scale(angle/vn, v)
}

// ExpSO3 maps an so(3) rotation vector back to a unit quaternion.
func ExpSO3(w r3.Vec) quat.Number {
	angle := r3.Norm(w)
	if angle < 1e-9 {
		// First-order expansion avoids the 0/0 in axis normalization.
		return NormalizeQuat(quat.Number{Real: 1, Imag: w.X / 2, Jmag: w.Y / 2, Kmag: w.Z / 2})
	}
	axis := r3.Scale(1/angle, w)
	half := angle / 2
	s := math.Sin(half)
	return quat.Number{Real: math.Cos(half), Imag: axis.X * s, Jmag: axis.Y * s, Kmag: axis.Z * s}
}

// Slerp performs spherical linear interpolation between two unit
// quaternions, taking the shorter arc.
func Slerp(a, b quat.Number, t float64) quat.Number {
	a = NormalizeQuat(a)
	b = NormalizeQuat(b)

	dot := a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
	if dot < 0 {
		b = quat.Scale(-1, b)
		dot = -dot
	}
	if dot > 0.9995 {
		// Nearly parallel: linear interpolation avoids sin(theta)~0.
		return NormalizeQuat(quat.Number{
			Real: a.Real + t*(b.Real-a.Real),
			Imag: a.Imag + t*(b.Imag-a.Imag),
			Jmag: a.Jmag + t*(b.Jmag-a.Jmag),
			Kmag: a.Kmag + t*(b.Kmag-a.Kmag),
		})
	}

	theta0 := math.Acos(dot)
	theta := theta0 * t
	sinTheta0 := math.Sin(theta0)
	sinTheta := math.Sin(theta)

	s0 := math.Cos(theta) - dot*sinTheta/sinTheta0
	s1 := sinTheta / sinTheta0

	return NormalizeQuat(quat.Number{
		Real: s0*a.Real + s1*b.Real,
		Imag: s0*a.Imag + s1*b.Imag,
		Jmag: s0*a.Jmag + s1*b.Jmag,
		Kmag: s0*a.Kmag + s1*b.Kmag,
	})
}

// AvgQuat is the two-quaternion average used by the ARock dual update:
// the midpoint of the great-circle arc between z_r and z_l.
func AvgQuat(a, b quat.Number) quat.Number {
	return Slerp(a, b, 0.5)
}
