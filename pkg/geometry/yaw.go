package geometry

import "math"

// YawPose is a 3D position plus a heading angle, the "yaw-only pose"
// parameter kind from spec.md §3: 4 scalars (tx,ty,tz,yaw).
type YawPose struct {
	X, Y, Z float64
	Yaw     float64
}

// WrapYaw wraps theta into (-pi, pi], the invariant spec.md §8 requires
// of every yaw-consensus update.
func WrapYaw(theta float64) float64 {
	theta = math.Mod(theta+math.Pi, 2*math.Pi)
	if theta <= 0 {
		theta += 2 * math.Pi
	}
	return theta - math.Pi
}

// YawPoseFromSlice builds a pose from a 4-element wire-order slice.
func YawPoseFromSlice(v []float64) YawPose {
	return YawPose{X: v[0], Y: v[1], Z: v[2], Yaw: v[3]}
}

// BoxMinus computes the 4-D yaw-pose consensus residual
// r = [p - p_dual; wrap(psi - psi_dual)].
func (p YawPose) BoxMinus(ref YawPose) [4]float64 {
	return [4]float64{
		p.X - ref.X,
		p.Y - ref.Y,
		p.Z - ref.Z,
		WrapYaw(p.Yaw - ref.Yaw),
	}
}

// Retract applies a 4-D tangent step, wrapping the resulting yaw.
func (p YawPose) Retract(delta [4]float64) YawPose {
	return YawPose{
		X:   p.X + delta[0],
		Y:   p.Y + delta[1],
		Z:   p.Z + delta[2],
		Yaw: WrapYaw(p.Yaw + delta[3]),
	}
}

// AvgYawPose averages position and yaw arithmetically, then wraps the
// yaw result, per spec.md §4.5's dual average z_avg = (z_l + z_r)/2.
func AvgYawPose(a, b YawPose) YawPose {
	return YawPose{
		X:   (a.X + b.X) / 2,
		Y:   (a.Y + b.Y) / 2,
		Z:   (a.Z + b.Z) / 2,
		Yaw: WrapYaw((a.Yaw + b.Yaw) / 2),
	}
}
