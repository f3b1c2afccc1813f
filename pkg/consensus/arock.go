package consensus

import (
	"github.com/dronefleet/vioconsensus/pkg/dual"
	"github.com/dronefleet/vioconsensus/pkg/geometry"
	"github.com/dronefleet/vioconsensus/pkg/param"
)

// ApplyARockUpdate performs spec.md §4.5's relaxed fixed-point step on
// every tracked dual pair: it takes the two-agent average z_avg of
// local_dual and remote_dual, measures its tangent-space difference e
// from the current primal, and sets local_dual to local_dual retracted
// by -eta*e (z_l' = z_l - eta*(z_avg - x) in the Euclidean case). eta
// must be in (0, 1].
func ApplyARockUpdate(store *dual.Store, registry *param.Registry, eta float64) {
	for _, pr := range store.Pairs() {
		p, ok := registry.Get(pr.Param)
		if !ok || len(pr.Local) == 0 || len(pr.Remote) == 0 {
			continue
		}
		buf, ok := registry.Buffer(pr.Param)
		if !ok {
			continue
		}

		switch p.Kind {
		case param.SE3Pose:
			x := geometry.SE3FromSlice(buf)
			zl := geometry.SE3FromSlice(pr.Local)
			zr := geometry.SE3FromSlice(pr.Remote)
			zavg := geometry.AvgSE3(zl, zr)
			e := zavg.BoxMinus(x)

			var neg [6]float64
			for i := range neg {
				neg[i] = -eta * e[i]
			}
			zlNew := zl.Retract(neg)
			scalars := zlNew.Scalars()
			store.SetLocal(pr.Param, pr.Peer, scalars[:])

		case param.YawPoseKind:
			x := geometry.YawPoseFromSlice(buf)
			zl := geometry.YawPoseFromSlice(pr.Local)
			zr := geometry.YawPoseFromSlice(pr.Remote)
			zavg := geometry.AvgYawPose(zl, zr)
			e := zavg.BoxMinus(x)

			delta := [4]float64{eta * e[0], eta * e[1], eta * e[2], geometry.WrapYaw(eta * e[3])}
			zlNew := geometry.YawPose{
				X:   zl.X - delta[0],
				Y:   zl.Y - delta[1],
				Z:   zl.Z - delta[2],
				Yaw: geometry.WrapYaw(zl.Yaw - delta[3]),
			}
			store.SetLocal(pr.Param, pr.Peer, []float64{zlNew.X, zlNew.Y, zlNew.Z, zlNew.Yaw})

		default:
			n := len(buf)
			zlNew := make([]float64, n)
			for i := 0; i < n; i++ {
				zavg := (pr.Local[i] + pr.Remote[i]) / 2
				delta := eta * (zavg - buf[i])
				zlNew[i] = pr.Local[i] - delta
			}
			store.SetLocal(pr.Param, pr.Peer, zlNew)
		}
	}
}
