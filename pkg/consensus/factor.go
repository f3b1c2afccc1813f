// Package consensus builds the per-round consensus penalty residuals
// (spec.md §4.3) and applies the ARock dual update (spec.md §4.5).
package consensus

import (
	"github.com/dronefleet/vioconsensus/pkg/dual"
	"github.com/dronefleet/vioconsensus/pkg/param"
	"github.com/dronefleet/vioconsensus/pkg/residual"
)

// Build materializes one consensus residual per (peer, parameter) pair
// that has a known remote dual, pulling the local primal toward it.
// Pairs whose parameter has since been dropped from the registry, or
// whose remote dual hasn't arrived yet, are skipped — they'll be
// picked up once the corresponding condition clears.
func Build(store *dual.Store, registry *param.Registry, w Weights) []residual.Residual {
	var out []residual.Residual

	for _, pr := range store.Pairs() {
		p, ok := registry.Get(pr.Param)
		if !ok || len(pr.Remote) == 0 {
			continue
		}

		switch p.Kind {
		case param.SE3Pose:
			var target [7]float64
			copy(target[:], pr.Remote)
			out = append(out, residual.Residual{
				Kind:     residual.Consensus,
				Params:   []param.ID{pr.Param},
				FrameIDs: []string{string(pr.Param)},
				Cost:     &se3ConsensusCost{target: target, rhoT: w.RhoT, rhoTheta: w.RhoTheta},
			})
		case param.YawPoseKind:
			var target [4]float64
			copy(target[:], pr.Remote)
			out = append(out, residual.Residual{
				Kind:     residual.Consensus,
				Params:   []param.ID{pr.Param},
				FrameIDs: []string{string(pr.Param)},
				Cost:     &yawConsensusCost{target: target, rhoT: w.RhoT, rhoTheta: w.RhoTheta},
			})
		default:
			target := append([]float64(nil), pr.Remote...)
			out = append(out, residual.Residual{
				Kind:     residual.Consensus,
				Params:   []param.ID{pr.Param},
				FrameIDs: []string{string(pr.Param)},
				Cost:     &euclideanConsensusCost{target: target, rho: w.RhoLandmark},
			})
		}
	}
	return out
}
