package solver

import "github.com/dronefleet/vioconsensus/pkg/param"

// FreezeSpec captures the freezing rules from spec.md §4.4 point 4:
// extrinsics and time-offset freeze when disabled or the sliding
// window isn't saturated yet; the self agent's first pose freezes when
// no valid prior residual is present.
type FreezeSpec struct {
	EstimateExtrinsic bool
	EstimateTD        bool
	WindowSaturated   bool

	FreezeFirstSelfPose bool
	SelfFirstPoseID     param.ID

	MinInverseDepth float64
}

// ShouldFreeze reports whether p must be frozen this iteration.
func (f FreezeSpec) ShouldFreeze(p param.Parameter) bool {
	switch p.Kind {
	case param.Extrinsic:
		return !f.EstimateExtrinsic || !f.WindowSaturated
	case param.TimeOffset:
		return !f.EstimateTD || !f.WindowSaturated
	case param.SE3Pose:
		return f.FreezeFirstSelfPose && p.ID == f.SelfFirstPoseID
	default:
		return false
	}
}
