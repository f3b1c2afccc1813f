// Package residual models the tagged variant of residual-info shapes
// from spec.md §3 and §9: a small closed set of kinds sharing one
// uniform paramsList/relevantTo(frameSet) interface, in place of the
// open virtual-method hierarchy the original estimator used.
package residual

import "github.com/dronefleet/vioconsensus/pkg/param"

// Kind is the closed set of residual shapes this core schedules.
// Residual kinds carry no cost math themselves (that's out of scope,
// spec.md §1) — the tag only drives marginalization relevance and
// diagnostics.
type Kind int

const (
	IMU Kind = iota
	TwoFrameOneCam
	TwoFrameTwoCam
	OneFrameTwoCam
	Depth
	Prior
	Consensus
)

func (k Kind) String() string {
	switch k {
	case IMU:
		return "imu"
	case TwoFrameOneCam:
		return "two_frame_one_cam"
	case TwoFrameTwoCam:
		return "two_frame_two_cam"
	case OneFrameTwoCam:
		return "one_frame_two_cam"
	case Depth:
		return "depth"
	case Prior:
		return "prior"
	case Consensus:
		return "consensus"
	default:
		return "unknown"
	}
}

// CostFunction is the black-box cost the inner solver evaluates. Its
// shape (Evaluate over stacked parameter blocks producing residuals
// and optional jacobians) matches how Ceres-style bindings expose a
// residual block; how a given kind builds this function is out of
// scope for this core (spec.md §1).
type CostFunction interface {
	// NumResiduals is the residual block's output dimension.
	NumResiduals() int
	// Evaluate computes residuals (and, if jacobians is non-nil,
	// per-parameter jacobians) given the current parameter blocks in
	// the same order as Residual.Params.
	Evaluate(params [][]float64, residuals []float64, jacobians [][]float64) bool
}

// LossFunction is the black-box robust loss applied to a residual
// block's squared norm; nil means no robustification.
type LossFunction interface {
	Evaluate(sqNorm float64, out *[3]float64)
}

// Residual associates a cost function with an ordered list of
// parameters and a kind tag.
type Residual struct {
	Kind     Kind
	Params   []param.ID
	FrameIDs []string
	Cost     CostFunction
	Loss     LossFunction
}

// ParamsList returns the ordered parameter ids this residual
// references.
func (r Residual) ParamsList() []param.ID { return r.Params }

// RelevantTo reports whether r touches any frame id in frameSet — used
// by the (out-of-scope) marginalizer to decide which residuals a
// keyframe removal must summarize into a prior.
func (r Residual) RelevantTo(frameSet map[string]bool) bool {
	for _, f := range r.FrameIDs {
		if frameSet[f] {
			return true
		}
	}
	return false
}
