// Package marginal declares the Marginalizer interface consumed per
// spec.md §6: given a set of frame ids being dropped from the sliding
// window, it returns a prior factor over the parameters that remain.
// How marginalization itself works (Schur complement, linearization
// point, etc.) is out of scope for this core.
package marginal

import "github.com/dronefleet/vioconsensus/pkg/residual"

// Marginalizer produces a prior residual summarizing the information
// carried by the frames being removed.
type Marginalizer interface {
	// Marginalize returns a residual.Prior residual over the kept
	// parameters, or ok=false if there was nothing to summarize (e.g.
	// none of the removed frames' residuals touched a kept parameter).
	Marginalize(removedFrameIDs []string) (r residual.Residual, ok bool)
}

// None is a Marginalizer that never produces a prior — a stand-in for
// deployments that never evict keyframes from the sliding window.
type None struct{}

func (None) Marginalize(_ []string) (residual.Residual, bool) {
	return residual.Residual{}, false
}
