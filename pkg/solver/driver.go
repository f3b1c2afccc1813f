package solver

import (
	"github.com/dronefleet/vioconsensus/pkg/param"
	"github.com/dronefleet/vioconsensus/pkg/residual"
)

// Driver implements the Local Step Driver, spec.md §4.4: it discards
// the previous inner problem, builds a fresh one from the primary and
// consensus residuals, configures manifolds/bounds/freezing, and
// invokes the inner solver once with bounded iterations and time.
type Driver struct {
	registry  *param.Registry
	newSolver Factory
}

// NewDriver creates a driver backed by registry, using factory to
// construct a fresh InnerSolver each RunIteration call.
func NewDriver(registry *param.Registry, factory Factory) *Driver {
	return &Driver{registry: registry, newSolver: factory}
}

// RunIteration builds and solves one outer iteration's problem. It
// works on private copies of every touched parameter's buffer and only
// commits them back into the registry on success — spec.md §4.4's
// failure policy requires that no partial primals are published when
// the inner solver reports non-success.
func (d *Driver) RunIteration(primary, consensusResiduals []residual.Residual, freeze FreezeSpec, opts Options) (Summary, error) {
	all := make([]residual.Residual, 0, len(primary)+len(consensusResiduals))
	all = append(all, primary...)
	all = append(all, consensusResiduals...)

	working := make(map[param.ID][]float64)
	touch := func(id param.ID) []float64 {
		if buf, ok := working[id]; ok {
			return buf
		}
		canon, ok := d.registry.Buffer(id)
		if !ok {
			panic("solver: residual references unregistered parameter " + string(id))
		}
		cp := make([]float64, len(canon))
		copy(cp, canon)
		working[id] = cp
		return cp
	}

	inner := d.newSolver()

	for _, r := range all {
		bufs := make([][]float64, len(r.Params))
		for i, id := range r.Params {
			bufs[i] = touch(id)
		}
		inner.AddResidualBlock(r.Cost, r.Loss, bufs...)
	}

	for _, p := range d.registry.Iterate() {
		buf := touch(p.ID)

		switch p.Kind {
		case param.SE3Pose:
			inner.SetManifold(buf, SE3Manifold{})
		case param.YawPoseKind:
			inner.SetManifold(buf, YawManifold{})
		case param.InverseDepth:
			inner.SetParameterLowerBound(buf, 0, freeze.MinInverseDepth)
		}

		if freeze.ShouldFreeze(p) {
			inner.FreezeParameter(buf)
		}
	}

	summary, err := inner.Solve(opts)
	if err != nil || !summary.Success {
		if err == nil {
			err = ErrInnerSolverFailed
		}
		return summary, err
	}

	for id, buf := range working {
		d.registry.SetBuffer(id, buf)
	}
	return summary, nil
}
