package solver

import (
	"testing"

	"github.com/dronefleet/vioconsensus/pkg/param"
	"github.com/dronefleet/vioconsensus/pkg/residual"
	"github.com/stretchr/testify/require"
)

// fakeSolver simulates the black-box inner solver: it nudges every
// parameter block halfway toward zero once per Solve call, just enough
// to exercise the driver's buffer copy/commit contract without needing
// a real nonlinear-least-squares implementation.
type fakeSolver struct {
	blocks    [][]float64
	frozen    map[*float64]bool
	succeed   bool
	solveCall int
}

func newFakeSolver(succeed bool) func() InnerSolver {
	return func() InnerSolver {
		return &fakeSolver{succeed: succeed, frozen: make(map[*float64]bool)}
	}
}

func (f *fakeSolver) AddResidualBlock(cost residual.CostFunction, loss residual.LossFunction, params ...[]float64) {
	f.blocks = append(f.blocks, params...)
}
func (f *fakeSolver) SetManifold(p []float64, m Manifold)                    {}
func (f *fakeSolver) SetParameterLowerBound(p []float64, dim int, v float64) {}
func (f *fakeSolver) FreezeParameter(p []float64) {
	if len(p) > 0 {
		f.frozen[&p[0]] = true
	}
}

func (f *fakeSolver) Solve(opts Options) (Summary, error) {
	f.solveCall++
	if !f.succeed {
		return Summary{Success: false, Message: "diverged"}, nil
	}
	for _, b := range f.blocks {
		if len(b) > 0 && f.frozen[&b[0]] {
			continue
		}
		for i := range b {
			b[i] *= 0.5
		}
	}
	return Summary{Success: true, InitialCost: 1, FinalCost: 0.1, Iterations: 3}, nil
}

type dummyCost struct{ n int }

func (d dummyCost) NumResiduals() int { return d.n }
func (d dummyCost) Evaluate(params [][]float64, residuals []float64, jacobians [][]float64) bool {
	return true
}

func TestDriverCommitsOnSuccess(t *testing.T) {
	r := param.NewRegistry(1)
	r.Register(param.NewParameter("lm/a", param.Euclidean, param.InternalOwner, 3))
	r.SetBuffer("lm/a", []float64{2, 4, 6})

	d := NewDriver(r, newFakeSolver(true))
	primary := []residual.Residual{{Kind: residual.Depth, Params: []param.ID{"lm/a"}, Cost: dummyCost{n: 3}}}

	summary, err := d.RunIteration(primary, nil, FreezeSpec{}, Options{MaxIterations: 10})
	require.NoError(t, err)
	require.True(t, summary.Success)

	buf, _ := r.Buffer("lm/a")
	require.Equal(t, []float64{1, 2, 3}, buf)
}

func TestDriverDoesNotCommitOnFailure(t *testing.T) {
	r := param.NewRegistry(1)
	r.Register(param.NewParameter("lm/a", param.Euclidean, param.InternalOwner, 3))
	r.SetBuffer("lm/a", []float64{2, 4, 6})

	d := NewDriver(r, newFakeSolver(false))
	primary := []residual.Residual{{Kind: residual.Depth, Params: []param.ID{"lm/a"}, Cost: dummyCost{n: 3}}}

	_, err := d.RunIteration(primary, nil, FreezeSpec{}, Options{MaxIterations: 10})
	require.ErrorIs(t, err, ErrInnerSolverFailed)

	buf, _ := r.Buffer("lm/a")
	require.Equal(t, []float64{2, 4, 6}, buf, "no partial primals should be published on failure")
}

func TestDriverFreezesFirstSelfPose(t *testing.T) {
	r := param.NewRegistry(1)
	r.Register(param.NewParameter("pose/1/1", param.SE3Pose, 1, 0))
	r.SetBuffer("pose/1/1", []float64{1, 1, 1, 0, 0, 0, 1})

	d := NewDriver(r, newFakeSolver(true))
	freeze := FreezeSpec{FreezeFirstSelfPose: true, SelfFirstPoseID: "pose/1/1"}
	primary := []residual.Residual{{Kind: residual.Prior, Params: []param.ID{"pose/1/1"}, Cost: dummyCost{n: 6}}}

	_, err := d.RunIteration(primary, nil, freeze, Options{})
	require.NoError(t, err)

	buf, _ := r.Buffer("pose/1/1")
	require.Equal(t, []float64{1, 1, 1, 0, 0, 0, 1}, buf, "frozen parameter should be unchanged")
}
