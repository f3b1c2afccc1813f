package estimator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dronefleet/vioconsensus/pkg/consensus"
	"github.com/dronefleet/vioconsensus/pkg/dual"
	"github.com/dronefleet/vioconsensus/pkg/marginal"
	"github.com/dronefleet/vioconsensus/pkg/param"
	"github.com/dronefleet/vioconsensus/pkg/residual"
	"github.com/dronefleet/vioconsensus/pkg/solver"
	"github.com/dronefleet/vioconsensus/pkg/sync"
	"github.com/dronefleet/vioconsensus/pkg/transport"
)

type halvingSolver struct {
	blocks [][]float64
	frozen map[*float64]bool
}

func newHalvingSolver() func() solver.InnerSolver {
	return func() solver.InnerSolver { return &halvingSolver{frozen: make(map[*float64]bool)} }
}

func (s *halvingSolver) AddResidualBlock(cost residual.CostFunction, loss residual.LossFunction, params ...[]float64) {
	s.blocks = append(s.blocks, params...)
}
func (s *halvingSolver) SetManifold(p []float64, m solver.Manifold)            {}
func (s *halvingSolver) SetParameterLowerBound(p []float64, dim int, v float64) {}
func (s *halvingSolver) FreezeParameter(p []float64) {
	if len(p) > 0 {
		s.frozen[&p[0]] = true
	}
}
func (s *halvingSolver) Solve(opts solver.Options) (solver.Summary, error) {
	for _, b := range s.blocks {
		if len(b) > 0 && s.frozen[&b[0]] {
			continue
		}
		for i := range b {
			b[i] *= 0.5
		}
	}
	return solver.Summary{Success: true, InitialCost: 1, FinalCost: 0.1, Iterations: 1}, nil
}

type dummyCost struct{ n int }

func (d dummyCost) NumResiduals() int { return d.n }
func (d dummyCost) Evaluate(params [][]float64, residuals []float64, jacobians [][]float64) bool {
	return true
}

func TestSingleAgentNoPeersSolvesOnce(t *testing.T) {
	bus := transport.NewBus()
	tr := bus.Join(1)

	registry := param.NewRegistry(1)
	registry.Register(param.NewParameter("lm/a", param.Euclidean, param.InternalOwner, 3))
	registry.SetBuffer("lm/a", []float64{2, 4, 6})

	duals := dual.NewStore(registry)
	driver := solver.NewDriver(registry, newHalvingSolver())
	coordinator := sync.NewCoordinator(sync.Config{SelfID: 1, MaxWaitSteps: 2, SyncToStart: true}, registry, duals, tr, nil)

	e := New(Config{
		MaxSteps:              1,
		SkipIterationInterval: time.Millisecond,
		Weights:               consensus.DefaultWeights(),
		Eta:                   0.9,
	}, registry, duals, driver, coordinator, marginal.None{}, nil)

	primary := []residual.Residual{{Kind: residual.Depth, Params: []param.ID{"lm/a"}, Cost: dummyCost{n: 3}}}
	e.runOuterLoop(Frame{Primary: primary})

	buf, _ := registry.Buffer("lm/a")
	require.Equal(t, []float64{1, 2, 3}, buf, "single agent output should equal the inner solver's output exactly")
	require.Empty(t, duals.Pairs(), "no consensus factors should be added without a remote peer")
	require.Equal(t, sync.Idle, coordinator.State())
}

func TestPushFrameDropsWhenQueueFull(t *testing.T) {
	bus := transport.NewBus()
	tr := bus.Join(1)
	registry := param.NewRegistry(1)
	duals := dual.NewStore(registry)
	driver := solver.NewDriver(registry, newHalvingSolver())
	coordinator := sync.NewCoordinator(sync.Config{SelfID: 1}, registry, duals, tr, nil)

	e := New(Config{QueueSize: 1}, registry, duals, driver, coordinator, marginal.None{}, nil)

	require.True(t, e.PushFrame(Frame{}), "first frame should fit in the queue")
	require.False(t, e.PushFrame(Frame{}), "a full queue should drop rather than block the frame thread")
}
