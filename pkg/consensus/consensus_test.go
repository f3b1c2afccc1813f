package consensus

import (
	"math"
	"testing"

	"github.com/dronefleet/vioconsensus/pkg/dual"
	"github.com/dronefleet/vioconsensus/pkg/param"
	"github.com/stretchr/testify/require"
)

// two-agent, one shared SE3 pose harness: agent 1 owns the pose, agent
// 2 tracks it as remote. Both start with a 1m translational offset;
// applying ARock updates and re-projecting agent 2's primal onto its
// own dual should shrink the disagreement geometrically, per spec.md
// §8's round-trip convergence property (scenario 3).
func TestARockConvergesSE3TranslationOffset(t *testing.T) {
	const eta = 0.9

	registryA := param.NewRegistry(1)
	registryA.Register(param.NewParameter("pose/1/1", param.SE3Pose, 1, 0))
	registryA.SetBuffer("pose/1/1", []float64{0, 0, 0, 0, 0, 0, 1})

	registryB := param.NewRegistry(2)
	registryB.Register(param.NewParameter("pose/1/1", param.SE3Pose, 1, 0))
	registryB.SetBuffer("pose/1/1", []float64{1, 0, 0, 0, 0, 0, 1}) // 1m offset

	storeB := dual.NewStore(registryB)

	// A is the owner: it has no remote copy of its own pose. Only B
	// tracks it as remote, dual-linked to peer A.
	storeB.Ensure("pose/1/1", 1)

	initialOffset := 1.0
	prevDisagreement := initialOffset

	for round := 0; round < 20; round++ {
		// B applies the ARock update against its own primal.
		ApplyARockUpdate(storeB, registryB, eta)

		local, _ := storeB.GetLocal("pose/1/1", 1)
		// A "broadcasts" its own primal as the remote dual B sees.
		remoteFromA, _ := registryA.Buffer("pose/1/1")
		storeB.SetRemote("pose/1/1", 1, remoteFromA)

		// B's primal is pulled toward its own local dual by the (here
		// simulated) inner solve: move it a fixed fraction of the way,
		// standing in for the black-box solver converging the
		// consensus residual each round.
		buf, _ := registryB.Buffer("pose/1/1")
		next := make([]float64, len(buf))
		for i := range buf {
			next[i] = buf[i] + 0.5*(local[i]-buf[i])
		}
		registryB.SetBuffer("pose/1/1", next)

		disagreement := math.Abs(next[0] - remoteFromA[0])
		require.LessOrEqual(t, disagreement, prevDisagreement+1e-9)
		prevDisagreement = disagreement
	}

	require.Less(t, prevDisagreement, 0.05, "expected <5cm residual offset after rounds")
}

func TestARockYawUpdateStaysWrapped(t *testing.T) {
	registry := param.NewRegistry(2)
	registry.Register(param.NewParameter("pose/1/1", param.YawPoseKind, 1, 0))
	registry.SetBuffer("pose/1/1", []float64{0, 0, 0, 3.0})

	store := dual.NewStore(registry)
	store.Ensure("pose/1/1", 1)
	store.SetRemote("pose/1/1", 1, []float64{0, 0, 0, -3.0})

	ApplyARockUpdate(store, registry, 0.9)

	local, ok := store.GetLocal("pose/1/1", 1)
	require.True(t, ok)
	require.True(t, local[3] > -math.Pi-1e-9 && local[3] <= math.Pi+1e-9)
}

func TestBuildProducesSE3ResidualForEnsuredPair(t *testing.T) {
	registry := param.NewRegistry(2)
	registry.Register(param.NewParameter("pose/1/1", param.SE3Pose, 1, 0))
	registry.SetBuffer("pose/1/1", []float64{0, 0, 0, 0, 0, 0, 1})

	store := dual.NewStore(registry)
	// Ensure seeds both local and remote from the primal, so a
	// residual should be produced.
	store.Ensure("pose/1/1", 1)

	residuals := Build(store, registry, DefaultWeights())
	require.Len(t, residuals, 1)
	require.Equal(t, 6, residuals[0].Cost.NumResiduals())
}
