package dual

import (
	"testing"

	"github.com/dronefleet/vioconsensus/pkg/param"
	"github.com/stretchr/testify/require"
)

func newFixture() (*param.Registry, *Store) {
	r := param.NewRegistry(1)
	r.Register(param.NewParameter("pose/2/5", param.SE3Pose, 2, 0))
	r.SetBuffer("pose/2/5", []float64{1, 2, 3, 0, 0, 0, 1})
	return r, NewStore(r)
}

func TestEnsureIsIdempotentAndSeedsFromPrimal(t *testing.T) {
	_, s := newFixture()

	require.True(t, s.Ensure("pose/2/5", 2))
	require.True(t, s.Ensure("pose/2/5", 2))

	local, ok := s.GetLocal("pose/2/5", 2)
	require.True(t, ok)
	require.Equal(t, []float64{1, 2, 3, 0, 0, 0, 1}, local)

	remote, ok := s.GetRemote("pose/2/5", 2)
	require.True(t, ok)
	require.Equal(t, local, remote)
}

func TestEnsureUnregisteredFails(t *testing.T) {
	r := param.NewRegistry(1)
	s := NewStore(r)
	require.False(t, s.Ensure("nope", 2))
	require.False(t, s.Has("nope", 2))
}

func TestSetRemoteDoesNotTouchLocal(t *testing.T) {
	_, s := newFixture()
	s.Ensure("pose/2/5", 2)

	s.SetRemote("pose/2/5", 2, []float64{9, 9, 9, 0, 0, 0, 1})

	remote, _ := s.GetRemote("pose/2/5", 2)
	require.Equal(t, []float64{9, 9, 9, 0, 0, 0, 1}, remote)

	local, _ := s.GetLocal("pose/2/5", 2)
	require.Equal(t, []float64{1, 2, 3, 0, 0, 0, 1}, local)
}

func TestEnsureWithRemoteLazyCreation(t *testing.T) {
	r := param.NewRegistry(1)
	s := NewStore(r)

	// Scenario 6: a remote value arrives before the parameter is
	// registered locally.
	require.False(t, s.EnsureWithRemote("pose/2/5", 2, []float64{5, 5, 5, 0, 0, 0, 1}))
	require.False(t, s.Has("pose/2/5", 2))

	r.Register(param.NewParameter("pose/2/5", param.SE3Pose, 2, 0))
	r.SetBuffer("pose/2/5", []float64{1, 1, 1, 0, 0, 0, 1})

	require.True(t, s.EnsureWithRemote("pose/2/5", 2, []float64{5, 5, 5, 0, 0, 0, 1}))
	remote, ok := s.GetRemote("pose/2/5", 2)
	require.True(t, ok)
	require.Equal(t, []float64{5, 5, 5, 0, 0, 0, 1}, remote)

	local, _ := s.GetLocal("pose/2/5", 2)
	require.Equal(t, []float64{1, 1, 1, 0, 0, 0, 1}, local)
}

func TestPairsSnapshot(t *testing.T) {
	_, s := newFixture()
	s.Ensure("pose/2/5", 2)

	pairs := s.Pairs()
	require.Len(t, pairs, 1)
	require.Equal(t, int64(2), pairs[0].Peer)
	require.Equal(t, param.ID("pose/2/5"), pairs[0].Param)
}
