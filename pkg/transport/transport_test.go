package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeMessageRoundTrip(t *testing.T) {
	msg := Message{
		Timestamp:      12.5,
		DroneID:        2,
		SolverToken:    7,
		IterationCount: 3,
		FrameIDs:       []string{"f/2/1", "f/2/2"},
		FramePoses:     [][]float64{{0, 0, 0, 0, 0, 0, 1}, {1, 0, 0, 0, 0, 0, 1}},
		CamIDs:         []string{"cam0"},
		Extrinsic:      [][]float64{{0, 0, 0, 0, 0, 0, 1}},
		RemoteDroneIDs: []int64{1, 3},
	}

	data, err := EncodeMessage(msg)
	require.NoError(t, err)

	decoded, err := DecodeMessage(data)
	require.NoError(t, err)
	require.Equal(t, msg, decoded)
}

func TestBusDeliversToOtherPeersOnly(t *testing.T) {
	bus := NewBus()
	a := bus.Join(1)
	b := bus.Join(2)

	data, err := EncodeMessage(Message{DroneID: 1, SolverToken: 1})
	require.NoError(t, err)
	require.NoError(t, a.SendData(data))

	select {
	case msg := <-b.Inbox():
		require.Equal(t, int64(1), msg.DroneID)
	case <-time.After(time.Second):
		t.Fatal("expected peer 2 to receive the message")
	}

	select {
	case <-a.Inbox():
		t.Fatal("sender should not receive its own broadcast")
	default:
	}
}

func TestBusSignalFanout(t *testing.T) {
	bus := NewBus()
	a := bus.Join(1)
	b := bus.Join(2)
	c := bus.Join(3)

	require.NoError(t, a.SendSignal(Signal{Kind: SignalReady, Sender: 1, Token: 5}))

	for _, ep := range []Transport{b, c} {
		select {
		case sig := <-ep.Signals():
			require.Equal(t, SignalReady, sig.Kind)
			require.Equal(t, uint64(5), sig.Token)
		case <-time.After(time.Second):
			t.Fatal("expected signal fanout to all other peers")
		}
	}
}
