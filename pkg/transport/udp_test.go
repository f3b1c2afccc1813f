package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUDPTransportRoundTrip(t *testing.T) {
	a, err := NewUDPTransport("127.0.0.1", 0, nil, nil)
	require.NoError(t, err)
	defer a.Close()

	b, err := NewUDPTransport("127.0.0.1", 0, nil, nil)
	require.NoError(t, err)
	defer b.Close()

	a.peers = func() []string { return []string{b.LocalAddr()} }
	b.peers = func() []string { return []string{a.LocalAddr()} }

	data, err := EncodeMessage(Message{DroneID: 1, SolverToken: 3})
	require.NoError(t, err)
	require.NoError(t, a.SendData(data))

	select {
	case msg := <-b.Inbox():
		require.Equal(t, int64(1), msg.DroneID)
		require.Equal(t, uint64(3), msg.SolverToken)
	case <-time.After(2 * time.Second):
		t.Fatal("expected message to arrive over loopback UDP")
	}

	require.NoError(t, b.SendSignal(Signal{Kind: SignalReady, Sender: 2, Token: 3}))
	select {
	case sig := <-a.Signals():
		require.Equal(t, SignalReady, sig.Kind)
		require.Equal(t, int64(2), sig.Sender)
	case <-time.After(2 * time.Second):
		t.Fatal("expected signal to arrive over loopback UDP")
	}
}
