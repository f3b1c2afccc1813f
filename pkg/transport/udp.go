package transport

import (
	"fmt"
	"net"

	"github.com/dronefleet/vioconsensus/logging"
)

// packet kind prefixes distinguish a data broadcast from a signal on
// the single UDP socket this transport uses for both, unlike the
// teacher's split UDP-control/TCP-data pair.
const (
	packetData   byte = 0x01
	packetSignal byte = 0x02
)

// PeerLister returns the current best-effort broadcast target list —
// typically pkg/membership's Manager.ParticipantAddrs hosts joined with
// the transport port by the caller.
type PeerLister func() []string

// UDPTransport is a concrete, best-effort Transport over UDP datagrams,
// generalized from the teacher's network.UDPServer: one socket, one
// goroutine reading packets, and a Broadcast-style send to every known
// peer instead of a fixed neighbor table.
type UDPTransport struct {
	conn    *net.UDPConn
	peers   PeerLister
	log     *logging.AgentLogger
	inbox   chan Message
	signals chan Signal
	stop    chan struct{}
}

// NewUDPTransport binds a UDP socket at bindAddr:bindPort and starts
// reading incoming packets. peers is consulted on every send.
func NewUDPTransport(bindAddr string, bindPort int, peers PeerLister, log *logging.AgentLogger) (*UDPTransport, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", bindAddr, bindPort))
	if err != nil {
		return nil, fmt.Errorf("transport: resolve bind address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen: %w", err)
	}

	t := &UDPTransport{
		conn:    conn,
		peers:   peers,
		log:     log,
		inbox:   make(chan Message, 256),
		signals: make(chan Signal, 256),
		stop:    make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

func (t *UDPTransport) readLoop() {
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-t.stop:
			return
		default:
		}

		n, _, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.stop:
				return
			default:
				if t.log != nil {
					t.log.Error("udp_read", err)
				}
				continue
			}
		}
		if n < 1 {
			continue
		}
		t.dispatch(buf[0], buf[1:n])
	}
}

func (t *UDPTransport) dispatch(kind byte, body []byte) {
	switch kind {
	case packetData:
		msg, err := DecodeMessage(body)
		if err != nil {
			if t.log != nil {
				t.log.Error("udp_decode_message", err)
			}
			return
		}
		select {
		case t.inbox <- msg:
		default:
		}
	case packetSignal:
		sig, err := decodeSignal(body)
		if err != nil {
			if t.log != nil {
				t.log.Error("udp_decode_signal", err)
			}
			return
		}
		select {
		case t.signals <- sig:
		default:
		}
	}
}

// SendData broadcasts an already-encoded Message payload to every
// known peer. Best-effort: a per-peer send failure is returned only
// once every peer has been tried and all failed.
func (t *UDPTransport) SendData(payload []byte) error {
	return t.broadcast(packetData, payload)
}

// SendSignal encodes and broadcasts a round-negotiation signal.
func (t *UDPTransport) SendSignal(sig Signal) error {
	body, err := encodeSignal(sig)
	if err != nil {
		return fmt.Errorf("transport: encode signal: %w", err)
	}
	return t.broadcast(packetSignal, body)
}

func (t *UDPTransport) broadcast(kind byte, body []byte) error {
	framed := make([]byte, len(body)+1)
	framed[0] = kind
	copy(framed[1:], body)

	peers := t.peers()
	var lastErr error
	sent := 0
	for _, addr := range peers {
		udpAddr, err := net.ResolveUDPAddr("udp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		if _, err := t.conn.WriteToUDP(framed, udpAddr); err != nil {
			lastErr = err
			continue
		}
		sent++
	}
	if sent == 0 && len(peers) > 0 {
		return fmt.Errorf("transport: send to all %d peers failed: %w", len(peers), lastErr)
	}
	return nil
}

func (t *UDPTransport) Inbox() <-chan Message  { return t.inbox }
func (t *UDPTransport) Signals() <-chan Signal { return t.signals }

// LocalAddr returns the socket's bound address, useful when bindPort 0
// let the OS choose a free port.
func (t *UDPTransport) LocalAddr() string { return t.conn.LocalAddr().String() }

// Close stops the read loop and releases the socket.
func (t *UDPTransport) Close() error {
	close(t.stop)
	return t.conn.Close()
}
