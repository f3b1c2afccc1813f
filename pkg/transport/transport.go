package transport

// Transport is the unreliable, best-effort datagram bus this core
// consumes (spec.md §6). SendData carries an encoded Message; SendSignal
// carries a round-negotiation control signal. Inbox/Signals deliver
// what the network receiver thread (spec.md §5) has drained so far —
// implementations must tolerate the coordinator reading slower than
// packets arrive, e.g. by buffering internally.
type Transport interface {
	SendData(payload []byte) error
	SendSignal(sig Signal) error
	Inbox() <-chan Message
	Signals() <-chan Signal
}

// Bus is an in-process, all-to-all Transport used for tests and single
// -host simulation: every agent registered on the same Bus receives
// every other agent's sends, mirroring the "unreliable best-effort"
// contract without needing real sockets.
type Bus struct {
	peers map[int64]*busEndpoint
}

type busEndpoint struct {
	self    int64
	inbox   chan Message
	signals chan Signal
	bus     *Bus
}

// NewBus creates an empty in-process transport bus.
func NewBus() *Bus {
	return &Bus{peers: make(map[int64]*busEndpoint)}
}

// Join registers agent id on the bus and returns its Transport handle.
// Buffer sizes are generous but finite — a slow reader drops messages,
// matching the "best-effort" semantics real UDP would have.
func (b *Bus) Join(id int64) Transport {
	ep := &busEndpoint{
		self:    id,
		inbox:   make(chan Message, 256),
		signals: make(chan Signal, 256),
		bus:     b,
	}
	b.peers[id] = ep
	return ep
}

func (e *busEndpoint) SendData(payload []byte) error {
	msg, err := DecodeMessage(payload)
	if err != nil {
		return err
	}
	for id, peer := range e.bus.peers {
		if id == e.self {
			continue
		}
		select {
		case peer.inbox <- msg:
		default:
			// Drop on a full inbox: best-effort, not reliable.
		}
	}
	return nil
}

func (e *busEndpoint) SendSignal(sig Signal) error {
	for id, peer := range e.bus.peers {
		if id == e.self {
			continue
		}
		select {
		case peer.signals <- sig:
		default:
		}
	}
	return nil
}

func (e *busEndpoint) Inbox() <-chan Message  { return e.inbox }
func (e *busEndpoint) Signals() <-chan Signal { return e.signals }
