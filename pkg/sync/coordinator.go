// Package sync implements the Sync & Transport Coordinator from
// spec.md §4.5: round negotiation, broadcast of local state, reception
// and application of peer state, and the trigger points for the ARock
// dual update.
package sync

import (
	"fmt"
	"strconv"
	"strings"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	metrics "github.com/hashicorp/go-metrics"

	"github.com/dronefleet/vioconsensus/logging"
	"github.com/dronefleet/vioconsensus/pkg/dual"
	"github.com/dronefleet/vioconsensus/pkg/param"
	"github.com/dronefleet/vioconsensus/pkg/residual"
	"github.com/dronefleet/vioconsensus/pkg/transport"
)

// State is one of the three per-agent round states from spec.md §4.5.
type State int

const (
	Idle State = iota
	Solving
	Publishing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Solving:
		return "solving"
	case Publishing:
		return "publishing"
	default:
		return "unknown"
	}
}

// Config configures one Coordinator.
type Config struct {
	SelfID         int64
	MaxWaitSteps   int
	SyncToStart    bool
	DedupCacheSize int
}

// Coordinator drives round negotiation and reception on top of a
// Transport, a Parameter Registry, and a Dual-State Store.
type Coordinator struct {
	cfg       Config
	registry  *param.Registry
	duals     *dual.Store
	transport transport.Transport
	log       *logging.AgentLogger

	mu           stdsync.Mutex
	state        State
	token        uint64
	participants *participantSet
	ready        map[int64]bool
	dedup        *dedupCache
	pending      []transport.Message
	waitSteps    int
}

// NewCoordinator creates a coordinator that starts in Idle at token 0
// with only itself as a known participant.
func NewCoordinator(cfg Config, registry *param.Registry, duals *dual.Store, tr transport.Transport, log *logging.AgentLogger) *Coordinator {
	size := cfg.DedupCacheSize
	if size <= 0 {
		size = 512
	}
	c := &Coordinator{
		cfg:          cfg,
		registry:     registry,
		duals:        duals,
		transport:    tr,
		log:          log,
		state:        Idle,
		participants: newParticipantSet(),
		ready:        make(map[int64]bool),
		dedup:        newDedupCache(size),
	}
	c.participants.Add(cfg.SelfID)
	return c
}

// AddParticipant registers a peer discovered through membership.
func (c *Coordinator) AddParticipant(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.participants.Add(id)
}

// RemoveParticipant drops a peer that left the membership set.
func (c *Coordinator) RemoveParticipant(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.participants.Remove(id)
	delete(c.ready, id)
}

// IsMain reports whether this agent is the main agent for the current
// participant set — the lowest id among participants, per spec.md §4.5/§9.
func (c *Coordinator) IsMain() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	main, ok := c.participants.Main()
	return ok && main == c.cfg.SelfID
}

// State returns the current round state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Token returns the current round token.
func (c *Coordinator) Token() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// HasRemoteCoupling reports whether any residual in the set references
// a parameter owned by another agent — the gate spec.md §9's Open
// Question resolves NON_DIST against, replacing an always-true
// short-circuit with a real check. Internal parameters
// (param.InternalOwner) have no owning agent and do not count.
func HasRemoteCoupling(residuals []residual.Residual, registry *param.Registry) bool {
	for _, r := range residuals {
		for _, p := range r.Params {
			if pm, ok := registry.Get(p); ok && pm.Owner != registry.SelfID() && pm.Owner != param.InternalOwner {
				return true
			}
		}
	}
	return false
}

// Tick runs one Idle-state negotiation step: decide between READY and
// NON_DIST based on HasRemoteCoupling, and — if this agent is main and
// every participant has signaled READY — emit START for the next token
// and transition to Solving.
func (c *Coordinator) Tick(residuals []residual.Residual) error {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return nil
	}
	token := c.token
	c.mu.Unlock()

	if !c.cfg.SyncToStart {
		// Asynchronous mode: no round negotiation, solve immediately
		// every tick at the current token.
		c.beginRound(token, c.cfg.SelfID)
		return nil
	}

	if !HasRemoteCoupling(residuals, c.registry) {
		// Nothing to negotiate: solve locally this iteration without
		// waiting on peers (spec.md §4.5's NON_DIST signal).
		if c.log != nil {
			c.log.NonDistOptOut(token)
		}
		c.sendSignal(transport.Signal{Kind: transport.SignalNonDist, Sender: c.cfg.SelfID, Token: token})
		c.beginRound(token, c.cfg.SelfID)
		return nil
	}

	c.sendSignal(transport.Signal{Kind: transport.SignalReady, Sender: c.cfg.SelfID, Token: token})

	c.mu.Lock()
	c.ready[c.cfg.SelfID] = true
	allReady := len(c.ready) >= c.participants.Len()
	main, _ := c.participants.Main()
	isMain := main == c.cfg.SelfID
	c.mu.Unlock()

	if isMain && allReady {
		next := token + 1
		c.sendSignal(transport.Signal{Kind: transport.SignalStart, Sender: c.cfg.SelfID, Token: next})
		c.beginRound(next, c.cfg.SelfID)
	}
	return nil
}

// HandleSignal applies token semantics from spec.md §4.5 to an incoming
// round-negotiation signal: strictly-older tokens are dropped, equal
// tokens are accepted, and strictly-newer tokens fast-forward this
// agent's token and clear the readiness set. Only a START begins a
// round, logged with its sender as leader; a READY or NON_DIST with a
// newer token records the sender as ready and assigns no leader.
func (c *Coordinator) HandleSignal(sig transport.Signal) {
	c.mu.Lock()
	c.participants.Add(sig.Sender)

	if sig.Token < c.token {
		c.mu.Unlock()
		metrics.IncrCounter([]string{"sync", "stale_message"}, 1)
		if c.log != nil {
			c.log.StaleMessageDropped(sig.Sender, sig.Token, c.token)
		}
		return
	}
	if sig.Token > c.token {
		c.token = sig.Token
		c.ready = make(map[int64]bool)
	}

	switch sig.Kind {
	case transport.SignalReady, transport.SignalNonDist:
		c.ready[sig.Sender] = true
		c.mu.Unlock()
	case transport.SignalStart:
		c.mu.Unlock()
		c.beginRound(sig.Token, sig.Sender)
	default:
		c.mu.Unlock()
	}
}

func (c *Coordinator) beginRound(token uint64, leader int64) {
	c.mu.Lock()
	c.token = token
	c.state = Solving
	c.ready = make(map[int64]bool)
	participants := c.participants.Len()
	c.mu.Unlock()

	if c.log != nil {
		c.log.RoundStarted(token, leader, participants)
	}
}

// FinishSolving transitions Solving to Publishing; callers invoke this
// after the Local Step Driver's RunIteration returns, whatever its
// outcome, since a failed inner solve still needs the round to
// terminate cleanly (spec.md §4.4/§7).
func (c *Coordinator) FinishSolving() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Publishing
}

// Publish builds the broadcast message from every self-owned parameter
// in the registry and hands it to the transport, then returns the
// coordinator to Idle. Dual-state entries are never self-owned — they
// exist only for parameters a peer owns (spec.md §4.2's
// EnsureAllRemoteDuals only ever creates a dual for a remote parameter)
// — so the broadcast set is the registry's own primal, not the dual
// store. A transport send failure is logged and counted, not fatal —
// consensus is best-effort by design (spec.md §7).
func (c *Coordinator) Publish(iteration int) error {
	msg := transport.Message{
		ID:             uuid.NewString(),
		Timestamp:      float64(time.Now().UnixMilli()) / 1000.0,
		DroneID:        c.cfg.SelfID,
		SolverToken:    c.Token(),
		IterationCount: iteration,
	}

	sent := 0
	for _, p := range c.registry.Iterate() {
		if p.Owner != c.cfg.SelfID {
			continue
		}
		buf, ok := c.registry.Buffer(p.ID)
		if !ok {
			continue
		}

		switch p.Kind {
		case param.SE3Pose, param.YawPoseKind:
			msg.FrameIDs = append(msg.FrameIDs, string(p.ID))
			msg.FramePoses = append(msg.FramePoses, append([]float64(nil), buf...))
		case param.Extrinsic:
			msg.CamIDs = append(msg.CamIDs, string(p.ID))
			msg.Extrinsic = append(msg.Extrinsic, append([]float64(nil), buf...))
		case param.Euclidean:
			peer, ok := parseRelcoordPeer(p.ID)
			if !ok || len(buf) != 3 {
				continue
			}
			msg.RemoteDroneIDs = append(msg.RemoteDroneIDs, peer)
			msg.RelativeCoordinates = append(msg.RelativeCoordinates, append([]float64(nil), buf...))
		default:
			continue
		}
		sent++
	}

	data, err := transport.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("sync: encode message: %w", err)
	}

	if err := c.transport.SendData(data); err != nil {
		metrics.IncrCounter([]string{"sync", "transport_send_failure"}, 1)
		if c.log != nil {
			c.log.Error("publish", err)
		}
	} else if c.log != nil {
		c.log.RoundPublished(msg.SolverToken, iteration, sent)
	}

	c.mu.Lock()
	c.state = Idle
	c.mu.Unlock()
	return nil
}

// parseRelcoordPeer extracts the peer id from a relative-coordinate
// parameter id of the form "relcoord/<peer>", the naming convention
// acceptMessage uses to reconstruct the same id on reception.
func parseRelcoordPeer(id param.ID) (int64, bool) {
	const prefix = "relcoord/"
	s := string(id)
	if !strings.HasPrefix(s, prefix) {
		return 0, false
	}
	peer, err := strconv.ParseInt(s[len(prefix):], 10, 64)
	if err != nil {
		return 0, false
	}
	return peer, true
}

// ApplyMessage applies a received broadcast: duplicate detection first
// (spec.md §7's duplicate-broadcast, silently ignored), then the
// regular stale/fast-forward token handling, then per-field application
// into the Dual-State Store's remote slot.
func (c *Coordinator) ApplyMessage(msg transport.Message) {
	if c.dedup.SeenBefore(msg.ID) {
		metrics.IncrCounter([]string{"sync", "duplicate_broadcast"}, 1)
		if c.log != nil {
			c.log.DuplicateMessageDropped(msg.DroneID, msg.SolverToken)
		}
		return
	}
	c.acceptMessage(msg)
}

func (c *Coordinator) acceptMessage(msg transport.Message) {
	c.mu.Lock()
	c.participants.Add(msg.DroneID)
	current := c.token
	c.mu.Unlock()

	if msg.SolverToken < current {
		metrics.IncrCounter([]string{"sync", "stale_message"}, 1)
		if c.log != nil {
			c.log.StaleMessageDropped(msg.DroneID, msg.SolverToken, current)
		}
		return
	}
	if msg.SolverToken > current {
		c.mu.Lock()
		c.token = msg.SolverToken
		c.mu.Unlock()
	}

	retained := false
	for i, fid := range msg.FrameIDs {
		if !c.tryApplyRemote(param.ID(fid), msg.DroneID, msg.FramePoses[i]) {
			retained = true
		}
	}
	for i, cid := range msg.CamIDs {
		if !c.tryApplyRemote(param.ID(cid), msg.DroneID, msg.Extrinsic[i]) {
			retained = true
		}
	}
	for i, peer := range msg.RemoteDroneIDs {
		id := param.ID(fmt.Sprintf("relcoord/%d", peer))
		if !c.tryApplyRemote(id, msg.DroneID, msg.RelativeCoordinates[i]) {
			retained = true
		}
	}

	if retained {
		c.mu.Lock()
		c.pending = append(c.pending, msg)
		c.mu.Unlock()
	}
}

// tryApplyRemote writes value into the remote dual slot for (id, peer)
// if id is already locally registered, creating the dual state lazily
// (spec.md §8 scenario 6). It reports false if id is still unknown, in
// which case the caller retains the message for the next scan.
func (c *Coordinator) tryApplyRemote(id param.ID, peer int64, value []float64) bool {
	if _, ok := c.registry.Get(id); !ok {
		return false
	}
	c.duals.EnsureWithRemote(id, peer, value)
	return true
}

// RescanPending retries every message retained because it referenced a
// parameter not yet locally registered (spec.md §6's "receiver must
// tolerate unknown ... ids by storing them until locally registered").
func (c *Coordinator) RescanPending() {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, msg := range pending {
		c.acceptMessage(msg)
	}
}

// WaitStep advances the empty-reception wait counter while Idle,
// reporting true once max_wait_steps is exceeded — the bounded wait
// budget of spec.md §5's suspension point (b). Crossing the threshold
// also counts and logs a timeout for every participant that never
// signaled readiness this round.
func (c *Coordinator) WaitStep() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle {
		c.waitSteps = 0
		return false
	}

	c.waitSteps++
	if c.waitSteps <= c.cfg.MaxWaitSteps {
		return false
	}

	token := c.token
	for _, id := range c.participants.All() {
		if id == c.cfg.SelfID || c.ready[id] {
			continue
		}
		metrics.IncrCounter([]string{"sync", "participant_timeout"}, 1)
		if c.log != nil {
			c.log.ParticipantTimeout(id, token)
		}
	}
	c.waitSteps = 0
	return true
}

// sendSignal is best-effort: a transport failure is logged and counted
// but never aborts round negotiation (spec.md §7).
func (c *Coordinator) sendSignal(sig transport.Signal) {
	if err := c.transport.SendSignal(sig); err != nil {
		metrics.IncrCounter([]string{"sync", "transport_send_failure"}, 1)
		if c.log != nil {
			c.log.Error("send_signal", err)
		}
	}
}
