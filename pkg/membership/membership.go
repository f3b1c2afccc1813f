// Package membership discovers the live participant set backing the
// consensus round's Readiness set and main-agent election, using SWIM
// gossip (github.com/hashicorp/memberlist) the way the teacher's
// swim.MembershipManager wraps it, generalized from string peer URLs to
// the int64 agent ids this core keys everything on.
package membership

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/hashicorp/memberlist"

	"github.com/dronefleet/vioconsensus/logging"
)

// Events adapts memberlist's EventDelegate to this core's logger and
// metrics, counting joins/leaves the way pkg/sync counts stale
// messages and timeouts.
type Events struct {
	SelfID int64
	Log    *logging.AgentLogger
}

func (e *Events) NotifyJoin(n *memberlist.Node) {
	id, err := parseAgentID(n.Name)
	if err != nil || id == e.SelfID {
		return
	}
	metrics.IncrCounter([]string{"membership", "join"}, 1)
	if e.Log != nil {
		e.Log.PeerJoined(id)
	}
}

func (e *Events) NotifyLeave(n *memberlist.Node) {
	id, err := parseAgentID(n.Name)
	if err != nil {
		return
	}
	metrics.IncrCounter([]string{"membership", "leave"}, 1)
	if e.Log != nil {
		e.Log.PeerLeft(id)
	}
}

func (e *Events) NotifyUpdate(n *memberlist.Node) {}

func parseAgentID(name string) (int64, error) {
	return strconv.ParseInt(name, 10, 64)
}

// Config configures the SWIM membership layer for one agent.
type Config struct {
	AgentID  int64
	BindAddr string
	BindPort int
	Seeds    []string
	Log      *logging.AgentLogger
}

// Manager wraps memberlist with the int64-agent-id vocabulary the rest
// of this core uses.
type Manager struct {
	ml      *memberlist.Memberlist
	agentID int64
}

// New creates a membership manager and, if seeds are given, attempts to
// join the existing cluster through them.
func New(cfg Config) (*Manager, error) {
	mlCfg := memberlist.DefaultLANConfig()
	mlCfg.Name = strconv.FormatInt(cfg.AgentID, 10)
	mlCfg.BindAddr = cfg.BindAddr
	mlCfg.BindPort = cfg.BindPort
	mlCfg.Events = &Events{SelfID: cfg.AgentID, Log: cfg.Log}

	ml, err := memberlist.Create(mlCfg)
	if err != nil {
		return nil, fmt.Errorf("membership: create: %w", err)
	}

	m := &Manager{ml: ml, agentID: cfg.AgentID}

	if len(cfg.Seeds) > 0 {
		if _, err := ml.Join(cfg.Seeds); err != nil {
			return nil, fmt.Errorf("membership: join seeds: %w", err)
		}
	}

	return m, nil
}

// Participants returns the ids of every live agent, including self,
// sorted is not guaranteed — pkg/sync imposes ordering for election.
func (m *Manager) Participants() []int64 {
	members := m.ml.Members()
	ids := make([]int64, 0, len(members))
	for _, mem := range members {
		id, err := parseAgentID(mem.Name)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// ParticipantAddrs maps every live agent id, excluding self, to the IP
// address memberlist observed it gossiping from. The consensus
// transport is assumed to listen on a fixed port on that same host,
// since SWIM carries no port for a second, unrelated socket.
func (m *Manager) ParticipantAddrs() map[int64]string {
	members := m.ml.Members()
	addrs := make(map[int64]string, len(members))
	for _, mem := range members {
		id, err := parseAgentID(mem.Name)
		if err != nil || id == m.agentID {
			continue
		}
		addrs[id] = mem.Addr.String()
	}
	return addrs
}

// SelfID returns this manager's own agent id.
func (m *Manager) SelfID() int64 { return m.agentID }

// Leave gracefully removes this agent from the cluster.
func (m *Manager) Leave(timeoutMillis int64) error {
	if err := m.ml.Leave(durationMillis(timeoutMillis)); err != nil {
		return fmt.Errorf("membership: leave: %w", err)
	}
	return nil
}

// Shutdown stops the underlying memberlist instance.
func (m *Manager) Shutdown() error {
	if err := m.ml.Shutdown(); err != nil {
		return fmt.Errorf("membership: shutdown: %w", err)
	}
	return nil
}

func durationMillis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
