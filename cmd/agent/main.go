// Command agent runs one consensus-optimization agent: it wires the
// Parameter Registry, Dual-State Store, Local Step Driver, Sync &
// Transport Coordinator, and SWIM membership together and starts the
// estimator's fixed thread pool.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dronefleet/vioconsensus/internal/config"
	"github.com/dronefleet/vioconsensus/logging"
	"github.com/dronefleet/vioconsensus/pkg/consensus"
	"github.com/dronefleet/vioconsensus/pkg/dual"
	"github.com/dronefleet/vioconsensus/pkg/estimator"
	"github.com/dronefleet/vioconsensus/pkg/marginal"
	"github.com/dronefleet/vioconsensus/pkg/membership"
	"github.com/dronefleet/vioconsensus/pkg/param"
	"github.com/dronefleet/vioconsensus/pkg/residual"
	"github.com/dronefleet/vioconsensus/pkg/solver"
	"github.com/dronefleet/vioconsensus/pkg/sync"
	"github.com/dronefleet/vioconsensus/pkg/transport"
)

func main() {
	var (
		selfID        = flag.Int64("id", 1, "This agent's numeric id")
		bindAddr      = flag.String("bind", "0.0.0.0", "Address to bind SWIM membership and the UDP transport to")
		bindPort      = flag.Int("port", 7946, "SWIM membership port")
		transportPort = flag.Int("transport-port", 7947, "UDP consensus transport port")
		seeds         = flag.String("seeds", "", "Comma-separated list of host:port SWIM seeds")
		etaK          = flag.Float64("eta", 0.9, "ARock relaxation step, in (0, 1]")
		maxSteps      = flag.Int("max-steps", 50, "Upper bound on outer iterations per call")
		maxWaitSteps  = flag.Int("max-wait-steps", 20, "Upper bound on empty-reception rounds before bailing")
		syncToStart   = flag.Bool("sync-to-start", true, "Use token round negotiation instead of running asynchronously")
		showUsage     = flag.Bool("help", false, "Show usage help")
	)
	flag.Parse()

	if *showUsage {
		printUsage()
		return
	}

	cfg := config.DefaultConfig()
	cfg.SelfID = *selfID
	cfg.BindAddr = *bindAddr
	cfg.BindPort = *bindPort
	cfg.EtaK = *etaK
	cfg.MaxSteps = *maxSteps
	cfg.MaxWaitSteps = *maxWaitSteps
	cfg.ConsensusSyncToStart = *syncToStart
	if *seeds != "" {
		cfg.Seeds = splitSeeds(*seeds)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.NewAgentLogger(cfg.SelfID)

	mm, err := membership.New(membership.Config{
		AgentID:  cfg.SelfID,
		BindAddr: cfg.BindAddr,
		BindPort: cfg.BindPort,
		Seeds:    cfg.Seeds,
		Log:      log,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "membership: %v\n", err)
		os.Exit(1)
	}

	peerLister := func() []string {
		hosts := mm.ParticipantAddrs()
		addrs := make([]string, 0, len(hosts))
		for _, host := range hosts {
			addrs = append(addrs, fmt.Sprintf("%s:%d", host, *transportPort))
		}
		return addrs
	}

	tr, err := transport.NewUDPTransport(cfg.BindAddr, *transportPort, peerLister, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "transport: %v\n", err)
		os.Exit(1)
	}

	registry := param.NewRegistry(cfg.SelfID)
	duals := dual.NewStore(registry)
	coordinator := sync.NewCoordinator(sync.Config{
		SelfID:       cfg.SelfID,
		MaxWaitSteps: cfg.MaxWaitSteps,
		SyncToStart:  cfg.ConsensusSyncToStart,
	}, registry, duals, tr, log)

	// A real deployment supplies its own black-box nonlinear least
	// -squares backend here; identitySolver is a placeholder that
	// leaves every parameter untouched, since forming and solving the
	// underlying VIO residuals is outside this core (spec.md §1).
	driver := solver.NewDriver(registry, newIdentitySolver)

	est := estimator.New(estimator.Config{
		MaxSteps:              cfg.MaxSteps,
		SkipIterationInterval: cfg.SkipIterationInterval(),
		Eta:                   cfg.EtaK,
		Weights: consensus.Weights{
			RhoT:        cfg.RhoFrameT,
			RhoTheta:    cfg.RhoFrameTheta,
			RhoLandmark: cfg.RhoLandmark,
		},
		SolverOptions: solver.Options{MaxIterations: cfg.MaxSteps},
	}, registry, duals, driver, coordinator, marginal.None{}, log)

	stopReceiver := make(chan struct{})
	go est.RunReceiver(tr, stopReceiver)
	go est.Run()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("=== Agent %d ===\n", cfg.SelfID)
	fmt.Printf("Membership: %s:%d\n", cfg.BindAddr, cfg.BindPort)
	fmt.Printf("Transport:  %s:%d\n", cfg.BindAddr, *transportPort)
	fmt.Printf("eta=%.2f max_steps=%d max_wait_steps=%d sync_to_start=%v\n",
		cfg.EtaK, cfg.MaxSteps, cfg.MaxWaitSteps, cfg.ConsensusSyncToStart)
	fmt.Println("Running. Press Ctrl+C to stop.")

	<-sigCh
	fmt.Println("\nShutdown signal received, stopping...")

	close(stopReceiver)
	est.Stop()

	if err := tr.Close(); err != nil {
		fmt.Printf("Error closing transport: %v\n", err)
	}
	if err := mm.Leave(5000); err != nil {
		fmt.Printf("Error leaving cluster: %v\n", err)
	}
	if err := mm.Shutdown(); err != nil {
		fmt.Printf("Error shutting down membership: %v\n", err)
	}
}

func splitSeeds(csv string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			if i > start {
				out = append(out, csv[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `
=== Distributed Consensus Agent ===

USAGE:
  %s [options]

EXAMPLES:
  %s -id=1 -port=7946 -transport-port=7947
  %s -id=2 -seeds=192.168.1.10:7946 -port=7946 -transport-port=7947

OPTIONS:
`, os.Args[0], os.Args[0], os.Args[0])

	flag.PrintDefaults()
}

type identitySolver struct{}

func newIdentitySolver() solver.InnerSolver { return identitySolver{} }

func (identitySolver) AddResidualBlock(cost residual.CostFunction, loss residual.LossFunction, params ...[]float64) {
}
func (identitySolver) SetManifold(p []float64, manifold solver.Manifold)          {}
func (identitySolver) SetParameterLowerBound(p []float64, dim int, value float64) {}
func (identitySolver) FreezeParameter(p []float64)                                {}
func (identitySolver) Solve(opts solver.Options) (solver.Summary, error) {
	return solver.Summary{Success: true, Message: "identity placeholder solve"}, nil
}
