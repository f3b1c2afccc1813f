// Package estimator wires the Parameter Registry, Dual-State Store,
// Consensus Factor Builder, Local Step Driver, and Sync & Transport
// Coordinator into the outer loop from spec.md §2, and runs it under
// the small fixed thread pool spec.md §5 describes: a frame thread
// pushing outer-iteration triggers onto a bounded queue, an estimator
// thread draining it under a single mutex, and a network receiver
// thread feeding the coordinator.
package estimator

import (
	stdsync "sync"
	"time"

	"github.com/dronefleet/vioconsensus/logging"
	"github.com/dronefleet/vioconsensus/pkg/consensus"
	"github.com/dronefleet/vioconsensus/pkg/dual"
	"github.com/dronefleet/vioconsensus/pkg/marginal"
	"github.com/dronefleet/vioconsensus/pkg/param"
	"github.com/dronefleet/vioconsensus/pkg/residual"
	"github.com/dronefleet/vioconsensus/pkg/solver"
	"github.com/dronefleet/vioconsensus/pkg/sync"
	"github.com/dronefleet/vioconsensus/pkg/transport"
)

// Frame is one keyframe-ready trigger: the caller-owned front-end's
// current primary residual set, freeze policy, and any frames evicted
// from the sliding window this iteration. Forming these residuals
// (reprojection, IMU, depth, prior) is out of scope for this core
// (spec.md §1).
type Frame struct {
	Primary         []residual.Residual
	Freeze          solver.FreezeSpec
	RemovedFrameIDs []string
}

// Config bounds one estimator's outer loop.
type Config struct {
	MaxSteps              int
	SkipIterationInterval time.Duration
	SolverOptions         solver.Options
	Weights               consensus.Weights
	Eta                   float64
	QueueSize             int
}

// Estimator runs the outer loop described in spec.md §2's data-flow
// list, coordinating the other components without forming residuals
// itself.
type Estimator struct {
	cfg          Config
	registry     *param.Registry
	duals        *dual.Store
	driver       *solver.Driver
	coordinator  *sync.Coordinator
	marginalizer marginal.Marginalizer
	log          *logging.AgentLogger

	frameQueue  chan Frame
	estimatorMu stdsync.Mutex

	stop chan struct{}
	done chan struct{}
}

// New constructs an Estimator. marginalizer may be marginal.None{} if
// the caller never evicts keyframes.
func New(cfg Config, registry *param.Registry, duals *dual.Store, driver *solver.Driver, coordinator *sync.Coordinator, marginalizer marginal.Marginalizer, log *logging.AgentLogger) *Estimator {
	size := cfg.QueueSize
	if size <= 0 {
		size = 16
	}
	return &Estimator{
		cfg:          cfg,
		registry:     registry,
		duals:        duals,
		driver:       driver,
		coordinator:  coordinator,
		marginalizer: marginalizer,
		log:          log,
		frameQueue:   make(chan Frame, size),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// PushFrame is the frame thread's entry point: it enqueues a new outer
// -iteration trigger without blocking, dropping it if the queue is
// full so a slow estimator loop never stalls the caller's frame
// -arrival path. It reports whether the frame was accepted.
func (e *Estimator) PushFrame(f Frame) bool {
	select {
	case e.frameQueue <- f:
		return true
	default:
		return false
	}
}

// RunReceiver is the network receiver thread: it drains tr's Inbox and
// Signals channels into the coordinator until stop is closed. Run it in
// its own goroutine.
func (e *Estimator) RunReceiver(tr transport.Transport, stop <-chan struct{}) {
	for {
		select {
		case msg := <-tr.Inbox():
			e.coordinator.ApplyMessage(msg)
		case sig := <-tr.Signals():
			e.coordinator.HandleSignal(sig)
		case <-stop:
			return
		}
	}
}

// Run is the estimator thread: it drains the frame queue and executes
// one outer loop per drained frame under the estimator mutex, until
// Stop is called. Run it in its own goroutine.
func (e *Estimator) Run() {
	defer close(e.done)
	for {
		select {
		case f := <-e.frameQueue:
			e.estimatorMu.Lock()
			e.runOuterLoop(f)
			e.estimatorMu.Unlock()
		case <-e.stop:
			return
		}
	}
}

// Stop signals Run to exit and waits for it to do so.
func (e *Estimator) Stop() {
	close(e.stop)
	<-e.done
}

// runOuterLoop executes spec.md §2's six-step data flow for up to
// max_steps outer iterations, terminating early per spec.md §4.5 on a
// bounded empty-reception wait or an inner-solver failure.
func (e *Estimator) runOuterLoop(f Frame) {
	primary := f.Primary
	if e.marginalizer != nil && len(f.RemovedFrameIDs) > 0 {
		if prior, ok := e.marginalizer.Marginalize(f.RemovedFrameIDs); ok {
			primary = append(append([]residual.Residual(nil), primary...), prior)
		}
	}

	for iter := 0; iter < e.cfg.MaxSteps; iter++ {
		if err := e.coordinator.Tick(primary); err != nil && e.log != nil {
			e.log.Error("tick", err)
		}

		if e.coordinator.State() != sync.Solving {
			if e.coordinator.WaitStep() {
				break
			}
			time.Sleep(e.cfg.SkipIterationInterval)
			continue
		}

		consensus.EnsureAllRemoteDuals(e.duals, e.registry)
		consensusResiduals := consensus.Build(e.duals, e.registry, e.cfg.Weights)

		summary, err := e.driver.RunIteration(primary, consensusResiduals, f.Freeze, e.cfg.SolverOptions)
		e.coordinator.FinishSolving()
		if err != nil {
			if e.log != nil {
				e.log.InnerSolveFailed(e.coordinator.Token(), iter, summary.Message)
			}
			break
		}

		consensus.ApplyARockUpdate(e.duals, e.registry, e.cfg.Eta)
		if err := e.coordinator.Publish(iter); err != nil && e.log != nil {
			e.log.Error("publish", err)
		}

		e.coordinator.RescanPending()
	}
}
