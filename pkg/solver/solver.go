// Package solver wraps the black-box nonlinear-least-squares inner
// solver consumed per spec.md §6, and implements the Local Step Driver
// from §4.4 on top of it.
package solver

import (
	"time"

	"github.com/dronefleet/vioconsensus/pkg/residual"
)

// Manifold describes a parameter block's local parameterization to the
// inner solver — SE3's tangent-space perturbation, yaw-pose's heading
// wrap, or nil for an ordinary Euclidean block.
type Manifold interface {
	AmbientSize() int
	TangentSize() int
}

// SE3Manifold is the 7-ambient/6-tangent right-perturbation
// parameterization spec.md §4.4 requires for SE3 pose blocks.
type SE3Manifold struct{}

func (SE3Manifold) AmbientSize() int { return 7 }
func (SE3Manifold) TangentSize() int { return 6 }

// YawManifold is the 4-ambient/4-tangent parameterization spec.md §4.4
// requires for yaw-pose blocks (heading wraps, but the tangent and
// ambient dimensions coincide).
type YawManifold struct{}

func (YawManifold) AmbientSize() int { return 4 }
func (YawManifold) TangentSize() int { return 4 }

// Options bounds one inner solve, per spec.md §4.4 point 5.
type Options struct {
	MaxIterations int
	MaxSolverTime time.Duration
}

// Summary reports the outcome of one inner solve, per spec.md §6.
type Summary struct {
	InitialCost float64
	FinalCost   float64
	Iterations  int
	Time        time.Duration
	Success     bool
	Message     string
}

// InnerSolver is the black-box nonlinear-least-squares solver this
// core schedules but never implements (spec.md §1, §6). A fresh
// instance is constructed for every outer iteration so that cost,
// loss, and manifold objects added to it can be torn down cleanly
// (spec.md §4.5's termination note).
type InnerSolver interface {
	AddResidualBlock(cost residual.CostFunction, loss residual.LossFunction, params ...[]float64)
	SetManifold(param []float64, manifold Manifold)
	SetParameterLowerBound(param []float64, dim int, value float64)
	FreezeParameter(param []float64)
	Solve(opts Options) (Summary, error)
}

// Factory constructs a fresh InnerSolver for one outer iteration.
type Factory func() InnerSolver
