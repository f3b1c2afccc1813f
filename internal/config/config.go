// Package config centralizes this agent's configuration: a single
// Config struct built from DefaultConfig plus overrides, replacing the
// package-level params singleton an earlier design carried.
package config

import (
	"time"

	"github.com/hashicorp/go-multierror"
)

// Config is the complete set of options this core reads.
type Config struct {
	SelfID int64

	BindAddr string
	BindPort int
	Seeds    []string

	RhoFrameT       float64
	RhoFrameTheta   float64
	RhoLandmark     float64
	EtaK            float64
	MaxSteps        int
	MaxWaitSteps    int
	SkipIterationUs int64

	ConsensusSyncToStart       bool
	AlwaysFixedFirstPose       bool
	RemoveBaseWhenMarginRemote bool
	EstimateExtrinsic          bool
	EstimateTD                 bool

	MinSolveFrames int
	MaxSldWinSize  int
}

// DefaultConfig returns the baseline configuration; callers override
// individual fields before Validate.
func DefaultConfig() *Config {
	return &Config{
		SelfID:   1,
		BindAddr: "0.0.0.0",
		BindPort: 7946,

		RhoFrameT:       0.1,
		RhoFrameTheta:   0.1,
		RhoLandmark:     0.1,
		EtaK:            0.9,
		MaxSteps:        50,
		MaxWaitSteps:    20,
		SkipIterationUs: 1000,

		ConsensusSyncToStart:       true,
		AlwaysFixedFirstPose:       true,
		RemoveBaseWhenMarginRemote: false,
		EstimateExtrinsic:          false,
		EstimateTD:                 false,

		MinSolveFrames: 2,
		MaxSldWinSize:  10,
	}
}

// Validate aggregates every invalid field into a single error instead
// of failing on the first one, mirroring how a memberlist-adjacent
// config with more than one field to check would validate.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.SelfID <= 0 {
		result = multierror.Append(result, errInvalid("self_id must be positive"))
	}
	if c.BindPort <= 0 || c.BindPort > 65535 {
		result = multierror.Append(result, errInvalid("bind_port must be a valid TCP/UDP port"))
	}
	if c.EtaK <= 0 || c.EtaK > 1 {
		result = multierror.Append(result, errInvalid("eta_k must be in (0, 1]"))
	}
	if c.RhoFrameT < 0 || c.RhoFrameTheta < 0 || c.RhoLandmark < 0 {
		result = multierror.Append(result, errInvalid("consensus penalty weights must be non-negative"))
	}
	if c.MaxSteps <= 0 {
		result = multierror.Append(result, errInvalid("max_steps must be positive"))
	}
	if c.MaxWaitSteps <= 0 {
		result = multierror.Append(result, errInvalid("max_wait_steps must be positive"))
	}
	if c.MinSolveFrames <= 0 || c.MaxSldWinSize < c.MinSolveFrames {
		result = multierror.Append(result, errInvalid("sliding window bounds are inconsistent"))
	}

	return result.ErrorOrNil()
}

// SkipIterationInterval converts SkipIterationUs to a time.Duration.
func (c *Config) SkipIterationInterval() time.Duration {
	return time.Duration(c.SkipIterationUs) * time.Microsecond
}

type configError string

func (e configError) Error() string { return string(e) }

func errInvalid(msg string) error { return configError(msg) }
