package solver

import (
	"time"

	"github.com/Invalid27/Factorio-Planner-sub000/pkg/model"
)

const (
	DefaultTolerance           = 1e-6
	DefaultMaxIterations       = 10
	DefaultMaxPropagationSteps = 10000
	DefaultMaxNodeRevisions    = 50
)

// Options configures one solve. The zero value of any numeric field selects its default.
type Options struct {
	Aggregation         model.Aggregation
	Tolerance           float64 // Smallest change treated as a change
	MaxIterations       int     // Balancer pass cap
	MaxPropagationSteps int     // Propagator work-item budget per network
	MaxNodeRevisions    int     // Propagator rewrites allowed per node per pass
}

// DefaultOptions returns max aggregation and the default limits.
func DefaultOptions() Options {
	return Options{
		Aggregation:         model.AggregateMax,
		Tolerance:           DefaultTolerance,
		MaxIterations:       DefaultMaxIterations,
		MaxPropagationSteps: DefaultMaxPropagationSteps,
		MaxNodeRevisions:    DefaultMaxNodeRevisions,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Aggregation == "" {
		o.Aggregation = d.Aggregation
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.MaxPropagationSteps <= 0 {
		o.MaxPropagationSteps = d.MaxPropagationSteps
	}
	if o.MaxNodeRevisions <= 0 {
		o.MaxNodeRevisions = d.MaxNodeRevisions
	}
	return o
}

// Mode is how a network was solved
type Mode string

const (
	ModePinned   Mode = "pinned"
	ModeBalanced Mode = "balanced"
)

// NetworkReport describes the solve of one connected network.
type NetworkReport struct {
	Nodes     []int64 `json:"nodes"`
	Source    int64   `json:"source,omitempty"` // Authoritative pin, 0 when balanced
	Mode      Mode    `json:"mode"`
	Steps     int     `json:"steps"` // Work items or balancer passes
	Converged bool    `json:"converged"`
	Cyclic    bool    `json:"cyclic"`
}

// Report summarizes a solve.
type Report struct {
	Networks []NetworkReport `json:"networks"`
	Updated  int             `json:"updated"` // Nodes whose stored target changed
	Gaps     []string        `json:"gaps,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// Converged reports whether every network converged.
func (r Report) Converged() bool {
	for _, n := range r.Networks {
		if !n.Converged {
			return false
		}
	}
	return true
}
