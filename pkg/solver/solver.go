// Package solver derives production targets for every node of a factory plan.
//
// Each connected network is solved independently. A network holding a pin is
// solved by propagating the pinned rate to suppliers (as demand) and
// consumers (as a supply limit). A network without a pin is balanced: supplier
// targets are recomputed from their consumers' stored targets until they stop
// changing. Both passes are bounded, so cyclic plans always terminate with an
// approximation rather than a guaranteed fixed point.
package solver

import (
	"time"

	"github.com/Invalid27/Factorio-Planner-sub000/pkg/catalog"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/cycles"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/graph"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/logging"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/model"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/modifiers"
)

// Solver is stateless between solves; one instance may solve many graphs.
type Solver struct {
	catalog  catalog.Catalog
	resolver *modifiers.Resolver
	opts     Options
}

// New creates a solver over an immutable catalog. prefs may be nil.
func New(cat catalog.Catalog, prefs catalog.Preferences, opts Options) *Solver {
	return &Solver{
		catalog:  cat,
		resolver: modifiers.NewResolver(cat, prefs),
		opts:     opts.withDefaults(),
	}
}

// Options returns the effective options.
func (s *Solver) Options() Options {
	return s.opts
}

// WithAggregation returns a solver sharing the catalog with a different policy.
func (s *Solver) WithAggregation(a model.Aggregation) *Solver {
	clone := *s
	clone.opts.Aggregation = a
	return &clone
}

// Solve updates the stored target of every node in g and reports what it did.
// It never fails: nodes with missing recipes contribute nothing and are listed
// in Report.Gaps.
func (s *Solver) Solve(g *model.Graph) Report {
	start := time.Now()

	topo := graph.FromPlan(g)
	ctx := newSolveContext(g, topo, s.catalog, s.resolver)
	cyclic := cycles.CyclicNodes(topo)

	var report Report
	for _, network := range topo.Networks() {
		nr := NetworkReport{Nodes: network}
		for _, id := range network {
			if cyclic[id] {
				nr.Cyclic = true
				break
			}
		}

		var values map[int64]float64
		source, rate, ignored := pinnedSource(g, network)
		if source != 0 {
			if len(ignored) > 0 {
				logging.Warn("network has several pins, using lowest id", "source", source, "ignored", ignored)
			}
			nr.Mode = ModePinned
			nr.Source = source
			values, nr.Steps, nr.Converged = propagate(ctx, s.opts, network, source, rate)
		} else {
			nr.Mode = ModeBalanced
			initial := make(map[int64]float64, len(network))
			for _, id := range network {
				n, _ := g.Node(id)
				initial[id] = n.TargetValue()
			}
			values, nr.Steps, nr.Converged = balance(ctx, s.opts, network, initial)
		}

		report.Updated += s.writeBack(g, network, source, rate, values)
		report.Networks = append(report.Networks, nr)

		logging.Debug("network solved",
			"network", network[0],
			"nodes", len(network),
			"mode", string(nr.Mode),
			"steps", nr.Steps,
			"converged", nr.Converged,
			"cyclic", nr.Cyclic,
		)
	}

	report.Gaps = ctx.gapList()
	report.Duration = time.Since(start)

	logging.Debug("solve complete",
		"networks", len(report.Networks),
		"updated", report.Updated,
		"gaps", len(report.Gaps),
		"durationMs", report.Duration.Milliseconds(),
	)
	return report
}

// writeBack stores rounded values on the network's nodes and returns how many
// targets changed. The pin source keeps its exact pinned rate; in a pinned
// network every node the pass did not reach becomes unconstrained.
func (s *Solver) writeBack(g *model.Graph, network []int64, source int64, rate float64, values map[int64]float64) int {
	updated := 0
	for _, id := range network {
		n, ok := g.Node(id)
		if !ok {
			continue
		}

		var next *float64
		switch {
		case id == source:
			r := rate
			next = &r
		default:
			v, reached := values[id]
			if !reached {
				if source == 0 {
					continue
				}
				next = nil
			} else {
				next = RoundRate(v, s.opts.Tolerance)
			}
		}

		if sameTarget(n.Target, next, s.opts.Tolerance) {
			continue
		}
		n.Target = next
		updated++
	}
	return updated
}
