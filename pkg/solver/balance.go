package solver

import (
	"math"

	"github.com/Invalid27/Factorio-Planner-sub000/pkg/logging"
)

// balance recomputes supplier targets from consumer targets in a network
// without a pin, until a pass changes nothing or the iteration cap is hit.
// Cyclic networks may stop at the cap; the last values are kept.
func balance(ctx *solveContext, opts Options, network []int64, initial map[int64]float64) (map[int64]float64, int, bool) {
	working := make(map[int64]float64, len(network))
	for _, id := range network {
		working[id] = initial[id]
	}

	order := demandOrder(ctx, network)

	for iteration := 0; iteration < opts.MaxIterations; iteration++ {
		changed := false
		maxChange := 0.0

		for _, supplier := range order {
			aggregated, found := 0.0, false
			for _, e := range ctx.out[supplier] {
				if _, ok := working[e.To]; !ok {
					continue
				}
				d, ok := ctx.demand(e, working[e.To])
				if !ok {
					continue
				}
				aggregated = opts.Aggregation.Combine(aggregated, d)
				found = true
			}
			if !found {
				continue
			}

			change := math.Abs(aggregated - working[supplier])
			if change > opts.Tolerance {
				working[supplier] = aggregated
				changed = true
				maxChange = math.Max(maxChange, change)
			}
		}

		logging.Trace("balancer pass", "network", network[0], "iteration", iteration, "maxChange", maxChange)

		if !changed {
			return working, iteration + 1, true
		}
	}

	logging.Warn("balancer did not converge, keeping last values", "network", network[0], "iterations", opts.MaxIterations)
	return working, opts.MaxIterations, false
}

// demandOrder lists the network's nodes consumers-first (reverse topological
// order), so on acyclic networks one pass settles every supplier. Nodes on
// cycles never reach zero pending consumers and are appended by id.
func demandOrder(ctx *solveContext, network []int64) []int64 {
	member := make(map[int64]bool, len(network))
	for _, id := range network {
		member[id] = true
	}

	// Counted per distinct consumer node, matching the topology's simple graph
	pending := make(map[int64]int, len(network))
	for _, id := range network {
		for _, consumer := range ctx.topo.Consumers(id) {
			if member[consumer] {
				pending[id]++
			}
		}
	}

	order := make([]int64, 0, len(network))
	placed := make(map[int64]bool, len(network))
	var queue []int64
	for _, id := range network {
		if pending[id] == 0 {
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)
		placed[current] = true
		for _, supplier := range ctx.topo.Suppliers(current) {
			if !member[supplier] {
				continue
			}
			pending[supplier]--
			if pending[supplier] == 0 {
				queue = append(queue, supplier)
			}
		}
	}

	for _, id := range network {
		if !placed[id] {
			order = append(order, id)
		}
	}

	return order
}
