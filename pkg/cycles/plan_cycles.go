package cycles

import (
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/graph"
)

// Cycle is a set of plan nodes that feed each other
type Cycle struct {
	Nodes []int64
}

// FindCycles finds every feedback loop in the plan topology
func FindCycles(topo *graph.Topology) []Cycle {
	sccs := NewTarjanSCC(topo.Graph()).FindSCCs()

	found := make([]Cycle, 0, len(sccs))
	for _, scc := range sccs {
		found = append(found, Cycle{Nodes: scc})
	}
	return found
}

// CyclicNodes returns the set of nodes that sit on at least one cycle
func CyclicNodes(topo *graph.Topology) map[int64]bool {
	nodes := make(map[int64]bool)
	for _, c := range FindCycles(topo) {
		for _, id := range c.Nodes {
			nodes[id] = true
		}
	}
	return nodes
}
