package graph

import (
	"sort"

	"github.com/Invalid27/Factorio-Planner-sub000/pkg/model"
	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// Topology is the node/edge shape of a plan without items or rates.
// Parallel plan edges between the same pair of nodes collapse to one.
type Topology struct {
	graph *simple.DirectedGraph
}

// FromPlan mirrors the plan's nodes and edges into a directed graph
func FromPlan(g *model.Graph) *Topology {
	t := &Topology{graph: simple.NewDirectedGraph()}

	for _, n := range g.Nodes() {
		t.graph.AddNode(simple.Node(n.ID))
	}

	for _, e := range g.Edges() {
		// Add edge if it doesn't already exist
		if !t.graph.HasEdgeFromTo(e.From, e.To) {
			t.graph.SetEdge(t.graph.NewEdge(t.graph.Node(e.From), t.graph.Node(e.To)))
		}
	}

	return t
}

// Graph returns the underlying directed graph
func (t *Topology) Graph() *simple.DirectedGraph {
	return t.graph
}

// Networks partitions the nodes into connected components, treating every
// edge as undirected. Members are sorted by id and networks by their lowest id.
func (t *Topology) Networks() [][]int64 {
	var (
		networks [][]int64
		current  []int64
	)

	var bf traverse.BreadthFirst
	bf.WalkAll(gonum.Undirect{G: t.graph},
		func() { current = nil },
		func() {
			sort.Slice(current, func(i, j int) bool { return current[i] < current[j] })
			networks = append(networks, current)
		},
		func(n gonum.Node) { current = append(current, n.ID()) },
	)

	sort.Slice(networks, func(i, j int) bool { return networks[i][0] < networks[j][0] })
	return networks
}

// Suppliers returns the ids of nodes with an edge into id, sorted.
func (t *Topology) Suppliers(id int64) []int64 {
	return collect(t.graph.To(id))
}

// Consumers returns the ids of nodes id has an edge into, sorted.
func (t *Topology) Consumers(id int64) []int64 {
	return collect(t.graph.From(id))
}

func collect(it gonum.Nodes) []int64 {
	var ids []int64
	for it.Next() {
		ids = append(ids, it.Node().ID())
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
