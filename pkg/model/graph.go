package model

import (
	"fmt"
	"math"
	"sort"
)

// Graph is a factory plan: recipe nodes, item-flow edges and user pins.
// It is not safe for concurrent use; callers serialize access.
type Graph struct {
	nodes      map[int64]*Node
	edges      map[int64]*Edge
	edgeKeys   map[edgeKey]int64
	pins       map[int64]float64
	nextNodeID int64
	nextEdgeID int64
}

// NewGraph creates an empty plan.
func NewGraph() *Graph {
	return &Graph{
		nodes:      make(map[int64]*Node),
		edges:      make(map[int64]*Edge),
		edgeKeys:   make(map[edgeKey]int64),
		pins:       make(map[int64]float64),
		nextNodeID: 1,
		nextEdgeID: 1,
	}
}

// AddNode creates a node for recipeID. Ids are never reused.
func (g *Graph) AddNode(recipeID string, pos Position) *Node {
	n := &Node{
		ID:       g.nextNodeID,
		RecipeID: recipeID,
		Position: pos,
	}
	g.nodes[n.ID] = n
	g.nextNodeID++
	return n
}

// Node returns a node by id
func (g *Graph) Node(id int64) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes ordered by id.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// RemoveNode deletes a node together with its incident edges and pin.
func (g *Graph) RemoveNode(id int64) error {
	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("remove node %d: %w", id, ErrNodeNotFound)
	}
	for eid, e := range g.edges {
		if e.From == id || e.To == id {
			delete(g.edgeKeys, e.key())
			delete(g.edges, eid)
		}
	}
	delete(g.pins, id)
	delete(g.nodes, id)
	return nil
}

// AddEdge connects output item of from to an input of to.
// Self edges and duplicate (from, to, item, quality) edges are rejected.
func (g *Graph) AddEdge(from, to int64, item string, quality Quality) (*Edge, error) {
	if from == to {
		return nil, fmt.Errorf("add edge %d->%d: %w", from, to, ErrSelfEdge)
	}
	if _, ok := g.nodes[from]; !ok {
		return nil, fmt.Errorf("add edge from %d: %w", from, ErrNodeNotFound)
	}
	if _, ok := g.nodes[to]; !ok {
		return nil, fmt.Errorf("add edge to %d: %w", to, ErrNodeNotFound)
	}
	if quality == "" {
		quality = QualityNormal
	}

	e := &Edge{From: from, To: to, Item: item, Quality: quality}
	if existing, ok := g.edgeKeys[e.key()]; ok {
		return g.edges[existing], fmt.Errorf("add edge %d->%d %s: %w", from, to, item, ErrDuplicateEdge)
	}

	e.ID = g.nextEdgeID
	g.nextEdgeID++
	g.edges[e.ID] = e
	g.edgeKeys[e.key()] = e.ID
	return e, nil
}

// RemoveEdge deletes an edge by id.
func (g *Graph) RemoveEdge(id int64) error {
	e, ok := g.edges[id]
	if !ok {
		return fmt.Errorf("remove edge %d: %w", id, ErrEdgeNotFound)
	}
	delete(g.edgeKeys, e.key())
	delete(g.edges, id)
	return nil
}

// Edge returns an edge by id
func (g *Graph) Edge(id int64) (*Edge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// Edges returns all edges ordered by id.
func (g *Graph) Edges() []*Edge {
	edges := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, e)
	}
	sortEdges(edges)
	return edges
}

func sortEdges(edges []*Edge) {
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
}

// ValidateRate rejects negative and non-finite rates.
func ValidateRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return fmt.Errorf("%g: %w", rate, ErrInvalidTarget)
	}
	return nil
}

// Pin makes rate the authoritative target of node id. Pins on every other node
// reachable from id are cleared first, so a network holds at most one pin.
func (g *Graph) Pin(id int64, rate float64) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("pin node %d: %w", id, ErrNodeNotFound)
	}
	if err := ValidateRate(rate); err != nil {
		return fmt.Errorf("pin node %d: %w", id, err)
	}

	for _, other := range g.Reachable(id) {
		delete(g.pins, other)
	}
	g.pins[id] = rate
	n.Target = &rate
	return nil
}

// Unpin clears the pin and stored target of node id.
func (g *Graph) Unpin(id int64) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("unpin node %d: %w", id, ErrNodeNotFound)
	}
	delete(g.pins, id)
	n.Target = nil
	return nil
}

// Pinned returns the pinned rate of node id.
func (g *Graph) Pinned(id int64) (float64, bool) {
	rate, ok := g.pins[id]
	return rate, ok
}

// Pins returns a copy of all pins.
func (g *Graph) Pins() map[int64]float64 {
	pins := make(map[int64]float64, len(g.pins))
	for id, rate := range g.pins {
		pins[id] = rate
	}
	return pins
}

// Reachable returns every node connected to id when edges are treated as
// undirected, including id itself, ordered by id.
func (g *Graph) Reachable(id int64) []int64 {
	if _, ok := g.nodes[id]; !ok {
		return nil
	}

	adjacency := make(map[int64][]int64)
	for _, e := range g.edges {
		adjacency[e.From] = append(adjacency[e.From], e.To)
		adjacency[e.To] = append(adjacency[e.To], e.From)
	}

	seen := map[int64]bool{id: true}
	queue := []int64{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, neighbor := range adjacency[current] {
			if !seen[neighbor] {
				seen[neighbor] = true
				queue = append(queue, neighbor)
			}
		}
	}

	ids := make([]int64, 0, len(seen))
	for nid := range seen {
		ids = append(ids, nid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Counters returns the next node and edge ids.
func (g *Graph) Counters() (nextNode, nextEdge int64) {
	return g.nextNodeID, g.nextEdgeID
}

// Restore rebuilds a graph from stored parts, checking every invariant.
func Restore(nodes []Node, edges []Edge, pins map[int64]float64, nextNode, nextEdge int64) (*Graph, error) {
	g := NewGraph()

	for i := range nodes {
		n := nodes[i]
		if n.ID <= 0 {
			return nil, fmt.Errorf("node #%d has invalid id %d", i, n.ID)
		}
		if _, dup := g.nodes[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %d", n.ID)
		}
		if n.Target != nil {
			if err := ValidateRate(*n.Target); err != nil {
				return nil, fmt.Errorf("node %d: %w", n.ID, err)
			}
			t := *n.Target
			n.Target = &t
		}
		n.Modules = append([]string(nil), n.Modules...)
		g.nodes[n.ID] = &n
		if n.ID >= g.nextNodeID {
			g.nextNodeID = n.ID + 1
		}
	}

	for i := range edges {
		e := edges[i]
		if e.From == e.To {
			return nil, fmt.Errorf("edge %d: %w", e.ID, ErrSelfEdge)
		}
		if _, ok := g.nodes[e.From]; !ok {
			return nil, fmt.Errorf("edge %d from %d: %w", e.ID, e.From, ErrNodeNotFound)
		}
		if _, ok := g.nodes[e.To]; !ok {
			return nil, fmt.Errorf("edge %d to %d: %w", e.ID, e.To, ErrNodeNotFound)
		}
		if _, dup := g.edges[e.ID]; dup || e.ID <= 0 {
			return nil, fmt.Errorf("invalid or duplicate edge id %d", e.ID)
		}
		if e.Quality == "" {
			e.Quality = QualityNormal
		}
		if _, dup := g.edgeKeys[e.key()]; dup {
			return nil, fmt.Errorf("edge %d: %w", e.ID, ErrDuplicateEdge)
		}
		g.edges[e.ID] = &e
		g.edgeKeys[e.key()] = e.ID
		if e.ID >= g.nextEdgeID {
			g.nextEdgeID = e.ID + 1
		}
	}

	for id, rate := range pins {
		if _, ok := g.nodes[id]; !ok {
			return nil, fmt.Errorf("pin on node %d: %w", id, ErrNodeNotFound)
		}
		if err := ValidateRate(rate); err != nil {
			return nil, fmt.Errorf("pin on node %d: %w", id, err)
		}
		g.pins[id] = rate
	}

	if nextNode > g.nextNodeID {
		g.nextNodeID = nextNode
	}
	if nextEdge > g.nextEdgeID {
		g.nextEdgeID = nextEdge
	}

	return g, nil
}
