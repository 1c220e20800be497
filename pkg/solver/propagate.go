package solver

import (
	"math"

	"github.com/Invalid27/Factorio-Planner-sub000/pkg/logging"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/model"
)

type direction int

const (
	upstream direction = iota
	downstream
)

type workItem struct {
	node int64
	dir  direction
}

// propagation is the state of one pinned pass over a network.
type propagation struct {
	ctx    *solveContext
	opts   Options
	source int64
	member map[int64]bool

	values    map[int64]float64
	revisions map[int64]int
	demand    map[int64]float64 // edge id -> supplier target that edge requires
	supply    map[int64]float64 // edge id -> consumer target that edge allows
	queue     []workItem
	steps     int
	capped    bool
}

// propagate spreads the source's pinned rate through its network: upstream to
// suppliers as demand, downstream to consumers as a supply limit. It returns
// the raw target of every node it reached.
func propagate(ctx *solveContext, opts Options, network []int64, source int64, rate float64) (map[int64]float64, int, bool) {
	p := &propagation{
		ctx:       ctx,
		opts:      opts,
		source:    source,
		member:    make(map[int64]bool, len(network)),
		values:    map[int64]float64{source: rate},
		revisions: make(map[int64]int),
		demand:    make(map[int64]float64),
		supply:    make(map[int64]float64),
		queue:     []workItem{{source, upstream}, {source, downstream}},
	}
	for _, id := range network {
		p.member[id] = true
	}

	for len(p.queue) > 0 {
		if p.steps >= opts.MaxPropagationSteps {
			logging.Warn("propagation step budget exhausted", "source", source, "steps", p.steps, "pending", len(p.queue))
			p.capped = true
			break
		}
		item := p.queue[0]
		p.queue = p.queue[1:]
		p.steps++

		if item.dir == upstream {
			p.upstream(item.node)
		} else {
			p.downstream(item.node)
		}
	}

	return p.values, p.steps, !p.capped
}

// upstream records the demand node places on each supplier and re-aggregates
// the supplier's target from all demand recorded against it.
func (p *propagation) upstream(node int64) {
	target := p.values[node]

	for _, e := range p.ctx.in[node] {
		if !p.member[e.From] || e.From == p.source {
			continue
		}
		d, ok := p.ctx.demand(e, target)
		if !ok {
			continue
		}
		p.demand[e.ID] = d

		combined, found := 0.0, false
		for _, out := range p.ctx.out[e.From] {
			if v, ok := p.demand[out.ID]; ok {
				combined = p.opts.Aggregation.Combine(combined, v)
				found = true
			}
		}
		if !found {
			continue
		}

		if p.set(e.From, combined) {
			p.queue = append(p.queue, workItem{e.From, upstream})
		}
	}
}

// downstream records the supply node offers each consumer and limits the
// consumer to the scarcest of its recorded supplies.
func (p *propagation) downstream(node int64) {
	target := p.values[node]

	for _, e := range p.ctx.out[node] {
		if !p.member[e.To] || e.To == p.source {
			continue
		}
		s, ok := p.ctx.supply(e, target)
		if !ok {
			continue
		}
		p.supply[e.ID] = s

		limit, found := math.Inf(1), false
		for _, in := range p.ctx.in[e.To] {
			if v, ok := p.supply[in.ID]; ok {
				limit = math.Min(limit, v)
				found = true
			}
		}
		if !found {
			continue
		}

		if p.set(e.To, limit) {
			// Re-balance the consumer's other suppliers, then continue downstream
			p.queue = append(p.queue, workItem{e.To, upstream}, workItem{e.To, downstream})
		}
	}
}

// set stores a new value for id and reports whether it changed beyond
// tolerance. A node that has been rewritten too often stops accepting values.
func (p *propagation) set(id int64, value float64) bool {
	if old, ok := p.values[id]; ok && math.Abs(old-value) <= p.opts.Tolerance {
		return false
	}
	if p.revisions[id] >= p.opts.MaxNodeRevisions {
		if !p.capped {
			logging.Warn("node revision limit reached, keeping last value", "node", id, "source", p.source)
		}
		p.capped = true
		return false
	}
	p.values[id] = value
	p.revisions[id]++
	return true
}

// pinnedSource picks the lowest-id pinned node of a network.
func pinnedSource(g *model.Graph, network []int64) (int64, float64, []int64) {
	var (
		source  int64
		rate    float64
		ignored []int64
	)
	for _, id := range network {
		r, ok := g.Pinned(id)
		if !ok {
			continue
		}
		if source == 0 {
			source, rate = id, r
			continue
		}
		ignored = append(ignored, id)
	}
	return source, rate, ignored
}
