package solver

import (
	"fmt"
	"sort"

	"github.com/Invalid27/Factorio-Planner-sub000/pkg/catalog"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/graph"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/model"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/modifiers"
)

// nodeInfo caches what the solver needs to know about a node.
type nodeInfo struct {
	recipe       *catalog.Recipe // nil when the recipe is missing from the catalog
	primary      float64         // Primary output per craft
	productivity float64
}

// usable reports whether the node can convert between crafts and targets.
func (n nodeInfo) usable() bool {
	return n.recipe != nil && n.primary > 0
}

// crafts converts a primary-output rate into crafts per unit time.
func (n nodeInfo) crafts(target float64) float64 {
	return target / (n.primary * (1 + n.productivity))
}

// target converts crafts per unit time into a primary-output rate.
func (n nodeInfo) target(crafts float64) float64 {
	return crafts * n.primary * (1 + n.productivity)
}

// solveContext holds per-solve lookups. It is built once per solve and discarded.
type solveContext struct {
	graph *model.Graph
	topo  *graph.Topology
	info  map[int64]nodeInfo
	in    map[int64][]*model.Edge
	out   map[int64][]*model.Edge
	gaps  map[string]bool
}

func newSolveContext(g *model.Graph, topo *graph.Topology, cat catalog.Catalog, resolver *modifiers.Resolver) *solveContext {
	ctx := &solveContext{
		graph: g,
		topo:  topo,
		info:  make(map[int64]nodeInfo),
		in:    make(map[int64][]*model.Edge),
		out:   make(map[int64][]*model.Edge),
		gaps:  make(map[string]bool),
	}

	for _, n := range g.Nodes() {
		var info nodeInfo
		if recipe, ok := cat.Recipe(n.RecipeID); ok {
			info.recipe = recipe
			if primary, ok := recipe.Primary(); ok {
				info.primary = primary.Amount
			}
			info.productivity = resolver.Resolve(n).Productivity
		}
		if !info.usable() {
			ctx.gap(fmt.Sprintf("node %d: recipe %q is not in the catalog or has no primary output", n.ID, n.RecipeID))
		}
		ctx.info[n.ID] = info
	}

	// Edges() is ordered by id, so adjacency lists are too
	for _, e := range g.Edges() {
		ctx.out[e.From] = append(ctx.out[e.From], e)
		ctx.in[e.To] = append(ctx.in[e.To], e)
	}

	return ctx
}

func (c *solveContext) gap(msg string) {
	c.gaps[msg] = true
}

func (c *solveContext) gapList() []string {
	if len(c.gaps) == 0 {
		return nil
	}
	list := make([]string, 0, len(c.gaps))
	for msg := range c.gaps {
		list = append(list, msg)
	}
	sort.Strings(list)
	return list
}

// edgeAmounts returns the per-craft amount the supplier produces and the
// consumer consumes of the edge item. ok is false for referential gaps.
func (c *solveContext) edgeAmounts(e *model.Edge) (supplier, consumer nodeInfo, produced, consumed float64, ok bool) {
	supplier, consumer = c.info[e.From], c.info[e.To]
	if !supplier.usable() || !consumer.usable() {
		return supplier, consumer, 0, 0, false
	}

	produced = supplier.recipe.OutputAmount(e.Item)
	consumed = consumer.recipe.InputAmount(e.Item)
	if produced <= 0 {
		c.gap(fmt.Sprintf("edge %d: node %d does not produce %s", e.ID, e.From, e.Item))
		return supplier, consumer, 0, 0, false
	}
	if consumed <= 0 {
		c.gap(fmt.Sprintf("edge %d: node %d does not consume %s", e.ID, e.To, e.Item))
		return supplier, consumer, 0, 0, false
	}
	return supplier, consumer, produced, consumed, true
}

// demand returns the primary-output target the supplier of e needs so the
// consumer can run at consumerTarget.
func (c *solveContext) demand(e *model.Edge, consumerTarget float64) (float64, bool) {
	supplier, consumer, produced, consumed, ok := c.edgeAmounts(e)
	if !ok {
		return 0, false
	}

	required := consumer.crafts(consumerTarget) * consumed
	supplierCrafts := required / (produced * (1 + supplier.productivity))
	return supplier.target(supplierCrafts), true
}

// supply returns the primary-output target the consumer of e can reach on
// what the supplier produces at supplierTarget.
func (c *solveContext) supply(e *model.Edge, supplierTarget float64) (float64, bool) {
	supplier, consumer, produced, consumed, ok := c.edgeAmounts(e)
	if !ok {
		return 0, false
	}

	volume := supplier.crafts(supplierTarget) * produced * (1 + supplier.productivity)
	return consumer.target(volume / consumed), true
}
