// Package planner is the application boundary around a plan: it owns the
// graph, applies edits, and re-solves after each one.
//
// Solves are coalesced. A solve requested while another is running does not
// start a second one; it marks the running one dirty, and exactly one
// follow-up solve runs when it finishes, however many requests arrived.
package planner

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/Invalid27/Factorio-Planner-sub000/pkg/catalog"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/flow"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/logging"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/model"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/pubsub"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/solver"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/store"
)

var (
	ErrUnknownRecipe = errors.New("unknown recipe")
	ErrUnknownModule = errors.New("unknown module")
	ErrUnknownTier   = errors.New("unknown machine tier")
	ErrInvalidValue  = errors.New("invalid value")
)

// Unit is the time base of rates crossing the planner boundary. Plans always
// store rates per minute.
type Unit string

const (
	PerMinute Unit = "minute"
	PerSecond Unit = "second"
)

func (u Unit) perMinute() float64 {
	if u == PerSecond {
		return 60
	}
	return 1
}

// Options configures a Planner.
type Options struct {
	Solver    solver.Options
	Unit      Unit
	Publisher pubsub.Publisher // Optional; receives one event per solve
}

// Planner owns one plan. All methods are safe for concurrent use.
type Planner struct {
	mu       sync.Mutex // guards everything below up to the solve guard
	graph    *model.Graph
	docID    uuid.UUID
	catalog  catalog.Catalog
	prefs    catalog.Preferences
	solver   *solver.Solver
	flows    *flow.Evaluator
	unit     Unit
	report   solver.Report
	revision uint64

	pub pubsub.Publisher

	guard     sync.Mutex
	computing bool
	pending   bool

	onSolved func(solver.Report)
}

// New creates a planner over an empty plan.
func New(cat catalog.Catalog, prefs catalog.Preferences, opts Options) *Planner {
	unit := opts.Unit
	if unit == "" {
		unit = PerMinute
	}
	return &Planner{
		graph:   model.NewGraph(),
		docID:   uuid.New(),
		catalog: cat,
		prefs:   prefs,
		solver:  solver.New(cat, prefs, opts.Solver),
		flows:   flow.NewEvaluator(cat, prefs),
		unit:    unit,
		pub:     opts.Publisher,
	}
}

// OnSolved registers a hook run after every solve, outside the plan lock.
func (p *Planner) OnSolved(fn func(solver.Report)) {
	p.guard.Lock()
	defer p.guard.Unlock()
	p.onSolved = fn
}

// Unit returns the rate unit used at the boundary.
func (p *Planner) Unit() Unit {
	return p.unit
}

// Aggregation returns the current policy.
func (p *Planner) Aggregation() model.Aggregation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.solver.Options().Aggregation
}

// mutate runs fn under the plan lock and solves if it succeeded.
func (p *Planner) mutate(fn func(g *model.Graph) error) error {
	p.mu.Lock()
	err := fn(p.graph)
	if err == nil {
		p.revision++
	}
	p.mu.Unlock()

	if err != nil {
		return err
	}
	p.requestSolve(pubsub.EventSolved)
	return nil
}

// SetTarget pins node id at rate, or unpins it when rate is nil. Pinning
// clears any other pin in the node's network.
func (p *Planner) SetTarget(id int64, rate *float64) error {
	return p.mutate(func(g *model.Graph) error {
		if rate == nil {
			return g.Unpin(id)
		}
		return g.Pin(id, *rate*p.unit.perMinute())
	})
}

// AddNode places a node for a catalog recipe.
func (p *Planner) AddNode(recipeID string, pos model.Position) (model.Node, error) {
	var added model.Node
	err := p.mutate(func(g *model.Graph) error {
		if _, ok := p.catalog.Recipe(recipeID); !ok {
			return fmt.Errorf("%q: %w", recipeID, ErrUnknownRecipe)
		}
		added = *g.AddNode(recipeID, pos)
		return nil
	})
	return added, err
}

// RemoveNode deletes a node with its edges and pin.
func (p *Planner) RemoveNode(id int64) error {
	return p.mutate(func(g *model.Graph) error {
		return g.RemoveNode(id)
	})
}

// AddEdge connects two nodes. Self and duplicate edges are rejected without
// changing the plan or solving.
func (p *Planner) AddEdge(from, to int64, item string, quality model.Quality) (model.Edge, error) {
	var added model.Edge
	err := p.mutate(func(g *model.Graph) error {
		e, err := g.AddEdge(from, to, item, quality)
		if err != nil {
			return err
		}
		added = *e
		return nil
	})
	return added, err
}

// RemoveEdge deletes an edge.
func (p *Planner) RemoveEdge(id int64) error {
	return p.mutate(func(g *model.Graph) error {
		return g.RemoveEdge(id)
	})
}

// SetAggregation changes how suppliers combine demand and re-solves.
func (p *Planner) SetAggregation(a model.Aggregation) error {
	parsed, err := model.ParseAggregation(string(a))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return p.mutate(func(*model.Graph) error {
		p.solver = p.solver.WithAggregation(parsed)
		return nil
	})
}

// SetModules replaces a node's installed modules.
func (p *Planner) SetModules(id int64, modules []string) error {
	return p.mutate(func(g *model.Graph) error {
		n, ok := g.Node(id)
		if !ok {
			return fmt.Errorf("node %d: %w", id, model.ErrNodeNotFound)
		}
		for _, m := range modules {
			if _, ok := p.catalog.Module(m); !ok {
				return fmt.Errorf("%q: %w", m, ErrUnknownModule)
			}
		}
		n.Modules = slices.Clone(modules)
		return nil
	})
}

// SetTier selects the machine tier of a node; "" restores the default.
func (p *Planner) SetTier(id int64, tierID string) error {
	return p.mutate(func(g *model.Graph) error {
		n, ok := g.Node(id)
		if !ok {
			return fmt.Errorf("node %d: %w", id, model.ErrNodeNotFound)
		}
		if tierID != "" {
			recipe, ok := p.catalog.Recipe(n.RecipeID)
			if !ok {
				return fmt.Errorf("node %d: %q: %w", id, n.RecipeID, ErrUnknownRecipe)
			}
			found := slices.ContainsFunc(p.catalog.Tiers(recipe.Category), func(t *catalog.Tier) bool {
				return t.ID == tierID
			})
			if !found {
				return fmt.Errorf("%q for %s: %w", tierID, recipe.Category, ErrUnknownTier)
			}
		}
		n.TierID = tierID
		return nil
	})
}

// SetSpeedMultiplier scales a node's crafting speed; 0 restores 1.
func (p *Planner) SetSpeedMultiplier(id int64, m float64) error {
	if m < 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return fmt.Errorf("speed multiplier %g: %w", m, ErrInvalidValue)
	}
	return p.mutate(func(g *model.Graph) error {
		n, ok := g.Node(id)
		if !ok {
			return fmt.Errorf("node %d: %w", id, model.ErrNodeNotFound)
		}
		n.SpeedMultiplier = m
		return nil
	})
}

// SetCatalog swaps the catalog and re-solves the current plan against it.
func (p *Planner) SetCatalog(cat catalog.Catalog, prefs catalog.Preferences) {
	p.mu.Lock()
	opts := p.solver.Options()
	p.catalog = cat
	p.prefs = prefs
	p.solver = solver.New(cat, prefs, opts)
	p.flows = flow.NewEvaluator(cat, prefs)
	p.revision++
	p.mu.Unlock()

	p.requestSolve(pubsub.EventSolved)
}

// ComputeFlows re-solves the plan and returns the report of the last solve.
// On an unchanged plan it changes nothing.
func (p *Planner) ComputeFlows() solver.Report {
	p.requestSolve(pubsub.EventSolved)
	return p.Report()
}

// Report returns the report of the last completed solve.
func (p *Planner) Report() solver.Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.report
}

// FlowRate returns how much of item moves through one side of a node at a
// quality, in the planner's unit.
func (p *Planner) FlowRate(id int64, item string, side model.Side, quality model.Quality) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n, ok := p.graph.Node(id)
	if !ok {
		return 0, fmt.Errorf("node %d: %w", id, model.ErrNodeNotFound)
	}
	return p.flows.Rate(n, item, side, quality) / p.unit.perMinute(), nil
}

// Stats returns a node's craft rate and machine count. Target is in the
// planner's unit; crafts are always per minute.
func (p *Planner) Stats(id int64) (flow.Stats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n, ok := p.graph.Node(id)
	if !ok {
		return flow.Stats{}, fmt.Errorf("node %d: %w", id, model.ErrNodeNotFound)
	}
	s := p.flows.Stats(n)
	s.Target /= p.unit.perMinute()
	return s, nil
}

// Snapshot captures the plan as a document.
func (p *Planner) Snapshot() *store.Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	return store.FromGraph(p.docID, p.graph, p.solver.Options().Aggregation)
}

// Replace swaps in the plan a document describes. On error the current plan
// is kept unchanged.
func (p *Planner) Replace(doc *store.Document) error {
	g, agg, err := doc.Graph()
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.graph = g
	p.docID = doc.ID
	p.solver = p.solver.WithAggregation(agg)
	p.revision++
	p.mu.Unlock()

	logging.Info("plan replaced", "id", doc.ID.String(), "nodes", len(doc.Nodes), "edges", len(doc.Edges))
	p.requestSolve(pubsub.EventReloaded)
	return nil
}

// requestSolve runs a solve now, or marks one pending if a solve is running.
func (p *Planner) requestSolve(eventType string) {
	p.guard.Lock()
	if p.computing {
		p.pending = true
		p.guard.Unlock()
		logging.Trace("solve coalesced")
		return
	}
	p.computing = true
	p.guard.Unlock()

	for {
		p.solveOnce(eventType)

		p.guard.Lock()
		if !p.pending {
			p.computing = false
			p.guard.Unlock()
			return
		}
		p.pending = false
		p.guard.Unlock()
		eventType = pubsub.EventSolved
	}
}

func (p *Planner) solveOnce(eventType string) {
	p.mu.Lock()
	report := p.solver.Solve(p.graph)
	p.report = report
	event := pubsub.PlanSolved{
		Revision:    p.revision,
		Networks:    len(report.Networks),
		Updated:     report.Updated,
		Converged:   report.Converged(),
		Gaps:        report.Gaps,
		DurationMs:  report.Duration.Milliseconds(),
		Aggregation: string(p.solver.Options().Aggregation),
	}
	p.mu.Unlock()

	if !event.Converged {
		logging.Warn("plan solved approximately", "revision", event.Revision, "networks", event.Networks)
	}
	if len(event.Gaps) > 0 {
		logging.Warn("plan references recipes or items the catalog lacks", "gaps", len(event.Gaps))
	}

	if p.pub != nil {
		if err := p.pub.Publish(pubsub.TopicPlan, eventType, event); err != nil {
			logging.Warn("failed to publish solve", "error", err)
		}
	}

	p.guard.Lock()
	hook := p.onSolved
	p.guard.Unlock()
	if hook != nil {
		hook(report)
	}
}
