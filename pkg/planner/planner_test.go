package planner

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Invalid27/Factorio-Planner-sub000/pkg/catalog/catalogtest"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/model"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/pubsub"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/solver"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/store"
)

func newPlanner(t *testing.T, opts Options) *Planner {
	t.Helper()
	return New(catalogtest.New(), catalogtest.Preferences(), opts)
}

func addNode(t *testing.T, p *Planner, recipe string) int64 {
	t.Helper()
	n, err := p.AddNode(recipe, model.Position{})
	if err != nil {
		t.Fatalf("AddNode(%s) error = %v", recipe, err)
	}
	return n.ID
}

func addEdge(t *testing.T, p *Planner, from, to int64, item string) int64 {
	t.Helper()
	e, err := p.AddEdge(from, to, item, model.QualityNormal)
	if err != nil {
		t.Fatalf("AddEdge(%d, %d, %s) error = %v", from, to, item, err)
	}
	return e.ID
}

func targetOf(t *testing.T, p *Planner, id int64) *float64 {
	t.Helper()
	for _, n := range p.Snapshot().Nodes {
		if n.ID == id {
			return n.Target
		}
	}
	t.Fatalf("Node %d not in snapshot", id)
	return nil
}

func expectTarget(t *testing.T, p *Planner, id int64, want float64) {
	t.Helper()
	got := targetOf(t, p, id)
	if got == nil || math.Abs(*got-want) > 1e-9 {
		t.Errorf("Node %d: expected target %v, got %v", id, want, got)
	}
}

func rate(v float64) *float64 {
	return &v
}

// chain builds ore -> plate -> gear.
func chain(t *testing.T, p *Planner) (ore, plate, gear int64) {
	t.Helper()
	ore = addNode(t, p, "iron-ore")
	plate = addNode(t, p, "iron-plate")
	gear = addNode(t, p, "iron-gear")
	addEdge(t, p, ore, plate, "iron-ore")
	addEdge(t, p, plate, gear, "iron-plate")
	return
}

func countSolves(p *Planner) *atomic.Int32 {
	var n atomic.Int32
	p.OnSolved(func(solver.Report) { n.Add(1) })
	return &n
}

func TestSetTarget_SolvesNetwork(t *testing.T) {
	p := newPlanner(t, Options{})
	ore, plate, gear := chain(t, p)

	if err := p.SetTarget(gear, rate(60)); err != nil {
		t.Fatalf("SetTarget() error = %v", err)
	}

	expectTarget(t, p, plate, 120)
	expectTarget(t, p, ore, 120)

	got, err := p.FlowRate(plate, "iron-plate", model.SideOutput, model.QualityNormal)
	if err != nil || got != 120 {
		t.Errorf("FlowRate() = %v, %v; want 120", got, err)
	}

	// Without a pin or stored consumer targets nothing is demanded
	if err := p.SetTarget(gear, nil); err != nil {
		t.Fatalf("SetTarget(nil) error = %v", err)
	}
	if targetOf(t, p, gear) != nil || targetOf(t, p, plate) != nil {
		t.Error("Expected network unconstrained after unpin")
	}
}

func TestSetTarget_Rejections(t *testing.T) {
	p := newPlanner(t, Options{})
	_, _, gear := chain(t, p)
	solves := countSolves(p)

	if err := p.SetTarget(gear, rate(-1)); !errors.Is(err, model.ErrInvalidTarget) {
		t.Errorf("Expected ErrInvalidTarget, got %v", err)
	}
	if err := p.SetTarget(gear, rate(math.NaN())); !errors.Is(err, model.ErrInvalidTarget) {
		t.Errorf("Expected ErrInvalidTarget, got %v", err)
	}
	if err := p.SetTarget(999, rate(1)); !errors.Is(err, model.ErrNodeNotFound) {
		t.Errorf("Expected ErrNodeNotFound, got %v", err)
	}
	if n := solves.Load(); n != 0 {
		t.Errorf("Expected rejected edits not to solve, got %d solves", n)
	}
}

func TestAddNode_UnknownRecipe(t *testing.T) {
	p := newPlanner(t, Options{})
	solves := countSolves(p)

	if _, err := p.AddNode("unobtainium", model.Position{}); !errors.Is(err, ErrUnknownRecipe) {
		t.Errorf("Expected ErrUnknownRecipe, got %v", err)
	}
	if len(p.Snapshot().Nodes) != 0 || solves.Load() != 0 {
		t.Error("Expected plan unchanged and no solve")
	}
}

func TestAddEdge_RejectionsAreNoOps(t *testing.T) {
	p := newPlanner(t, Options{})
	_, plate, gear := chain(t, p)
	before := p.Snapshot()
	solves := countSolves(p)

	if _, err := p.AddEdge(plate, plate, "iron-plate", model.QualityNormal); !errors.Is(err, model.ErrSelfEdge) {
		t.Errorf("Expected ErrSelfEdge, got %v", err)
	}
	if _, err := p.AddEdge(plate, gear, "iron-plate", model.QualityNormal); !errors.Is(err, model.ErrDuplicateEdge) {
		t.Errorf("Expected ErrDuplicateEdge, got %v", err)
	}

	after := p.Snapshot()
	if len(after.Edges) != len(before.Edges) || after.NextEdgeID != before.NextEdgeID {
		t.Errorf("Expected edges unchanged, got %d (next %d)", len(after.Edges), after.NextEdgeID)
	}
	if solves.Load() != 0 {
		t.Errorf("Expected no solve, got %d", solves.Load())
	}

	// A different quality is a different edge
	if _, err := p.AddEdge(plate, gear, "iron-plate", model.QualityRare); err != nil {
		t.Errorf("Expected edge at another quality to be accepted, got %v", err)
	}
}

func TestRemoveNode_DropsEdgesAndPin(t *testing.T) {
	p := newPlanner(t, Options{})
	ore, plate, gear := chain(t, p)
	if err := p.SetTarget(gear, rate(60)); err != nil {
		t.Fatal(err)
	}

	if err := p.RemoveNode(gear); err != nil {
		t.Fatalf("RemoveNode() error = %v", err)
	}

	doc := p.Snapshot()
	if len(doc.Edges) != 1 || len(doc.Pins) != 0 {
		t.Errorf("Expected 1 edge and no pins, got %d edges, pins %v", len(doc.Edges), doc.Pins)
	}
	// The remaining network is balanced from its stored values
	expectTarget(t, p, plate, 120)
	expectTarget(t, p, ore, 120)

	if err := p.RemoveNode(gear); !errors.Is(err, model.ErrNodeNotFound) {
		t.Errorf("Expected ErrNodeNotFound, got %v", err)
	}
}

func TestSetAggregation(t *testing.T) {
	p := newPlanner(t, Options{})
	plate := addNode(t, p, "iron-plate")
	gear := addNode(t, p, "iron-gear")
	pipe := addNode(t, p, "pipe")
	pump := addNode(t, p, "pump")
	addEdge(t, p, plate, gear, "iron-plate")
	addEdge(t, p, plate, pipe, "iron-plate")
	addEdge(t, p, gear, pump, "iron-gear")
	addEdge(t, p, pipe, pump, "pipe")
	if err := p.SetTarget(pump, rate(10)); err != nil {
		t.Fatal(err)
	}
	expectTarget(t, p, plate, 20)

	if err := p.SetAggregation(model.AggregateSum); err != nil {
		t.Fatalf("SetAggregation() error = %v", err)
	}
	expectTarget(t, p, plate, 30)
	if p.Snapshot().Aggregation != model.AggregateSum {
		t.Error("Expected sum stored in the document")
	}

	if err := p.SetAggregation("avg"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Expected ErrInvalidValue, got %v", err)
	}
}

func TestSetAggregation_NormalizesName(t *testing.T) {
	p := newPlanner(t, Options{})
	plate := addNode(t, p, "iron-plate")
	gear := addNode(t, p, "iron-gear")
	pipe := addNode(t, p, "pipe")
	pump := addNode(t, p, "pump")
	addEdge(t, p, plate, gear, "iron-plate")
	addEdge(t, p, plate, pipe, "iron-plate")
	addEdge(t, p, gear, pump, "iron-gear")
	addEdge(t, p, pipe, pump, "pipe")
	if err := p.SetTarget(pump, rate(10)); err != nil {
		t.Fatal(err)
	}

	if err := p.SetAggregation("SUM"); err != nil {
		t.Fatalf("SetAggregation(SUM) error = %v", err)
	}
	if got := p.Aggregation(); got != model.AggregateSum {
		t.Errorf("Expected stored aggregation %q, got %q", model.AggregateSum, got)
	}
	if got := p.Snapshot().Aggregation; got != model.AggregateSum {
		t.Errorf("Expected document aggregation %q, got %q", model.AggregateSum, got)
	}
	expectTarget(t, p, plate, 30)

	if err := p.SetAggregation("Max"); err != nil {
		t.Fatalf("SetAggregation(Max) error = %v", err)
	}
	expectTarget(t, p, plate, 20)
}

func TestSetModulesAndTier(t *testing.T) {
	p := newPlanner(t, Options{})
	ore, plate, gear := chain(t, p)
	if err := p.SetTarget(gear, rate(60)); err != nil {
		t.Fatal(err)
	}

	if err := p.SetTier(plate, "electric-furnace"); err != nil {
		t.Fatalf("SetTier() error = %v", err)
	}
	if err := p.SetModules(plate, []string{"productivity-1"}); err != nil {
		t.Fatalf("SetModules() error = %v", err)
	}
	expectTarget(t, p, ore, 96)

	stats, err := p.Stats(plate)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if math.Abs(stats.EffectiveSpeed-1.9) > 1e-9 {
		t.Errorf("Expected speed 1.9, got %v", stats.EffectiveSpeed)
	}

	if err := p.SetModules(plate, []string{"turbo-9"}); !errors.Is(err, ErrUnknownModule) {
		t.Errorf("Expected ErrUnknownModule, got %v", err)
	}
	if err := p.SetTier(plate, "assembler-3"); !errors.Is(err, ErrUnknownTier) {
		t.Errorf("Expected ErrUnknownTier for a crafting tier on smelting, got %v", err)
	}
	if err := p.SetSpeedMultiplier(plate, -2); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Expected ErrInvalidValue, got %v", err)
	}
}

func TestUnit_PerSecond(t *testing.T) {
	p := newPlanner(t, Options{Unit: PerSecond})
	_, plate, gear := chain(t, p)

	if err := p.SetTarget(gear, rate(1)); err != nil {
		t.Fatal(err)
	}

	// Stored per minute
	expectTarget(t, p, gear, 60)
	expectTarget(t, p, plate, 120)

	got, err := p.FlowRate(plate, "iron-plate", model.SideOutput, model.QualityNormal)
	if err != nil || math.Abs(got-2) > 1e-9 {
		t.Errorf("Expected 2 plates/s, got %v (%v)", got, err)
	}
	stats, err := p.Stats(gear)
	if err != nil || math.Abs(stats.Target-1) > 1e-9 || math.Abs(stats.CraftsPerMinute-60) > 1e-9 {
		t.Errorf("Unexpected stats %+v (%v)", stats, err)
	}
}

func TestComputeFlows_Idempotent(t *testing.T) {
	p := newPlanner(t, Options{})
	_, _, gear := chain(t, p)
	if err := p.SetTarget(gear, rate(45)); err != nil {
		t.Fatal(err)
	}

	if report := p.ComputeFlows(); report.Updated != 0 {
		t.Errorf("Expected no updates on an unchanged plan, got %d", report.Updated)
	}
}

func TestSolve_CoalescesRequests(t *testing.T) {
	p := newPlanner(t, Options{})
	chain(t, p)

	var solves atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	p.OnSolved(func(solver.Report) {
		if solves.Add(1) == 1 {
			close(started)
			<-release
		}
	})

	done := make(chan struct{})
	go func() {
		p.ComputeFlows()
		close(done)
	}()

	<-started
	for i := 0; i < 5; i++ {
		p.ComputeFlows()
	}
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for solves to finish")
	}

	if n := solves.Load(); n != 2 {
		t.Errorf("Expected 1 solve plus 1 follow-up, got %d", n)
	}
}

func TestSnapshotReplace(t *testing.T) {
	p := newPlanner(t, Options{})
	_, plate, gear := chain(t, p)
	if err := p.SetTarget(gear, rate(60)); err != nil {
		t.Fatal(err)
	}
	doc := p.Snapshot()

	q := newPlanner(t, Options{})
	if err := q.Replace(doc); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	expectTarget(t, q, plate, 120)
	if q.Snapshot().ID != doc.ID {
		t.Error("Expected document id to carry over")
	}

	// New nodes continue the restored id sequence
	n, err := q.AddNode("pipe", model.Position{})
	if err != nil || n.ID != doc.NextNodeID {
		t.Errorf("Expected node id %d, got %d (%v)", doc.NextNodeID, n.ID, err)
	}

	broken := &store.Document{Version: 1, Nodes: []model.Node{{ID: 1}, {ID: 1}}}
	if err := q.Replace(broken); !errors.Is(err, store.ErrDocument) {
		t.Errorf("Expected ErrDocument, got %v", err)
	}
	if len(q.Snapshot().Nodes) != 4 {
		t.Error("Expected failed replace to keep the plan")
	}
}

func TestPublishesSolves(t *testing.T) {
	pub := pubsub.NewSSEPublisher()
	defer pub.Close()
	p := newPlanner(t, Options{Publisher: pub})

	sub, err := pub.Subscribe(context.Background(), pubsub.TopicPlan)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	addNode(t, p, "iron-gear")

	select {
	case event := <-sub.Events():
		if event.Type != pubsub.EventSolved {
			t.Errorf("Expected solved event, got %s", event.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for solve event")
	}

	if err := p.Replace(p.Snapshot()); err != nil {
		t.Fatal(err)
	}
	select {
	case event := <-sub.Events():
		if event.Type != pubsub.EventReloaded {
			t.Errorf("Expected reloaded event, got %s", event.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for reload event")
	}
}
