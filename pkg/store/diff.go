package store

import (
	"slices"
	"sort"

	"github.com/Invalid27/Factorio-Planner-sub000/pkg/model"
)

// PlanDiff represents the difference between two plan documents
type PlanDiff struct {
	AddedNodes    []int64 `json:"addedNodes"`
	RemovedNodes  []int64 `json:"removedNodes"`
	ModifiedNodes []int64 `json:"modifiedNodes"` // Configuration or target changed
	AddedEdges    []int64 `json:"addedEdges"`
	RemovedEdges  []int64 `json:"removedEdges"`
	Aggregation   bool    `json:"aggregation"` // Policy changed
}

// Empty reports whether the documents describe the same plan.
func (d *PlanDiff) Empty() bool {
	return len(d.AddedNodes) == 0 && len(d.RemovedNodes) == 0 && len(d.ModifiedNodes) == 0 &&
		len(d.AddedEdges) == 0 && len(d.RemovedEdges) == 0 && !d.Aggregation
}

// Diff computes what changed from old to next. Edges are matched by
// endpoints, item and quality, so a re-created edge with a new id is not a
// change.
func Diff(old, next *Document) *PlanDiff {
	diff := &PlanDiff{Aggregation: old.Aggregation != next.Aggregation}

	oldNodes := make(map[int64]model.Node, len(old.Nodes))
	for _, n := range old.Nodes {
		oldNodes[n.ID] = n
	}
	newNodes := make(map[int64]bool, len(next.Nodes))
	for _, n := range next.Nodes {
		newNodes[n.ID] = true
		prev, exists := oldNodes[n.ID]
		switch {
		case !exists:
			diff.AddedNodes = append(diff.AddedNodes, n.ID)
		case !nodesEqual(prev, n) || old.Pins[n.ID] != next.Pins[n.ID]:
			diff.ModifiedNodes = append(diff.ModifiedNodes, n.ID)
		}
	}
	for id := range oldNodes {
		if !newNodes[id] {
			diff.RemovedNodes = append(diff.RemovedNodes, id)
		}
	}

	oldEdges := make(map[edgeKey]int64, len(old.Edges))
	for _, e := range old.Edges {
		oldEdges[keyOf(e)] = e.ID
	}
	newEdges := make(map[edgeKey]bool, len(next.Edges))
	for _, e := range next.Edges {
		key := keyOf(e)
		newEdges[key] = true
		if _, exists := oldEdges[key]; !exists {
			diff.AddedEdges = append(diff.AddedEdges, e.ID)
		}
	}
	for key, id := range oldEdges {
		if !newEdges[key] {
			diff.RemovedEdges = append(diff.RemovedEdges, id)
		}
	}

	for _, ids := range [][]int64{diff.AddedNodes, diff.RemovedNodes, diff.ModifiedNodes, diff.AddedEdges, diff.RemovedEdges} {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return diff
}

type edgeKey struct {
	from, to int64
	item     string
	quality  model.Quality
}

func keyOf(e model.Edge) edgeKey {
	return edgeKey{from: e.From, to: e.To, item: e.Item, quality: e.Quality}
}

// nodesEqual compares everything except position, which changes on every drag.
func nodesEqual(a, b model.Node) bool {
	return a.RecipeID == b.RecipeID &&
		a.TierID == b.TierID &&
		a.SpeedMultiplier == b.SpeedMultiplier &&
		slices.Equal(a.Modules, b.Modules) &&
		a.TargetValue() == b.TargetValue() &&
		(a.Target == nil) == (b.Target == nil)
}
