package main

import (
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/catalog"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/logging"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/planner"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/store"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/watcher"
)

// reloader applies on-disk changes to a running planner. A file that fails
// to load leaves the planner as it was.
type reloader struct {
	planner     *planner.Planner
	plan        *store.File
	catalogPath string
	report      func() // Optional; runs after each applied change
}

func (r *reloader) apply(change *watcher.ChangeAnalysis) {
	applied := false

	if change.ReloadCatalog {
		cat, prefs, err := catalog.Load(r.catalogPath)
		if err != nil {
			logging.Warn("catalog reload failed, keeping the current one", "path", r.catalogPath, "error", err)
		} else {
			r.planner.SetCatalog(cat, prefs)
			logging.Info("catalog reloaded", "path", r.catalogPath)
			applied = true
		}
	}

	if change.ReloadPlan {
		doc, changed, err := r.plan.Load()
		switch {
		case err != nil:
			logging.Warn("plan reload failed, keeping the current one", "path", r.plan.Path(), "error", err)
		case !changed:
			logging.Debug("plan file matches the last save", "path", r.plan.Path())
		default:
			before := r.planner.Snapshot()
			if err := r.planner.Replace(doc); err != nil {
				logging.Warn("plan reload failed, keeping the current one", "path", r.plan.Path(), "error", err)
				break
			}
			diff := store.Diff(before, doc)
			logging.Info("plan reloaded from disk",
				"path", r.plan.Path(),
				"added", len(diff.AddedNodes),
				"removed", len(diff.RemovedNodes),
				"modified", len(diff.ModifiedNodes),
				"edgesAdded", len(diff.AddedEdges),
				"edgesRemoved", len(diff.RemovedEdges),
			)
			applied = true
		}
	}

	if applied && r.report != nil {
		r.report()
	}
}
