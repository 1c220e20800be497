package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Invalid27/Factorio-Planner-sub000/pkg/catalog/catalogtest"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/model"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/planner"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/store"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/watcher"
)

const widgetCatalog = `
[[recipes]]
id = "widget"
category = "crafting"
time = 1
outputs = [{ item = "widget", amount = 1 }]
`

func newReloader(t *testing.T) (*reloader, *int) {
	t.Helper()
	dir := t.TempDir()
	reports := 0
	r := &reloader{
		planner:     planner.New(catalogtest.New(), catalogtest.Preferences(), planner.Options{}),
		plan:        store.NewFile(filepath.Join(dir, "plan.json")),
		catalogPath: filepath.Join(dir, "catalog.toml"),
		report:      func() { reports++ },
	}
	return r, &reports
}

func TestReloader_ExternalPlanEdit(t *testing.T) {
	r, reports := newReloader(t)

	// Another process writes a plan with one node
	other := planner.New(catalogtest.New(), catalogtest.Preferences(), planner.Options{})
	if _, err := other.AddNode("pipe", model.Position{}); err != nil {
		t.Fatal(err)
	}
	data, err := store.Encode(other.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(r.plan.Path(), data, 0o644); err != nil {
		t.Fatal(err)
	}

	r.apply(&watcher.ChangeAnalysis{ReloadPlan: true})

	if got := len(r.planner.Snapshot().Nodes); got != 1 {
		t.Errorf("Expected 1 node after reload, got %d", got)
	}
	if *reports != 1 {
		t.Errorf("Expected 1 report, got %d", *reports)
	}
}

func TestReloader_IgnoresOwnSave(t *testing.T) {
	r, reports := newReloader(t)
	if _, err := r.planner.AddNode("pipe", model.Position{}); err != nil {
		t.Fatal(err)
	}
	if err := r.plan.Save(r.planner.Snapshot()); err != nil {
		t.Fatal(err)
	}

	r.apply(&watcher.ChangeAnalysis{ReloadPlan: true})

	if *reports != 0 {
		t.Errorf("Expected own save to be ignored, got %d reports", *reports)
	}
}

func TestReloader_BrokenPlanKeepsCurrent(t *testing.T) {
	r, reports := newReloader(t)
	if _, err := r.planner.AddNode("pipe", model.Position{}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(r.plan.Path(), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	r.apply(&watcher.ChangeAnalysis{ReloadPlan: true})

	if got := len(r.planner.Snapshot().Nodes); got != 1 {
		t.Errorf("Expected current plan kept, got %d nodes", got)
	}
	if *reports != 0 {
		t.Errorf("Expected no report, got %d", *reports)
	}
}

func TestReloader_Catalog(t *testing.T) {
	r, reports := newReloader(t)
	if err := os.WriteFile(r.catalogPath, []byte(widgetCatalog), 0o644); err != nil {
		t.Fatal(err)
	}

	r.apply(&watcher.ChangeAnalysis{ReloadCatalog: true})

	if _, err := r.planner.AddNode("widget", model.Position{}); err != nil {
		t.Errorf("Expected widget recipe after catalog reload, got %v", err)
	}
	if *reports != 1 {
		t.Errorf("Expected 1 report, got %d", *reports)
	}
}

func TestReloader_BrokenCatalogKeepsCurrent(t *testing.T) {
	r, reports := newReloader(t)
	if err := os.WriteFile(r.catalogPath, []byte("[[recipes]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r.apply(&watcher.ChangeAnalysis{ReloadCatalog: true})

	if _, err := r.planner.AddNode("iron-gear", model.Position{}); err != nil {
		t.Errorf("Expected the fixture catalog to remain, got %v", err)
	}
	if *reports != 0 {
		t.Errorf("Expected no report, got %d", *reports)
	}
}
