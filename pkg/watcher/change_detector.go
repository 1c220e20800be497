package watcher

import "sort"

// ChangeAnalysis describes which reloads a batch of changes requires
type ChangeAnalysis struct {
	ReloadCatalog bool
	ReloadPlan    bool
	ChangedFiles  []string
}

// AnalyzeChanges folds a debounced batch into one reload decision. A catalog
// change alone does not reload the plan; the current plan is re-solved
// against the new catalog instead.
func AnalyzeChanges(batch []ChangeEvent) *ChangeAnalysis {
	analysis := &ChangeAnalysis{}
	seen := make(map[string]bool)

	for _, event := range batch {
		switch event.Type {
		case ChangeTypeCatalog:
			analysis.ReloadCatalog = true
		case ChangeTypePlan:
			analysis.ReloadPlan = true
		}
		if !seen[event.Path] {
			seen[event.Path] = true
			analysis.ChangedFiles = append(analysis.ChangedFiles, event.Path)
		}
	}

	sort.Strings(analysis.ChangedFiles)
	return analysis
}
