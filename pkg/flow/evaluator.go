// Package flow computes the item rates a solved node moves through its ports.
// It only reads stored targets and never changes the plan.
package flow

import (
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/catalog"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/model"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/modifiers"
)

// upgradeRatios is the share of the quality chance each tier above normal
// receives, lowest first.
var upgradeRatios = []float64{0.9, 0.09, 0.009, 0.001}

// Evaluator answers flow queries against a catalog.
type Evaluator struct {
	catalog  catalog.Catalog
	resolver *modifiers.Resolver
}

// NewEvaluator creates an evaluator. prefs may be nil.
func NewEvaluator(cat catalog.Catalog, prefs catalog.Preferences) *Evaluator {
	return &Evaluator{
		catalog:  cat,
		resolver: modifiers.NewResolver(cat, prefs),
	}
}

// Split distributes base across quality tiers for a combined quality chance q.
// Normal keeps 1-q; the remaining chance decays across the upgrade tiers.
func Split(base, q float64) map[model.Quality]float64 {
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}

	out := make(map[model.Quality]float64, len(model.Qualities))
	out[model.QualityNormal] = base * (1 - q)
	for i, quality := range model.Qualities[1:] {
		out[quality] = base * q * upgradeRatios[i]
	}
	return out
}

// crafts returns the node's crafts per minute, or false when the node has no
// target or its recipe cannot be resolved.
func (e *Evaluator) crafts(n *model.Node) (*catalog.Recipe, modifiers.Bonuses, float64, bool) {
	if n == nil || n.Target == nil {
		return nil, modifiers.Bonuses{}, 0, false
	}
	recipe, ok := e.catalog.Recipe(n.RecipeID)
	if !ok {
		return nil, modifiers.Bonuses{}, 0, false
	}
	primary, ok := recipe.Primary()
	if !ok || primary.Amount <= 0 {
		return nil, modifiers.Bonuses{}, 0, false
	}

	bonuses := e.resolver.Resolve(n)
	return recipe, bonuses, *n.Target / (primary.Amount * (1 + bonuses.Productivity)), true
}

// Rate returns the per-minute flow of item through one side of n at quality.
// Outputs are split by the node's quality chance; inputs are not, since they
// are consumed at whatever quality is wired in. Unknown recipes, unconstrained
// nodes and items the recipe does not use all yield 0.
func (e *Evaluator) Rate(n *model.Node, item string, side model.Side, quality model.Quality) float64 {
	recipe, bonuses, crafts, ok := e.crafts(n)
	if !ok {
		return 0
	}

	if side == model.SideInput {
		return crafts * recipe.InputAmount(item)
	}

	amount := recipe.OutputAmount(item)
	if amount <= 0 {
		return 0
	}
	base := crafts * amount * (1 + bonuses.Productivity)
	if quality == "" {
		quality = model.QualityNormal
	}
	return Split(base, bonuses.Quality)[quality]
}

// Stats summarizes how hard a node is working.
type Stats struct {
	Target          float64 `json:"target"`
	CraftsPerMinute float64 `json:"craftsPerMinute"`
	Machines        float64 `json:"machines"`
	EffectiveSpeed  float64 `json:"effectiveSpeed"`
	Productivity    float64 `json:"productivity"`
	Quality         float64 `json:"quality"`
}

// Stats returns the node's craft rate and the number of machines needed to
// sustain it. An unconstrained node reports zero rates but still carries its
// resolved bonuses.
func (e *Evaluator) Stats(n *model.Node) Stats {
	if n == nil {
		return Stats{}
	}

	recipe, bonuses, crafts, ok := e.crafts(n)
	if !ok {
		b := e.resolver.Resolve(n)
		return Stats{EffectiveSpeed: b.EffectiveSpeed, Productivity: b.Productivity, Quality: b.Quality}
	}

	return Stats{
		Target:          *n.Target,
		CraftsPerMinute: crafts,
		Machines:        crafts / 60 * recipe.Time / bonuses.EffectiveSpeed,
		EffectiveSpeed:  bonuses.EffectiveSpeed,
		Productivity:    bonuses.Productivity,
		Quality:         bonuses.Quality,
	}
}
