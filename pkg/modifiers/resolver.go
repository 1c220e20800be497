// Package modifiers turns a node's machine tier and installed modules into
// the speed, productivity, efficiency and quality bonuses the solver applies.
package modifiers

import (
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/catalog"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/logging"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/model"
)

// MinSpeed is the floor of the effective crafting speed.
const MinSpeed = 0.1

// Bonuses are the combined modifiers acting on one node.
type Bonuses struct {
	Speed          float64 `json:"speed"`
	Productivity   float64 `json:"productivity"`
	Efficiency     float64 `json:"efficiency"`
	Quality        float64 `json:"quality"` // Chance in [0, 1]
	TierSpeed      float64 `json:"tierSpeed"`
	EffectiveSpeed float64 `json:"effectiveSpeed"`
}

// Resolver computes Bonuses from catalog lookups. It has no state of its own.
type Resolver struct {
	catalog catalog.Catalog
	prefs   catalog.Preferences
}

// NewResolver creates a resolver. prefs may be nil.
func NewResolver(cat catalog.Catalog, prefs catalog.Preferences) *Resolver {
	return &Resolver{catalog: cat, prefs: prefs}
}

// Resolve computes the bonuses of n. A node whose recipe is missing from the
// catalog gets module bonuses only, on a speed-1 machine.
func (r *Resolver) Resolve(n *model.Node) Bonuses {
	var category string
	if recipe, ok := r.catalog.Recipe(n.RecipeID); ok {
		category = recipe.Category
	}

	tier := r.tier(n, category)

	var b Bonuses
	b.TierSpeed = 1
	slots := -1
	if tier != nil {
		b.TierSpeed = tier.Speed
		slots = tier.ModuleSlots
	}

	for i, id := range n.Modules {
		if slots >= 0 && i >= slots {
			logging.Debug("ignoring modules beyond tier slots", "node", n.ID, "slots", slots, "installed", len(n.Modules))
			break
		}
		m, ok := r.catalog.Module(id)
		if !ok {
			logging.Debug("unknown module", "node", n.ID, "module", id)
			continue
		}
		b.Speed += m.Speed
		b.Productivity += m.Productivity
		b.Efficiency += m.Efficiency
		b.Quality += m.Quality
	}

	if c, ok := r.catalog.Category(category); ok {
		b.Productivity += c.Productivity
	}

	if b.Quality > 1 {
		b.Quality = 1
	}
	if b.Quality < 0 {
		b.Quality = 0
	}

	multiplier := n.SpeedMultiplier
	if multiplier == 0 {
		multiplier = 1
	}
	b.EffectiveSpeed = max(MinSpeed, b.TierSpeed*(1+b.Speed)*multiplier)

	return b
}

// tier picks the node's explicit tier, then the preferred tier for the
// category, then the first tier of the category.
func (r *Resolver) tier(n *model.Node, category string) *catalog.Tier {
	tiers := r.catalog.Tiers(category)

	if t := findTier(tiers, n.TierID); t != nil {
		return t
	}
	if r.prefs != nil {
		if id, ok := r.prefs.DefaultTier(category); ok {
			if t := findTier(tiers, id); t != nil {
				return t
			}
		}
	}
	if len(tiers) > 0 {
		return tiers[0]
	}
	return nil
}

func findTier(tiers []*catalog.Tier, id string) *catalog.Tier {
	if id == "" {
		return nil
	}
	for _, t := range tiers {
		if t.ID == id {
			return t
		}
	}
	return nil
}
