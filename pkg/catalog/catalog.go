package catalog

import "sort"

// Ingredient is an item quantity consumed or produced by one craft cycle.
type Ingredient struct {
	Item   string  `json:"item" koanf:"item"`
	Amount float64 `json:"amount" koanf:"amount"`
}

// Recipe is an immutable recipe definition. The first output is the primary output.
type Recipe struct {
	ID       string       `json:"id" koanf:"id"`
	Category string       `json:"category" koanf:"category"`
	Time     float64      `json:"time" koanf:"time"` // Seconds per craft cycle
	Inputs   []Ingredient `json:"inputs" koanf:"inputs"`
	Outputs  []Ingredient `json:"outputs" koanf:"outputs"`
}

// Primary returns the primary output of the recipe.
func (r *Recipe) Primary() (Ingredient, bool) {
	if len(r.Outputs) == 0 {
		return Ingredient{}, false
	}
	return r.Outputs[0], true
}

// InputAmount returns the per-craft amount of item consumed, or 0.
func (r *Recipe) InputAmount(item string) float64 {
	for _, in := range r.Inputs {
		if in.Item == item {
			return in.Amount
		}
	}
	return 0
}

// OutputAmount returns the per-craft amount of item produced, or 0.
func (r *Recipe) OutputAmount(item string) float64 {
	for _, out := range r.Outputs {
		if out.Item == item {
			return out.Amount
		}
	}
	return 0
}

// Module is an installable module and the bonuses it grants.
type Module struct {
	ID           string  `json:"id" koanf:"id"`
	Speed        float64 `json:"speed" koanf:"speed"`
	Productivity float64 `json:"productivity" koanf:"productivity"`
	Efficiency   float64 `json:"efficiency" koanf:"efficiency"`
	Quality      float64 `json:"quality" koanf:"quality"`
}

// Tier is a machine tier able to craft recipes of one category.
type Tier struct {
	ID          string  `json:"id" koanf:"id"`
	Category    string  `json:"category" koanf:"category"`
	Speed       float64 `json:"speed" koanf:"speed"`
	ModuleSlots int     `json:"moduleSlots" koanf:"slots"`
}

// Category carries properties shared by every recipe of a category.
type Category struct {
	ID           string  `json:"id" koanf:"id"`
	Productivity float64 `json:"productivity" koanf:"productivity"` // Built-in productivity bonus
}

// Catalog is the read-only reference data consumed by the solver.
type Catalog interface {
	Recipe(id string) (*Recipe, bool)
	RecipesProducing(item string) []*Recipe
	RecipesConsuming(item string) []*Recipe
	Module(id string) (*Module, bool)
	Tiers(category string) []*Tier
	Category(id string) (*Category, bool)
}

// Preferences are user defaults the solver reads but never writes.
type Preferences interface {
	DefaultTier(category string) (string, bool)
}

// Static is an immutable in-memory Catalog.
type Static struct {
	recipes    map[string]*Recipe
	modules    map[string]*Module
	tiers      map[string][]*Tier
	categories map[string]*Category
	producing  map[string][]*Recipe
	consuming  map[string][]*Recipe
}

// NewStatic indexes the given definitions. Later duplicates replace earlier ones.
func NewStatic(recipes []Recipe, modules []Module, tiers []Tier, categories []Category) *Static {
	s := &Static{
		recipes:    make(map[string]*Recipe),
		modules:    make(map[string]*Module),
		tiers:      make(map[string][]*Tier),
		categories: make(map[string]*Category),
		producing:  make(map[string][]*Recipe),
		consuming:  make(map[string][]*Recipe),
	}

	for i := range recipes {
		r := recipes[i]
		s.recipes[r.ID] = &r
	}
	for i := range modules {
		m := modules[i]
		s.modules[m.ID] = &m
	}
	for i := range tiers {
		t := tiers[i]
		s.tiers[t.Category] = append(s.tiers[t.Category], &t)
	}
	for i := range categories {
		c := categories[i]
		s.categories[c.ID] = &c
	}

	ids := make([]string, 0, len(s.recipes))
	for id := range s.recipes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		r := s.recipes[id]
		for _, out := range r.Outputs {
			s.producing[out.Item] = append(s.producing[out.Item], r)
		}
		for _, in := range r.Inputs {
			s.consuming[in.Item] = append(s.consuming[in.Item], r)
		}
	}

	return s
}

func (s *Static) Recipe(id string) (*Recipe, bool) {
	r, ok := s.recipes[id]
	return r, ok
}

// RecipesProducing returns recipes with item among their outputs, ordered by id.
func (s *Static) RecipesProducing(item string) []*Recipe {
	return s.producing[item]
}

// RecipesConsuming returns recipes with item among their inputs, ordered by id.
func (s *Static) RecipesConsuming(item string) []*Recipe {
	return s.consuming[item]
}

func (s *Static) Module(id string) (*Module, bool) {
	m, ok := s.modules[id]
	return m, ok
}

// Tiers returns the tiers of a category in declaration order.
func (s *Static) Tiers(category string) []*Tier {
	return s.tiers[category]
}

func (s *Static) Category(id string) (*Category, bool) {
	c, ok := s.categories[id]
	return c, ok
}

// Defaults is a map-backed Preferences.
type Defaults map[string]string

func (d Defaults) DefaultTier(category string) (string, bool) {
	id, ok := d[category]
	return id, ok && id != ""
}
