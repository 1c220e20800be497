// Package catalogtest provides a small fixed catalog for tests.
package catalogtest

import "github.com/Invalid27/Factorio-Planner-sub000/pkg/catalog"

func in(item string, amount float64) catalog.Ingredient {
	return catalog.Ingredient{Item: item, Amount: amount}
}

// Recipes used across package tests.
var Recipes = []catalog.Recipe{
	{ID: "iron-ore", Category: "mining", Time: 1, Outputs: []catalog.Ingredient{in("iron-ore", 1)}},
	{ID: "iron-plate", Category: "smelting", Time: 3.2, Inputs: []catalog.Ingredient{in("iron-ore", 1)}, Outputs: []catalog.Ingredient{in("iron-plate", 1)}},
	{ID: "iron-gear", Category: "crafting", Time: 0.5, Inputs: []catalog.Ingredient{in("iron-plate", 2)}, Outputs: []catalog.Ingredient{in("iron-gear", 1)}},
	{ID: "pipe", Category: "crafting", Time: 0.5, Inputs: []catalog.Ingredient{in("iron-plate", 1)}, Outputs: []catalog.Ingredient{in("pipe", 1)}},
	{ID: "iron-stick", Category: "crafting", Time: 0.5, Inputs: []catalog.Ingredient{in("iron-plate", 1)}, Outputs: []catalog.Ingredient{in("iron-stick", 2)}},
	{ID: "casting-iron", Category: "casting", Time: 3.2, Inputs: []catalog.Ingredient{in("molten-iron", 10)}, Outputs: []catalog.Ingredient{in("iron-plate", 2)}},
	{ID: "oil-processing", Category: "refining", Time: 5, Inputs: []catalog.Ingredient{in("crude-oil", 100)},
		Outputs: []catalog.Ingredient{in("heavy-oil", 25), in("light-oil", 45), in("petroleum-gas", 55)}},
	{ID: "pump", Category: "crafting", Time: 2, Inputs: []catalog.Ingredient{in("iron-gear", 1), in("pipe", 1)}, Outputs: []catalog.Ingredient{in("pump", 1)}},
	{ID: "solid-fuel", Category: "chemistry", Time: 1, Inputs: []catalog.Ingredient{in("light-oil", 10)}, Outputs: []catalog.Ingredient{in("solid-fuel", 1)}},
	{ID: "alpha", Category: "crafting", Time: 1, Inputs: []catalog.Ingredient{in("beta", 1)}, Outputs: []catalog.Ingredient{in("alpha", 1)}},
	{ID: "beta", Category: "crafting", Time: 1, Inputs: []catalog.Ingredient{in("alpha", 1)}, Outputs: []catalog.Ingredient{in("beta", 1)}},
	{ID: "alpha-burner", Category: "crafting", Time: 1, Inputs: []catalog.Ingredient{in("alpha", 1)}, Outputs: []catalog.Ingredient{in("ash", 1)}},
}

// Modules used across package tests.
var Modules = []catalog.Module{
	{ID: "speed-1", Speed: 0.2, Efficiency: -0.5},
	{ID: "productivity-1", Speed: -0.05, Productivity: 0.25, Efficiency: -0.4},
	{ID: "efficiency-1", Efficiency: 0.3},
	{ID: "quality-1", Speed: -0.05, Quality: 0.1},
	{ID: "quality-5", Quality: 0.5},
}

// Tiers used across package tests.
var Tiers = []catalog.Tier{
	{ID: "assembler-1", Category: "crafting", Speed: 0.5, ModuleSlots: 0},
	{ID: "assembler-2", Category: "crafting", Speed: 0.75, ModuleSlots: 2},
	{ID: "assembler-3", Category: "crafting", Speed: 1.25, ModuleSlots: 4},
	{ID: "stone-furnace", Category: "smelting", Speed: 1, ModuleSlots: 0},
	{ID: "electric-furnace", Category: "smelting", Speed: 2, ModuleSlots: 2},
	{ID: "drill", Category: "mining", Speed: 0.5, ModuleSlots: 3},
	{ID: "foundry", Category: "casting", Speed: 4, ModuleSlots: 4},
	{ID: "refinery", Category: "refining", Speed: 1, ModuleSlots: 3},
}

// Categories used across package tests. Casting carries a built-in bonus.
var Categories = []catalog.Category{
	{ID: "casting", Productivity: 0.5},
	{ID: "crafting"},
}

// New returns the fixture catalog.
func New() *catalog.Static {
	return catalog.NewStatic(Recipes, Modules, Tiers, Categories)
}

// Preferences returns the fixture tier preferences.
func Preferences() catalog.Defaults {
	return catalog.Defaults{"crafting": "assembler-2"}
}
