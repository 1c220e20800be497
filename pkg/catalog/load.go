package catalog

import (
	"fmt"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// File is the on-disk layout of a catalog.
//
//	[[recipes]]
//	id = "iron-gear"
//	category = "crafting"
//	time = 0.5
//	inputs = [{ item = "iron-plate", amount = 2 }]
//	outputs = [{ item = "iron-gear", amount = 1 }]
type File struct {
	Recipes     []Recipe          `koanf:"recipes"`
	Modules     []Module          `koanf:"modules"`
	Tiers       []Tier            `koanf:"tiers"`
	Categories  []Category        `koanf:"categories"`
	Preferences map[string]string `koanf:"preferences"` // category -> default tier id
}

// Load reads a TOML catalog and returns it with its tier preferences.
func Load(path string) (*Static, Defaults, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return nil, nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return fromKoanf(k)
}

// Parse decodes a TOML catalog held in memory.
func Parse(data []byte) (*Static, Defaults, error) {
	k := koanf.New(".")
	if err := k.Load(rawBytes(data), toml.Parser()); err != nil {
		return nil, nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (*Static, Defaults, error) {
	var f File
	if err := k.Unmarshal("", &f); err != nil {
		return nil, nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	for i, r := range f.Recipes {
		if r.ID == "" {
			return nil, nil, fmt.Errorf("recipe #%d has no id", i)
		}
		if len(r.Outputs) == 0 {
			return nil, nil, fmt.Errorf("recipe %s has no outputs", r.ID)
		}
		if r.Time <= 0 {
			return nil, nil, fmt.Errorf("recipe %s has non-positive time %g", r.ID, r.Time)
		}
	}

	prefs := Defaults{}
	for category, tier := range f.Preferences {
		prefs[category] = tier
	}

	return NewStatic(f.Recipes, f.Modules, f.Tiers, f.Categories), prefs, nil
}

// rawBytes feeds an in-memory document through a koanf parser.
type rawBytes []byte

func (b rawBytes) ReadBytes() ([]byte, error) {
	return b, nil
}

func (b rawBytes) Read() (map[string]interface{}, error) {
	return nil, fmt.Errorf("not implemented")
}
