package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/Invalid27/Factorio-Planner-sub000/pkg/logging"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/model"
)

// DefaultFile is read from the working directory when --config is not given.
const DefaultFile = "flowplan.toml"

// EnvPrefix marks environment overrides, e.g. FLOWPLAN_SOLVER_TOLERANCE.
const EnvPrefix = "FLOWPLAN_"

// Rate display units.
const (
	UnitMinute = "minute"
	UnitSecond = "second"
)

// Config holds all configuration for the application
type Config struct {
	Catalog     string   `koanf:"catalog"`
	Plan        string   `koanf:"plan"`
	WebMode     bool     `koanf:"web"`
	Port        int      `koanf:"port"`
	Watch       bool     `koanf:"watch"`
	Verbosity   string   `koanf:"verbosity"`
	VerboseCnt  int      `koanf:"verbose"`
	JSONLogs    bool     `koanf:"json"`
	Aggregation string   `koanf:"aggregation"`
	Unit        string   `koanf:"unit"`
	Solver      Solver   `koanf:"solver"`
	Autosave    Autosave `koanf:"autosave"`
}

// Solver holds the solver bounds.
type Solver struct {
	Tolerance  float64 `koanf:"tolerance"`
	Iterations int     `koanf:"iterations"`
	Steps      int     `koanf:"steps"`
	Revisions  int     `koanf:"revisions"`
}

// Autosave controls debounced plan saving.
type Autosave struct {
	Enabled bool          `koanf:"enabled"`
	Quiet   time.Duration `koanf:"quiet"`
	MaxWait time.Duration `koanf:"maxwait"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"catalog":     "catalog.toml",
		"plan":        "plan.json",
		"web":         false,
		"port":        8080,
		"watch":       false,
		"verbosity":   "",
		"verbose":     0,
		"json":        false,
		"aggregation": string(model.AggregateMax),
		"unit":        UnitMinute,
		"solver": map[string]interface{}{
			"tolerance":  1e-6,
			"iterations": 10,
			"steps":      10000,
			"revisions":  50,
		},
		"autosave": map[string]interface{}{
			"enabled": true,
			"quiet":   500 * time.Millisecond,
			"maxwait": 5 * time.Second,
		},
	}
}

// RegisterFlags defines the command-line flags Load understands.
func RegisterFlags(f *pflag.FlagSet) {
	f.String("config", "", "Path to a TOML config file (default "+DefaultFile+" if present)")
	f.String("catalog", "catalog.toml", "Path to the recipe catalog")
	f.String("plan", "plan.json", "Path to the plan document")
	f.Bool("web", false, "Serve the HTTP API instead of printing a report")
	f.Int("port", 8080, "Port for the HTTP API (only used with --web)")
	f.Bool("watch", false, "Reload the plan and catalog when they change on disk")
	f.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	f.CountP("verbose", "v", "Increase log verbosity (-v debug, -vv trace)")
	f.Bool("json", false, "Log as JSON")
	f.String("aggregation", string(model.AggregateMax), "How suppliers combine consumer demand: max or sum")
	f.String("unit", UnitMinute, "Rate display unit: minute or second")
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(makeMapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file. The default file is optional; an explicit one is not.
	path, explicit := DefaultFile, false
	if f != nil {
		if p, err := f.GetString("config"); err == nil && p != "" {
			path, explicit = p, true
		}
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file: %w", err)
	}

	// 3. Environment variables, FLOWPLAN_AUTOSAVE_MAXWAIT -> autosave.maxwait
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, EnvPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the application cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if _, err := model.ParseAggregation(c.Aggregation); err != nil {
		errs = append(errs, err)
	}
	if c.Unit != UnitMinute && c.Unit != UnitSecond {
		errs = append(errs, fmt.Errorf("unit must be %q or %q, got %q", UnitMinute, UnitSecond, c.Unit))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Solver.Tolerance < 0 || c.Solver.Iterations < 0 || c.Solver.Steps < 0 || c.Solver.Revisions < 0 {
		errs = append(errs, errors.New("solver bounds must not be negative"))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LogLevel resolves Verbosity and VerboseCnt into a level.
func (c *Config) LogLevel() (slog.Level, error) {
	return logging.ParseLevel(c.Verbosity, c.VerboseCnt)
}

// AggregationPolicy returns the parsed aggregation; Validate has checked it.
func (c *Config) AggregationPolicy() model.Aggregation {
	a, _ := model.ParseAggregation(c.Aggregation)
	return a
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
