package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/Invalid27/Factorio-Planner-sub000/pkg/catalog"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/config"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/logging"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/output"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/planner"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/pubsub"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/solver"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/store"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/watcher"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/web"
)

// Editors often write a file several times per save.
const (
	watchQuiet   = 300 * time.Millisecond
	watchMaxWait = 2 * time.Second
)

func main() {
	// Parse command-line flags
	flags := pflag.NewFlagSet("flowplan", pflag.ExitOnError)
	config.RegisterFlags(flags)
	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	level, _ := cfg.LogLevel()
	logging.Configure(logging.Options{Level: level, JSON: cfg.JSONLogs})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Error("flowplan failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	cat, prefs, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return err
	}

	pub := pubsub.NewSSEPublisher()
	defer pub.Close()

	unit := planner.PerMinute
	if cfg.Unit == config.UnitSecond {
		unit = planner.PerSecond
	}
	p := planner.New(cat, prefs, planner.Options{
		Solver: solver.Options{
			Aggregation:         cfg.AggregationPolicy(),
			Tolerance:           cfg.Solver.Tolerance,
			MaxIterations:       cfg.Solver.Iterations,
			MaxPropagationSteps: cfg.Solver.Steps,
			MaxNodeRevisions:    cfg.Solver.Revisions,
		},
		Unit:      unit,
		Publisher: pub,
	})

	planFile := store.NewFile(cfg.Plan)
	if planFile.Exists() {
		doc, _, err := planFile.Load()
		if err != nil {
			return err
		}
		if err := p.Replace(doc); err != nil {
			return err
		}
	} else {
		logging.Info("no plan on disk, starting empty", "path", cfg.Plan)
	}

	if !cfg.WebMode && !cfg.Watch {
		p.ComputeFlows()
		output.PrintPlan(os.Stdout, p)
		return planFile.Save(p.Snapshot())
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 3)
	running := 0

	if cfg.Autosave.Enabled {
		saver := store.NewAutosaver(planFile, p, pub, cfg.Autosave.Quiet, cfg.Autosave.MaxWait)
		running++
		go func() { errc <- saver.Run(ctx) }()
	}

	if cfg.Watch {
		r := &reloader{
			planner:     p,
			plan:        planFile,
			catalogPath: cfg.Catalog,
		}
		if !cfg.WebMode {
			r.report = func() { output.PrintPlan(os.Stdout, p) }
			r.report()
		}
		running++
		go func() { errc <- watch(ctx, r, cfg) }()
	}

	if cfg.WebMode {
		server := web.NewServer(p, pub)
		running++
		go func() {
			err := server.Start(ctx, cfg.Port)
			// Ends open subscription streams so the other loops can drain
			pub.Close()
			errc <- err
		}()
	}

	var errs []error
	for i := 0; i < running; i++ {
		if err := <-errc; err != nil {
			errs = append(errs, err)
		}
		// One loop ending stops the rest
		cancel()
	}
	if len(errs) == 0 && !cfg.Autosave.Enabled {
		// Persist once on the way out
		if err := planFile.Save(p.Snapshot()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// watch reloads the catalog or plan when either changes on disk.
func watch(ctx context.Context, r *reloader, cfg *config.Config) error {
	fw, err := watcher.NewFileWatcher(map[string]watcher.ChangeType{
		cfg.Plan:    watcher.ChangeTypePlan,
		cfg.Catalog: watcher.ChangeTypeCatalog,
	})
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fw.Stop()
	fw.Start(ctx)

	debouncer := watcher.NewDebouncer(fw.Events(), watchQuiet, watchMaxWait)
	debouncer.Start(ctx)

	for batch := range debouncer.Output() {
		r.apply(watcher.AnalyzeChanges(batch))
	}
	return nil
}
