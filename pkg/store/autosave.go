package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Invalid27/Factorio-Planner-sub000/pkg/logging"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/pubsub"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/watcher"
)

// Snapshotter produces the document to save.
type Snapshotter interface {
	Snapshot() *Document
}

// Autosaver saves the plan after solves settle down. It only observes
// published solve results, so a slow disk never delays a solve.
type Autosaver struct {
	file        *File
	source      Snapshotter
	pub         pubsub.Publisher
	quietPeriod time.Duration
	maxWait     time.Duration
	saved       func(error)
}

// NewAutosaver creates an autosaver. Run starts it.
func NewAutosaver(file *File, source Snapshotter, pub pubsub.Publisher, quietPeriod, maxWait time.Duration) *Autosaver {
	return &Autosaver{
		file:        file,
		source:      source,
		pub:         pub,
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// OnSaved registers a callback invoked after every save attempt, for tests.
func (a *Autosaver) OnSaved(fn func(error)) {
	a.saved = fn
}

// Run saves after each debounced batch of solves until ctx ends. Save
// failures are logged and retried on the next batch.
func (a *Autosaver) Run(ctx context.Context) error {
	sub, err := a.pub.Subscribe(ctx, pubsub.TopicPlan)
	if err != nil {
		return fmt.Errorf("autosave: %w", err)
	}
	defer sub.Close()

	debouncer := watcher.NewDebouncer(sub.Events(), a.quietPeriod, a.maxWait)
	debouncer.Start(ctx)

	logging.Info("autosave enabled", "path", a.file.Path(), "quiet", a.quietPeriod.String())

	for batch := range debouncer.Output() {
		if !needsSave(batch) {
			continue
		}
		err := a.file.Save(a.source.Snapshot())
		if err != nil {
			logging.Warn("autosave failed", "path", a.file.Path(), "error", err)
		}
		if a.saved != nil {
			a.saved(err)
		}
	}
	return nil
}

// needsSave skips batches made only of reloads: the file already holds them.
func needsSave(batch []pubsub.Event) bool {
	for _, e := range batch {
		if e.Type != pubsub.EventReloaded {
			return true
		}
	}
	return false
}
