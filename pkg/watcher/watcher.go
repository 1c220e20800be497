// Package watcher notices edits to the plan and catalog files made outside the
// running process and batches them into reload decisions.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Invalid27/Factorio-Planner-sub000/pkg/logging"
)

// ChangeType represents which watched file changed
type ChangeType int

const (
	ChangeTypePlan ChangeType = iota
	ChangeTypeCatalog
)

func (t ChangeType) String() string {
	switch t {
	case ChangeTypePlan:
		return "plan"
	case ChangeTypeCatalog:
		return "catalog"
	}
	return fmt.Sprintf("ChangeType(%d)", int(t))
}

// ChangeEvent is one relevant file system event
type ChangeEvent struct {
	Type      ChangeType
	Path      string
	Timestamp time.Time
}

// FileWatcher watches individual files. It watches their directories, because
// editors and atomic savers replace files by renaming over them.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	targets map[string]ChangeType // absolute path -> type
	events  chan ChangeEvent
	stop    sync.Once
}

// NewFileWatcher creates a watcher for the given files
func NewFileWatcher(targets map[string]ChangeType) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher: w,
		targets: make(map[string]ChangeType, len(targets)),
		events:  make(chan ChangeEvent, 100),
	}

	dirs := make(map[string]bool)
	for path, kind := range targets {
		abs, err := filepath.Abs(path)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("resolve %s: %w", path, err)
		}
		fw.targets[abs] = kind
		dirs[filepath.Dir(abs)] = true
	}

	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	return fw, nil
}

// Start begins watching. Events() is closed once ctx ends.
func (fw *FileWatcher) Start(ctx context.Context) {
	for path, kind := range fw.targets {
		logging.Info("watching file", "path", path, "type", kind.String())
	}
	go fw.processEvents(ctx)
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)
	defer fw.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			kind, watched := fw.targets[filepath.Clean(event.Name)]
			if !watched {
				continue
			}

			logging.Trace("file event", "path", event.Name, "op", event.Op.String())
			select {
			case fw.events <- ChangeEvent{Type: kind, Path: event.Name, Timestamp: time.Now()}:
			case <-ctx.Done():
				return
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Stop stops the underlying watcher; Events() closes shortly after.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stop.Do(func() {
		err = fw.watcher.Close()
	})
	return err
}
