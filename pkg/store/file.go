package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Invalid27/Factorio-Planner-sub000/pkg/logging"
)

// File is a plan document on disk. It remembers the bytes it last wrote or
// read so that file events caused by its own saves can be told apart from
// external edits.
type File struct {
	path string

	mu   sync.Mutex
	last []byte
}

// NewFile binds a document path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the bound path.
func (f *File) Path() string {
	return f.path
}

// Save writes the document atomically: a temp file in the same directory is
// synced and then renamed over the target.
func (f *File) Save(d *Document) error {
	data, err := Encode(d)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if bytes.Equal(data, f.last) {
		logging.Trace("plan unchanged, skipping save", "path", f.path)
		return nil
	}
	if err := writeAtomic(f.path, data); err != nil {
		return err
	}
	f.last = data

	logging.Debug("plan saved", "path", f.path, "nodes", len(d.Nodes), "edges", len(d.Edges))
	return nil
}

// Load reads and decodes the document. changed is false when the file holds
// exactly what this File last wrote or read.
func (f *File) Load() (doc *Document, changed bool, err error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, false, fmt.Errorf("read plan: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.last != nil && bytes.Equal(data, f.last) {
		return nil, false, nil
	}

	doc, err = Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", f.path, err)
	}
	f.last = data
	return doc, true, nil
}

// Exists reports whether the document file is present.
func (f *File) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("save plan: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("save plan: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save plan: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save plan: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save plan: %w", err)
	}
	return nil
}
