// Package watcher re-indexes files as they change on disk. Events are
// debounced per path so editor save bursts trigger one re-index.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultDebounce = 500 * time.Millisecond

// Reindexer is the pipeline operation the watcher drives.
type Reindexer interface {
	IndexSingleFile(ctx context.Context, path string) (int, error)
}

// Watcher observes a workspace tree and re-indexes changed files.
type Watcher struct {
	root     string
	include  []string
	pipeline Reindexer
	debounce time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a watcher over the workspace root. Only files matching an
// include pattern are re-indexed.
func New(root string, include []string, pipeline Reindexer, logger zerolog.Logger) *Watcher {
	return &Watcher{
		root:     root,
		include:  include,
		pipeline: pipeline,
		debounce: defaultDebounce,
		log:      logger,
		pending:  make(map[string]*time.Timer),
	}
}

// Run watches until the context is canceled. Directories created while
// watching are added to the watch set.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}

	w.log.Info().Str("root", w.root).Msg("watching workspace")

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fw, event)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addTree(fw, event.Name)
			return
		}
	}

	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return
	}
	if !w.matches(event.Name) {
		return
	}

	w.schedule(ctx, event.Name)
}

// schedule arms (or re-arms) the per-path debounce timer.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		chunks, err := w.pipeline.IndexSingleFile(ctx, path)
		if err != nil {
			w.log.Warn().Err(err).Str("file", path).Msg("re-index failed")
			return
		}
		w.log.Info().Str("file", path).Int("chunks", chunks).Msg("re-indexed")
	})
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) matches(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.include {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// addTree registers root and all its non-hidden subdirectories.
func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (strings.HasPrefix(name, ".") || name == "vendor" || name == "node_modules") {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}
