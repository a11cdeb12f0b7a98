package watcher

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "go.uber.org/zap"
)

// Watcher keeps fsnotify pointed at the configured video folders and
// forwards debounced change events so the catalog can rescan. Folders that
// cannot be watched are skipped, never fatal: an unwatchable folder is a
// catalog problem, not a player problem.
type Watcher struct {
	eventForward chan<- fsnotify.Event
	watch        *fsnotify.Watcher

	mu    sync.Mutex
	paths []string
}

func Init(paths []string, c chan<- fsnotify.Event) (*Watcher, error) {
	var w Watcher
	var err error
	w.eventForward = c
	w.watch, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating a new watcher: %w", err)
	}
	for _, p := range paths {
		w.addPath(p)
	}
	return &w, nil
}

func (w *Watcher) Run(ctx context.Context) error {
	defer w.watch.Close()
	return w.dedupLoop(ctx)
}

// SetPaths swaps the watched set for the folders in the new settings.
func (w *Watcher) SetPaths(paths []string) {
	w.mu.Lock()
	current := append([]string(nil), w.paths...)
	w.mu.Unlock()

	for _, p := range current {
		if !slices.Contains(paths, p) {
			w.removePath(p)
		}
	}
	for _, p := range paths {
		if !slices.Contains(current, p) {
			w.addPath(p)
		}
	}
}

func (w *Watcher) addPath(path string) {
	if err := w.watch.Add(path); err != nil {
		log.S().Warnf("watching %q: %v", path, err)
		return
	}
	w.mu.Lock()
	w.paths = append(w.paths, path)
	w.mu.Unlock()
}

func (w *Watcher) removePath(path string) {
	if err := w.watch.Remove(path); err != nil {
		log.S().Debugf("unwatching %q: %v", path, err)
	}
	w.mu.Lock()
	if i := slices.Index(w.paths, path); i >= 0 {
		w.paths = slices.Delete(w.paths, i, i+1)
	}
	w.mu.Unlock()
}

func (w *Watcher) dedupLoop(ctx context.Context) error {
	var (
		// Wait for the burst of events around a file copy to settle;
		// each new event for a path resets its timer.
		waitFor = 1000 * time.Millisecond

		// Keep track of the timers, as path → timer.
		mu     sync.Mutex
		timers = make(map[string]*time.Timer)

		forward = func(e fsnotify.Event) {
			w.eventForward <- e
			log.S().Debugf("watcher: %+v", e)

			mu.Lock()
			delete(timers, e.Name)
			mu.Unlock()
		}
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.watch.Errors:
			if !ok { // Channel was closed (i.e. Watcher.Close() was called).
				return err
			}
			log.S().Error(err.Error())
		case e, ok := <-w.watch.Events:
			if !ok { // Channel was closed (i.e. Watcher.Close() was called).
				return nil
			}

			mu.Lock()
			t, ok := timers[e.Name]
			mu.Unlock()

			if !ok {
				t = time.AfterFunc(math.MaxInt64, func() { forward(e) })
				t.Stop()

				mu.Lock()
				timers[e.Name] = t
				mu.Unlock()
			}

			t.Reset(waitFor)
		}
	}
}
