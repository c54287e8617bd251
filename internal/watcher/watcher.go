// Package watcher triggers provider syncs when files change under the
// roots of local provider instances.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driving"
	"github.com/trawlhq/trawl/internal/logger"
)

// DefaultDebounce is the quiet period after the last event before a sync
// fires. Editors and download tools write in bursts; one sync per burst
// is enough.
const DefaultDebounce = 2 * time.Second

// Target is one watched provider instance.
type Target struct {
	ProviderType domain.ProviderType
	ProviderName string
	Root         string
}

func (t Target) key() string {
	return t.ProviderType.String() + "/" + t.ProviderName
}

// Option configures the watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a change triggers a sync.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// Watcher holds recursive fsnotify watches over target roots and runs a
// per-target sync once a root has been quiet for the debounce window.
// Syncs run detached from the event loop so a long pass never stalls
// event draining; a run refused because one is already active is re-armed
// rather than lost.
type Watcher struct {
	runner   driving.SyncRunner
	targets  []Target
	debounce time.Duration

	fw      *fsnotify.Watcher
	stopCh  chan struct{}
	retryCh chan Target
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// New creates a watcher over the given targets.
func New(runner driving.SyncRunner, targets []Target, opts ...Option) *Watcher {
	w := &Watcher{
		runner:   runner,
		targets:  make([]Target, len(targets)),
		debounce: DefaultDebounce,
	}
	for i, target := range targets {
		target.Root = filepath.Clean(target.Root)
		w.targets[i] = target
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start registers recursive watches over every target root and begins
// dispatching. It returns immediately; watching runs until Stop or
// context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	for _, target := range w.targets {
		if err := watchTree(fw, target.Root); err != nil {
			//nolint:errcheck,gosec // Already failing; nothing to add
			fw.Close()
			return err
		}
	}

	w.fw = fw
	w.stopCh = make(chan struct{})
	w.retryCh = make(chan Target, len(w.targets))
	w.started = true

	w.wg.Add(1)
	go w.loop(ctx)
	logger.Info("Watching %d local root(s) for changes", len(w.targets))
	return nil
}

// Stop halts dispatching and waits for in-flight syncs to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
	//nolint:errcheck // Close error carries nothing actionable
	_ = w.fw.Close()
}

// watchTree adds the directory and every subdirectory to the watch.
// Files are covered by their parent directory's watch.
func watchTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walking %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	// Per-target deadlines implement the debounce: every event pushes
	// the target's deadline out, the ticker fires whatever went quiet.
	pending := make(map[string]time.Time)
	byKey := make(map[string]Target, len(w.targets))
	for _, target := range w.targets {
		byKey[target.key()] = target
	}

	tick := w.debounce / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !relevant(event.Op) {
				continue
			}
			// Directories created after Start join the watch, so files
			// written inside them still trigger syncs.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watchTree(w.fw, event.Name); err != nil {
						logger.Debug("Watcher: %v", err)
					}
				}
			}
			if target, ok := w.targetFor(event.Name); ok {
				pending[target.key()] = time.Now().Add(w.debounce)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			logger.Warn("Watcher: %v", err)
		case target := <-w.retryCh:
			pending[target.key()] = time.Now().Add(w.debounce)
		case <-ticker.C:
			now := time.Now()
			for key, deadline := range pending {
				if now.Before(deadline) {
					continue
				}
				delete(pending, key)
				w.fire(ctx, byKey[key])
			}
		}
	}
}

// fire runs one provider sync detached from the loop. A run refused
// because another is active is queued for retry after another debounce
// window.
func (w *Watcher) fire(ctx context.Context, target Target) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		logger.Debug("Watcher: syncing %s after changes", target.key())

		report, err := w.runner.RunProvider(ctx, target.ProviderType, target.ProviderName)
		switch {
		case errors.Is(err, domain.ErrSyncInProgress):
			select {
			case w.retryCh <- target:
			case <-w.stopCh:
			case <-ctx.Done():
			}
		case err != nil:
			logger.Warn("Watcher: sync of %s failed: %v", target.key(), err)
		default:
			logger.Debug("Watcher: %s synced, %d indexed, %d removed, %d failed",
				target.key(), report.TotalIndexed(), report.TotalRemoved(), report.TotalFailed())
		}
	}()
}

// targetFor maps an event path to the target whose root contains it,
// preferring the deepest root when targets nest.
func (w *Watcher) targetFor(path string) (Target, bool) {
	path = filepath.Clean(path)
	var best Target
	bestLen := -1
	for _, target := range w.targets {
		if path != target.Root && !strings.HasPrefix(path, target.Root+string(filepath.Separator)) {
			continue
		}
		if len(target.Root) > bestLen {
			best, bestLen = target, len(target.Root)
		}
	}
	return best, bestLen >= 0
}

func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Create) || op.Has(fsnotify.Write) ||
		op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename)
}
