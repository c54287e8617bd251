package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driving"
)

// recordingRunner counts provider syncs. The watcher fires from detached
// goroutines, so access is locked.
type recordingRunner struct {
	mu     sync.Mutex
	calls  []string
	refuse int // first n calls answer ErrSyncInProgress
}

func (r *recordingRunner) Run(context.Context) (*domain.SyncReport, error) {
	return &domain.SyncReport{}, nil
}

func (r *recordingRunner) RunProvider(_ context.Context, providerType domain.ProviderType, name string) (*domain.SyncReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refuse > 0 {
		r.refuse--
		return nil, domain.ErrSyncInProgress
	}
	r.calls = append(r.calls, providerType.String()+"/"+name)
	return &domain.SyncReport{}, nil
}

func (r *recordingRunner) Status() driving.SyncStatus {
	return driving.SyncStatus{}
}

func (r *recordingRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recordingRunner) call(i int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[i]
}

// Ensure the recorder implements the port.
var _ driving.SyncRunner = (*recordingRunner)(nil)

func startWatcher(t *testing.T, runner *recordingRunner, root string, debounce time.Duration) *Watcher {
	t.Helper()
	w := New(runner, []Target{
		{ProviderType: domain.ProviderLocal, ProviderName: "notes", Root: root},
	}, WithDebounce(debounce))
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_SyncsOnFileWrite(t *testing.T) {
	root := t.TempDir()
	runner := &recordingRunner{}
	startWatcher(t, runner, root, 30*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	assert.Eventually(t, func() bool {
		return runner.callCount() >= 1
	}, 3*time.Second, 10*time.Millisecond, "a file write should trigger a sync")
	assert.Equal(t, "local/notes", runner.call(0))
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	root := t.TempDir()
	runner := &recordingRunner{}
	startWatcher(t, runner, root, 150*time.Millisecond)

	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("hello"), 0o644))
	}

	assert.Eventually(t, func() bool {
		return runner.callCount() == 1
	}, 3*time.Second, 10*time.Millisecond, "a write burst should collapse into one sync")

	// The quiet period has long passed; nothing else may fire.
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 1, runner.callCount())
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	runner := &recordingRunner{}
	startWatcher(t, runner, root, 30*time.Millisecond)

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// The mkdir itself is a change and fires once; by then the new
	// directory has joined the watch.
	assert.Eventually(t, func() bool {
		return runner.callCount() >= 1
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "nested.txt"), []byte("hello"), 0o644))

	assert.Eventually(t, func() bool {
		return runner.callCount() >= 2
	}, 3*time.Second, 10*time.Millisecond, "writes inside new directories should trigger syncs")
}

func TestWatcher_RetriesRefusedSync(t *testing.T) {
	root := t.TempDir()
	runner := &recordingRunner{refuse: 1}
	startWatcher(t, runner, root, 30*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	assert.Eventually(t, func() bool {
		return runner.callCount() == 1
	}, 3*time.Second, 10*time.Millisecond, "a refused sync should be retried after the debounce window")
}

func TestWatcher_StartTwice(t *testing.T) {
	root := t.TempDir()
	runner := &recordingRunner{}
	w := startWatcher(t, runner, root, 30*time.Millisecond)

	assert.NoError(t, w.Start(context.Background()), "second Start is a no-op")
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	w := New(&recordingRunner{}, nil)

	assert.NotPanics(t, w.Stop)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	root := t.TempDir()
	runner := &recordingRunner{}
	w := New(runner, []Target{
		{ProviderType: domain.ProviderLocal, ProviderName: "notes", Root: root},
	}, WithDebounce(30*time.Millisecond))
	require.NoError(t, w.Start(context.Background()))

	w.Stop()
	assert.NotPanics(t, w.Stop)
}

func TestWatcher_StartFailsOnMissingRoot(t *testing.T) {
	w := New(&recordingRunner{}, []Target{
		{ProviderType: domain.ProviderLocal, ProviderName: "gone", Root: filepath.Join(t.TempDir(), "missing")},
	})

	err := w.Start(context.Background())

	assert.Error(t, err)
}

func TestTargetFor_DeepestRootWins(t *testing.T) {
	outer := t.TempDir()
	inner := filepath.Join(outer, "inner")
	w := New(&recordingRunner{}, []Target{
		{ProviderType: domain.ProviderLocal, ProviderName: "outer", Root: outer},
		{ProviderType: domain.ProviderLocal, ProviderName: "inner", Root: inner},
	})

	target, ok := w.targetFor(filepath.Join(inner, "doc.md"))

	require.True(t, ok)
	assert.Equal(t, "inner", target.ProviderName)
}

func TestTargetFor_OutsideRoots(t *testing.T) {
	w := New(&recordingRunner{}, []Target{
		{ProviderType: domain.ProviderLocal, ProviderName: "notes", Root: t.TempDir()},
	})

	_, ok := w.targetFor(filepath.Join(os.TempDir(), "unrelated", "doc.md"))

	assert.False(t, ok)
}

func TestRelevant(t *testing.T) {
	assert.True(t, relevant(fsnotify.Write))
	assert.True(t, relevant(fsnotify.Create))
	assert.True(t, relevant(fsnotify.Remove))
	assert.True(t, relevant(fsnotify.Rename))
	assert.False(t, relevant(fsnotify.Chmod))
}
