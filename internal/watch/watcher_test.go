package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu    sync.Mutex
	paths []string
	ch    chan string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan string, 16)}
}

func (r *recorder) handle(_ context.Context, path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
	r.ch <- path
}

func (r *recorder) wait(t *testing.T) string {
	t.Helper()
	select {
	case p := <-r.ch:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for handler")
		return ""
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

func TestWatcherHandlesSettledJobFiles(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	w, err := New(dir, rec.handle, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))
	job := filepath.Join(dir, "servo.toml")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(job, []byte("[project]\n"), 0644))
	}

	assert.Equal(t, job, rec.wait(t))

	// Let a second debounce window pass; the burst must be handled once.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, rec.count())

	stats := w.Stats()
	assert.Equal(t, 1, stats.Handled)
	assert.Equal(t, job, stats.LastEventPath)
	assert.GreaterOrEqual(t, stats.FilesCreated+stats.FilesModified, 1)
}

func TestWatcherSkipsRemovedFiles(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	w, err := New(dir, rec.handle, WithDebounce(200*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	gone := filepath.Join(dir, "gone.toml")
	require.NoError(t, os.WriteFile(gone, []byte(""), 0644))
	require.NoError(t, os.Remove(gone))

	kept := filepath.Join(dir, "kept.toml")
	require.NoError(t, os.WriteFile(kept, []byte(""), 0644))

	assert.Equal(t, kept, rec.wait(t))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestWatcherStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w, err := New(t.TempDir(), func(context.Context, string) {})
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Start(ctx), "second Start is a no-op")

	cancel()
	w.Stop()
	w.Stop()
}

func TestWatcherMissingDirectory(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "absent"), func(context.Context, string) {})
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background()))
	w.Stop()
}
