package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *recorder) record(paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, paths)
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.batches...)
}

func jsonOnly(path string) bool { return strings.HasSuffix(path, ".json") }

func startWatcher(t *testing.T, dir string, rec *recorder) *Watcher {
	t.Helper()
	w := New([]string{dir}, jsonOnly, 50*time.Millisecond, rec.record,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx))
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_DebouncesIntoOneBatch(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	a := filepath.Join(dir, "a.json")
	b := filepath.Join(dir, "b.json")
	require.NoError(t, os.WriteFile(a, []byte(`{}`), 0o600))
	require.NoError(t, os.WriteFile(b, []byte(`{}`), 0o600))
	require.NoError(t, os.WriteFile(a, []byte(`{"id":"a"}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`x`), 0o600))

	require.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	var seen []string
	for _, batch := range rec.snapshot() {
		seen = append(seen, batch...)
	}
	assert.Contains(t, seen, a)
	assert.Contains(t, seen, b)
	assert.NotContains(t, seen, filepath.Join(dir, "notes.txt"))
}

func TestWatcher_PicksUpNewDirectories(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	sub := filepath.Join(dir, "respiratory")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(100 * time.Millisecond)
	f := filepath.Join(sub, "copd.json")
	require.NoError(t, os.WriteFile(f, []byte(`{}`), 0o600))

	require.Eventually(t, func() bool {
		for _, batch := range rec.snapshot() {
			for _, p := range batch {
				if p == f {
					return true
				}
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_StopDropsPending(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := New([]string{dir}, jsonOnly, time.Second, rec.record, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{}`), 0o600))
	time.Sleep(100 * time.Millisecond)
	w.Stop()
	w.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestWatcher_StartFailsForMissingRoot(t *testing.T) {
	w := New([]string{filepath.Join(t.TempDir(), "missing")}, nil, 0, func([]string) {},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, w.Start(context.Background()))
	assert.Equal(t, defaultDebounce, w.debounce)
}
