package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBibFile(t *testing.T) {
	assert.True(t, IsBibFile("refs.bib"))
	assert.True(t, IsBibFile("/home/u/papers/REFS.BIB"))
	assert.False(t, IsBibFile("refs.bib.bak"))
	assert.False(t, IsBibFile("notes.txt"))
	assert.False(t, IsBibFile(""))
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{}.WithDefaults()
	assert.Equal(t, 500*time.Millisecond, opts.DebounceWindow)
	assert.Equal(t, 100, opts.EventBufferSize)

	// Explicit values survive
	opts = Options{DebounceWindow: time.Second, EventBufferSize: 5}.WithDefaults()
	assert.Equal(t, time.Second, opts.DebounceWindow)
	assert.Equal(t, 5, opts.EventBufferSize)
}

func TestWatcher_DetectsBibFileWrite(t *testing.T) {
	// Given: a watcher on a temp directory
	dir := t.TempDir()
	w, err := New(Options{DebounceWindow: 50 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Start(ctx, dir)
	}()

	// Let the watch registration settle
	time.Sleep(100 * time.Millisecond)

	// When: a .bib file is written and a non-bib file alongside it
	bibPath := filepath.Join(dir, "refs.bib")
	require.NoError(t, os.WriteFile(bibPath, []byte("@article{k, title={T}}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	// Then: only the .bib change is reported
	select {
	case events := <-w.Events():
		require.NotEmpty(t, events)
		for _, e := range events {
			assert.Equal(t, bibPath, e.Path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for watcher event")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(Options{})
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
