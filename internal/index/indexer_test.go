package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibdex/bibdex/internal/bib"
	bterrors "github.com/bibdex/bibdex/internal/errors"
	"github.com/bibdex/bibdex/internal/store"
)

func entry(key, title, source string) *bib.Entry {
	return &bib.Entry{
		Key:  key,
		Type: "article",
		Fields: map[string]string{
			"title":  title,
			"author": "Some Author",
			"year":   "2020",
		},
		SourceFile: source,
	}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "index.db"), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func snapshot(t *testing.T, s *store.Store) map[string]*store.Row {
	t.Helper()
	ctx := context.Background()
	keys, err := s.AllKeys(ctx)
	require.NoError(t, err)
	out := make(map[string]*store.Row, len(keys))
	for _, k := range keys {
		row, err := s.Get(ctx, k)
		require.NoError(t, err)
		out[k] = row
	}
	return out
}

func TestBuild_IndexesAllEntries(t *testing.T) {
	s := openStore(t)
	ix := New(s, 2)
	ctx := context.Background()

	entries := []*bib.Entry{
		entry("a1", "Alpha", "a.bib"),
		entry("a2", "Beta", "a.bib"),
		entry("b1", "Gamma", "b.bib"),
	}

	var calls []int
	result, err := ix.Build(ctx, entries, func(done, total int) {
		require.Equal(t, 3, total)
		calls = append(calls, done)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Indexed)
	assert.Equal(t, 0, result.Deleted)
	assert.Equal(t, []int{0, 2, 3}, calls)

	keys, err := s.AllKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "b1"}, keys)
}

func TestBuild_Idempotent(t *testing.T) {
	s := openStore(t)
	ix := New(s, 0)
	ctx := context.Background()

	entries := []*bib.Entry{
		entry("a1", "Alpha", "a.bib"),
		entry("b1", "Beta", "b.bib"),
	}

	_, err := ix.Build(ctx, entries, nil)
	require.NoError(t, err)
	first := snapshot(t, s)

	_, err = ix.Build(ctx, entries, nil)
	require.NoError(t, err)
	second := snapshot(t, s)

	assert.Equal(t, first, second)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, 2, stats.FTSEntries)
}

func TestBuild_RemovesOrphans(t *testing.T) {
	s := openStore(t)
	ix := New(s, 0)
	ctx := context.Background()

	_, err := ix.Build(ctx, []*bib.Entry{
		entry("keep", "Kept", "a.bib"),
		entry("gone", "Gone", "a.bib"),
	}, nil)
	require.NoError(t, err)

	result, err := ix.Build(ctx, []*bib.Entry{entry("keep", "Kept", "a.bib")}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)

	keys, err := s.AllKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, keys)
}

func TestBuild_DuplicateKeyFailsWholeBatch(t *testing.T) {
	s := openStore(t)
	ix := New(s, 0)
	ctx := context.Background()

	_, err := ix.Build(ctx, []*bib.Entry{
		entry("dup", "One", "a.bib"),
		entry("dup", "Two", "b.bib"),
	}, nil)
	require.Error(t, err)
	assert.Equal(t, bterrors.ErrCodeDuplicateKeyInBatch, bterrors.GetCode(err))

	// Neither copy was indexed
	keys, err := s.AllKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestBuild_CancelledAtBatchBoundary(t *testing.T) {
	s := openStore(t)
	ix := New(s, 1)

	ctx, cancel := context.WithCancel(context.Background())
	entries := []*bib.Entry{
		entry("a1", "Alpha", "a.bib"),
		entry("a2", "Beta", "a.bib"),
		entry("a3", "Gamma", "a.bib"),
	}

	var result *BuildResult
	var err error
	result, err = ix.Build(ctx, entries, func(done, total int) {
		if done == 1 {
			cancel()
		}
	})
	require.Error(t, err)
	assert.Equal(t, bterrors.ErrCodeBuildCancelled, bterrors.GetCode(err))
	assert.Equal(t, 1, result.Batches)

	// Committed batch survives, store stays consistent
	require.NoError(t, s.CheckConsistency(context.Background()))
	keys, kerr := s.AllKeys(context.Background())
	require.NoError(t, kerr)
	assert.Equal(t, []string{"a1"}, keys)
}

func TestUpdate_SkipsUnchanged(t *testing.T) {
	s := openStore(t)
	ix := New(s, 0)
	ctx := context.Background()

	base := []*bib.Entry{
		entry("a1", "Alpha", "a.bib"),
		entry("a2", "Beta", "a.bib"),
	}
	_, err := ix.Build(ctx, base, nil)
	require.NoError(t, err)

	// One changed, one untouched, one new
	changed := entry("a1", "Alpha Revised", "a.bib")
	result, err := ix.Update(ctx, []*bib.Entry{
		changed,
		entry("a2", "Beta", "a.bib"),
		entry("a3", "New", "a.bib"),
	}, UpdateOptions{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 1, result.Changed)
	assert.Equal(t, 1, result.Unchanged)
	assert.Empty(t, result.DeletionCandidates)

	row, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha Revised", row.Fields["title"])
}

func TestUpdate_DeletionScopeMatchesLoadScope(t *testing.T) {
	s := openStore(t)
	ix := New(s, 0)
	ctx := context.Background()

	_, err := ix.Build(ctx, []*bib.Entry{
		entry("a1", "Alpha", "a.bib"),
		entry("a2", "Beta", "a.bib"),
		entry("b1", "Gamma", "b.bib"),
	}, nil)
	require.NoError(t, err)

	// Reload only file A, with a2 removed from it. b1 must not be touched
	// or even reported.
	result, err := ix.Update(ctx, []*bib.Entry{entry("a1", "Alpha", "a.bib")}, UpdateOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a2"}, result.DeletionCandidates)
	assert.Equal(t, 0, result.Deleted)

	// Candidates are not deleted without Prune
	keys, err := s.AllKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "b1"}, keys)

	// With Prune only the in-scope key goes
	result, err = ix.Update(ctx, []*bib.Entry{entry("a1", "Alpha", "a.bib")}, UpdateOptions{Prune: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)

	keys, err = s.AllKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "b1"}, keys)
}

func TestUpdate_PruneDeletesInBoundedBatches(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := New(s, 0).Build(ctx, []*bib.Entry{
		entry("a1", "Alpha", "a.bib"),
		entry("a2", "Beta", "a.bib"),
		entry("a3", "Gamma", "a.bib"),
	}, nil)
	require.NoError(t, err)

	// Batch size 1 forces one delete transaction per candidate
	ix := New(s, 1)
	result, err := ix.Update(ctx, []*bib.Entry{entry("a1", "Alpha", "a.bib")}, UpdateOptions{Prune: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Deleted)
	assert.Empty(t, result.DeletionCandidates)

	keys, err := s.AllKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, keys)
}

func TestStatus_DryRunDiff(t *testing.T) {
	s := openStore(t)
	ix := New(s, 0)
	ctx := context.Background()

	_, err := ix.Build(ctx, []*bib.Entry{
		entry("a1", "Alpha", "a.bib"),
		entry("a2", "Beta", "a.bib"),
	}, nil)
	require.NoError(t, err)

	report, err := ix.Status(ctx, []*bib.Entry{
		entry("a1", "Alpha Revised", "a.bib"), // stale
		entry("a3", "New", "a.bib"),           // new
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Stored)
	assert.Equal(t, 2, report.Loaded)
	assert.Equal(t, []string{"a3"}, report.NewKeys)
	assert.Equal(t, []string{"a1"}, report.StaleKeys)
	assert.Equal(t, []string{"a2"}, report.MissingKeys)

	// Status writes nothing
	row, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", row.Fields["title"])
}

func TestStatus_FieldOrderDoesNotLookStale(t *testing.T) {
	s := openStore(t)
	ix := New(s, 0)
	ctx := context.Background()

	e := entry("a1", "Alpha", "a.bib")
	_, err := ix.Build(ctx, []*bib.Entry{e}, nil)
	require.NoError(t, err)

	// Same content, map rebuilt in a different insertion order
	reordered := &bib.Entry{Key: "a1", Type: "article", Fields: map[string]string{}, SourceFile: "a.bib"}
	reordered.Fields["year"] = "2020"
	reordered.Fields["author"] = "Some Author"
	reordered.Fields["title"] = "Alpha"

	report, err := ix.Status(ctx, []*bib.Entry{reordered})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 0, report.Stale)
}
