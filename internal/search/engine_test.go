package search

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

func testEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "index.db"), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	engine, err := NewEngine(s)
	require.NoError(t, err)
	return engine, s
}

func indexEntry(t *testing.T, s *store.Store, key, entryType string, fields map[string]string) {
	t.Helper()
	e := &bib.Entry{Key: key, Type: entryType, Fields: fields, SourceFile: "test.bib"}
	require.NoError(t, s.Upsert(context.Background(), store.NewRow(e)))
}

func seedPhysics(t *testing.T, s *store.Store) {
	indexEntry(t, s, "feynman1942principle", "phdthesis", map[string]string{
		"author": "Richard Feynman",
		"title":  "The Principle of Least Action",
		"year":   "1942",
	})
	indexEntry(t, s, "einstein1905photo", "article", map[string]string{
		"author": "Albert Einstein",
		"title":  "On a Heuristic Viewpoint",
		"year":   "1905",
	})
}

func TestSearch_FieldQualified(t *testing.T) {
	engine, s := testEngine(t)
	seedPhysics(t, s)

	results, err := engine.Search(context.Background(), "author:feynman", Options{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "feynman1942principle", results[0].Key)
}

func TestSearch_PhraseAdjacencyOnly(t *testing.T) {
	engine, s := testEngine(t)
	seedPhysics(t, s)
	// Contains both words, non-adjacent
	indexEntry(t, s, "scattered", "misc", map[string]string{
		"title": "Action comes least often",
	})

	results, err := engine.Search(context.Background(), `"least action"`, Options{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "feynman1942principle", results[0].Key)
}

func TestSearch_OrReturnsBothRanked(t *testing.T) {
	engine, s := testEngine(t)
	seedPhysics(t, s)

	results, err := engine.Search(context.Background(), "einstein OR feynman", Options{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	keys := []string{results[0].Key, results[1].Key}
	assert.ElementsMatch(t, []string{"feynman1942principle", "einstein1905photo"}, keys)
}

func TestSearch_PrefixWildcard(t *testing.T) {
	engine, s := testEngine(t)
	indexEntry(t, s, "dirac1930", "book", map[string]string{
		"title": "The Principles of Quantum Mechanics",
	})

	results, err := engine.Search(context.Background(), "quan*", Options{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "dirac1930", results[0].Key)
}

func TestSearch_ZeroMatchesIsNotAnError(t *testing.T) {
	engine, s := testEngine(t)
	seedPhysics(t, s)

	results, err := engine.Search(context.Background(), "bohr", Options{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_InvalidLimit(t *testing.T) {
	engine, s := testEngine(t)
	seedPhysics(t, s)

	_, err := engine.Search(context.Background(), "feynman", Options{Limit: 0})
	require.Error(t, err)
	assert.Equal(t, bterrors.ErrCodeQueryInvalidLimit, bterrors.GetCode(err))
}

func TestSearch_EmptyQuery(t *testing.T) {
	engine, _ := testEngine(t)

	_, err := engine.Search(context.Background(), "", Options{Limit: 10})
	require.Error(t, err)
	assert.Equal(t, bterrors.ErrCodeQueryEmpty, bterrors.GetCode(err))
}

func TestSearch_SyntaxErrorPropagates(t *testing.T) {
	engine, _ := testEngine(t)

	_, err := engine.Search(context.Background(), `"unterminated`, Options{Limit: 10})
	require.Error(t, err)
	assert.Equal(t, bterrors.ErrCodeQuerySyntax, bterrors.GetCode(err))
}

func TestSearch_CacheInvalidatedByWrite(t *testing.T) {
	engine, s := testEngine(t)
	ctx := context.Background()
	seedPhysics(t, s)

	results, err := engine.Search(ctx, "author:feynman", Options{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)

	// A cached repeat returns the same page
	results, err = engine.Search(ctx, "author:feynman", Options{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)

	// After a write from another connection the stale page must not be served
	other, err := store.Open(s.Path(), store.Options{})
	require.NoError(t, err)
	defer other.Close()
	indexEntry(t, other, "feynman1965qed", "book", map[string]string{
		"author": "Richard Feynman",
		"title":  "QED Lectures",
		"year":   "1965",
	})

	results, err = engine.Search(ctx, "author:feynman", Options{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_CacheInvalidatedBySameHandleWrite(t *testing.T) {
	engine, s := testEngine(t)
	ctx := context.Background()
	seedPhysics(t, s)

	results, err := engine.Search(ctx, "author:feynman", Options{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)

	// A write through the same store handle does not move SQLite's
	// data_version, so this relies on the write generation counter
	indexEntry(t, s, "feynman1965qed", "book", map[string]string{
		"author": "Richard Feynman",
		"title":  "QED Lectures",
		"year":   "1965",
	})

	results, err = engine.Search(ctx, "author:feynman", Options{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_SortByYear(t *testing.T) {
	engine, s := testEngine(t)
	seedPhysics(t, s)

	results, err := engine.Search(context.Background(), "einstein OR feynman",
		Options{Limit: 10, Sort: store.SortYear})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "feynman1942principle", results[0].Key)
	assert.Equal(t, "einstein1905photo", results[1].Key)
}
