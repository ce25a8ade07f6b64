// Package search executes user queries against the index store.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	bterrors "github.com/bibdex/bibdex/internal/errors"
	"github.com/bibdex/bibdex/internal/query"
	"github.com/bibdex/bibdex/internal/store"
)

// DefaultLimit is used when the caller requests no explicit limit.
const DefaultLimit = 20

// cacheSize bounds the number of cached result pages.
const cacheSize = 128

// Options bound and order one search.
type Options struct {
	// Limit is the maximum number of results. Must be positive;
	// zero or negative is rejected rather than scanning everything.
	Limit int
	// Offset skips results for pagination.
	Offset int
	// Sort selects result ordering. Empty means relevance.
	Sort store.SortKey
}

// Result is one ranked search result handed to the formatter.
type Result struct {
	Key       string            `json:"key"`
	EntryType string            `json:"entry_type"`
	Fields    map[string]string `json:"fields"`
	Score     float64           `json:"score"`
	Snippet   string            `json:"snippet,omitempty"`
}

// Engine parses, executes, and caches searches.
//
// The cache key includes SQLite's data_version counter, which moves on
// commits from other connections, and the store's write generation, which
// counts commits on this handle's own connection (data_version does not
// move for those). Together they ensure cached pages can never outlive
// the store state they were computed from.
type Engine struct {
	store *store.Store
	cache *lru.Cache[string, []Result]
}

// NewEngine creates an Engine over the given store.
func NewEngine(s *store.Store) (*Engine, error) {
	cache, err := lru.New[string, []Result](cacheSize)
	if err != nil {
		return nil, bterrors.InternalError("cannot create result cache", err)
	}
	return &Engine{store: s, cache: cache}, nil
}

// Search runs one query. Query syntax errors, empty queries, and invalid
// limits are rejected with distinct error kinds; zero matches is a valid
// empty result, not an error.
func (e *Engine) Search(ctx context.Context, userQuery string, opts Options) ([]Result, error) {
	start := time.Now()

	expr, err := query.Translate(userQuery)
	if err != nil {
		return nil, err
	}
	if opts.Limit <= 0 {
		return nil, bterrors.QueryInvalidLimit(opts.Limit)
	}
	sort := opts.Sort
	if sort == "" {
		sort = store.SortRelevance
	}

	version, err := e.store.DataVersion(ctx)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%d.%d|%s|%d|%d|%s",
		version, e.store.WriteGeneration(), sort, opts.Limit, opts.Offset, expr)
	if cached, ok := e.cache.Get(key); ok {
		slog.Debug("search_cache_hit", slog.String("expr", expr))
		return cached, nil
	}

	hits, err := e.store.Search(ctx, expr, store.SearchOptions{
		Limit:  opts.Limit,
		Offset: opts.Offset,
		Sort:   sort,
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			Key:       h.Row.Key,
			EntryType: h.Row.EntryType,
			Fields:    h.Row.Fields,
			Score:     h.Score,
			Snippet:   h.Snippet,
		})
	}
	e.cache.Add(key, results)

	slog.Debug("search_executed",
		slog.String("query", userQuery),
		slog.String("expr", expr),
		slog.Int("results", len(results)),
		slog.Duration("elapsed", time.Since(start)))

	return results, nil
}
