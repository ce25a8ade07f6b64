package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bibdex/bibdex/internal/format"
	"github.com/bibdex/bibdex/internal/output"
	"github.com/bibdex/bibdex/internal/search"
	"github.com/bibdex/bibdex/internal/store"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit  int
	offset int
	sort   string
	format string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index",
		Long: `Search the index with field qualifiers, boolean operators,
phrases, prefix matching, and proximity.

Query syntax:
  feynman path integral    all words must match (implicit AND)
  author:feynman           restrict a word to one field
  "path integral"          exact phrase
  quan*                    prefix match
  relativity NOT special   exclude matches
  einstein OR feynman      either side
  quantum NEAR/5 gravity   words within 5 tokens

Examples:
  bibdex search "author:feynman quantum"
  bibdex search 'title:"path integral"' --limit 5
  bibdex search einstein --sort year --format bibtex`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (0 uses config)")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Skip the first N results")
	cmd.Flags().StringVarP(&opts.sort, "sort", "s", "", "Sort order: relevance, year, author, added")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "table", "Output format: table, bibtex, json, keys")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, userQuery string, opts searchOptions) error {
	out := output.NewWriter(cmd.OutOrStdout())
	start := time.Now()

	_, cfg, err := loadProject()
	if err != nil {
		return err
	}

	f, err := format.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	limit := opts.limit
	if limit == 0 {
		limit = cfg.Search.DefaultLimit
	}
	sortKey := opts.sort
	if sortKey == "" {
		sortKey = cfg.Search.DefaultSort
	}
	switch store.SortKey(sortKey) {
	case store.SortRelevance, store.SortYear, store.SortAuthor, store.SortAdded:
	default:
		return fmt.Errorf("unknown sort %q (want relevance, year, author, or added)", sortKey)
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	engine, err := search.NewEngine(s)
	if err != nil {
		return err
	}

	results, err := engine.Search(ctx, userQuery, search.Options{
		Limit:  limit,
		Offset: opts.offset,
		Sort:   store.SortKey(sortKey),
	})
	if err != nil {
		return err
	}

	slog.Info("search_complete",
		slog.String("query", userQuery),
		slog.Int("results", len(results)),
		slog.Duration("elapsed", time.Since(start)),
	)

	if len(results) == 0 {
		out.Status("no matches")
		return nil
	}
	return format.Results(cmd.OutOrStdout(), results, f)
}
