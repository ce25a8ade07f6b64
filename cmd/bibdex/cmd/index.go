package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/bibdex/bibdex/internal/index"
	"github.com/bibdex/bibdex/internal/output"
)

// indexOptions holds CLI flags for index.
type indexOptions struct {
	batchSize int
	quiet     bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index [paths...]",
		Short: "Build the search index from bibliography files",
		Long: `Build the search index from scratch.

Every entry in the configured bibliography (or the given paths) is
parsed and written to the index in batched transactions. Entries no
longer present in any source file are removed.

Examples:
  bibdex index
  bibdex index papers/ extra.bib
  bibdex index --batch-size 1000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, args, opts)
		},
	}

	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "Entries per transaction (0 uses config)")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress progress output")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, args []string, opts indexOptions) error {
	out := output.NewWriter(cmd.OutOrStdout(), output.WithQuiet(opts.quiet))
	start := time.Now()

	_, cfg, err := loadProject()
	if err != nil {
		return err
	}

	entries, err := loadEntries(cfg, args)
	if err != nil {
		return err
	}
	out.Status("parsed %d entries", len(entries))

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	batchSize := opts.batchSize
	if batchSize <= 0 {
		batchSize = cfg.Index.BatchSize
	}

	ix := index.New(s, batchSize)
	result, err := ix.Build(ctx, entries, func(done, total int) {
		out.Progress("indexing", done, total)
	})
	if err != nil {
		return err
	}

	slog.Info("index_built",
		slog.Int("indexed", result.Indexed),
		slog.Int("deleted", result.Deleted),
		slog.Int("batches", result.Batches),
		slog.Duration("elapsed", time.Since(start)),
	)
	out.Success("indexed %d entries (%d removed) in %s",
		result.Indexed, result.Deleted, time.Since(start).Round(time.Millisecond))
	return nil
}
