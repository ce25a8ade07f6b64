package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/bibdex/bibdex/internal/index"
	"github.com/bibdex/bibdex/internal/output"
)

// updateOptions holds CLI flags for update.
type updateOptions struct {
	prune bool
	quiet bool
}

func newUpdateCmd() *cobra.Command {
	var opts updateOptions

	cmd := &cobra.Command{
		Use:   "update [paths...]",
		Short: "Incrementally update the index",
		Long: `Update the index with only the entries that changed.

Entry fingerprints are compared against the stored ones; unchanged
entries are skipped without a write. Entries that disappeared from a
reloaded file are reported as deletion candidates, and removed only
with --prune. Files not part of this load are never touched.

Examples:
  bibdex update
  bibdex update papers/new.bib
  bibdex update --prune`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd.Context(), cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.prune, "prune", false, "Delete entries that disappeared from reloaded files")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress progress output")

	return cmd
}

func runUpdate(ctx context.Context, cmd *cobra.Command, args []string, opts updateOptions) error {
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

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	ix := index.New(s, cfg.Index.BatchSize)
	result, err := ix.Update(ctx, entries, index.UpdateOptions{Prune: opts.prune}, func(done, total int) {
		out.Progress("updating", done, total)
	})
	if err != nil {
		return err
	}

	slog.Info("index_updated",
		slog.Int("added", result.Added),
		slog.Int("changed", result.Changed),
		slog.Int("unchanged", result.Unchanged),
		slog.Int("deleted", result.Deleted),
		slog.Duration("elapsed", time.Since(start)),
	)
	out.Success("added %d, changed %d, unchanged %d in %s",
		result.Added, result.Changed, result.Unchanged,
		time.Since(start).Round(time.Millisecond))

	if opts.prune {
		if result.Deleted > 0 {
			out.Success("pruned %d entries", result.Deleted)
		}
	} else if len(result.DeletionCandidates) > 0 {
		out.Warning("%d entries disappeared from their source files (use --prune to remove):",
			len(result.DeletionCandidates))
		for _, key := range result.DeletionCandidates {
			out.Status("  %s", key)
		}
	}
	return nil
}
