package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bibdex/bibdex/internal/config"
	"github.com/bibdex/bibdex/internal/index"
	"github.com/bibdex/bibdex/internal/output"
	"github.com/bibdex/bibdex/internal/watcher"
)

// watchOptions holds CLI flags for watch.
type watchOptions struct {
	prune    bool
	debounce time.Duration
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch bibliography files and update the index on change",
		Long: `Watch the configured bibliography paths and re-index changed
files automatically. Rapid editor save sequences are coalesced so a
burst of writes triggers a single update.

Runs until interrupted.

Examples:
  bibdex watch
  bibdex watch --prune --debounce 2s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.prune, "prune", false, "Delete entries that disappeared from changed files")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 0, "Debounce window for file events (0 uses default)")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, opts watchOptions) error {
	out := output.NewWriter(cmd.OutOrStdout())

	_, cfg, err := loadProject()
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	w, err := watcher.New(watcher.Options{DebounceWindow: opts.debounce})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- w.Start(ctx, cfg.Paths.Bibliography...)
	}()

	out.Status("watching %d paths, press Ctrl-C to stop", len(cfg.Paths.Bibliography))

	ix := index.New(s, cfg.Index.BatchSize)
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			<-watchErr
			out.Status("stopped")
			return nil
		case err := <-watchErr:
			if err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		case err := <-w.Errors():
			if err != nil {
				out.Warning("watch: %v", err)
			}
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			if err := reindexBatch(ctx, cfg, ix, out, batch, opts.prune); err != nil {
				out.Error("update failed: %v", err)
				slog.Error("watch_update_failed", slog.String("error", err.Error()))
			}
		}
	}
}

// reindexBatch runs an incremental update covering the files named in a
// batch of change events. Deleted files stay in scope through the full
// configured load, so their entries surface as deletion candidates.
func reindexBatch(ctx context.Context, cfg *config.Config, ix *index.Indexer, out *output.Writer, batch []watcher.FileEvent, prune bool) error {
	for _, e := range batch {
		slog.Debug("file_changed",
			slog.String("path", e.Path),
			slog.String("op", e.Operation.String()),
		)
	}
	out.Status("%d files changed, updating", len(batch))

	entries, err := loadEntries(cfg, nil)
	if err != nil {
		return err
	}

	result, err := ix.Update(ctx, entries, index.UpdateOptions{Prune: prune}, nil)
	if err != nil {
		return err
	}

	out.Success("added %d, changed %d, deleted %d",
		result.Added, result.Changed, result.Deleted)
	if !prune && len(result.DeletionCandidates) > 0 {
		out.Warning("%d entries disappeared (run 'bibdex update --prune' to remove)",
			len(result.DeletionCandidates))
	}
	return nil
}
