package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	bterrors "github.com/bibdex/bibdex/internal/errors"
	"github.com/bibdex/bibdex/internal/output"
)

// checkOptions holds CLI flags for check.
type checkOptions struct {
	rebuild  bool
	optimize bool
}

func newCheckCmd() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify index consistency",
		Long: `Verify that the full-text index is in lockstep with the entry
table. With --rebuild, a detected inconsistency is repaired by
rebuilding the full-text index from the entry table.

Examples:
  bibdex check
  bibdex check --rebuild
  bibdex check --optimize`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.rebuild, "rebuild", false, "Rebuild the full-text index if inconsistent")
	cmd.Flags().BoolVar(&opts.optimize, "optimize", false, "Merge full-text index segments after checking")

	return cmd
}

func runCheck(ctx context.Context, cmd *cobra.Command, opts checkOptions) error {
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

	checkErr := s.CheckConsistency(ctx)
	switch {
	case checkErr == nil:
		out.Success("index is consistent")
	case bterrors.GetCode(checkErr) == bterrors.ErrCodeIndexCorruption:
		if !opts.rebuild {
			return checkErr
		}
		out.Warning("index inconsistent, rebuilding full-text index")
		if err := s.RebuildFTS(ctx); err != nil {
			return err
		}
		if err := s.CheckConsistency(ctx); err != nil {
			return err
		}
		slog.Info("fts_rebuilt")
		out.Success("full-text index rebuilt, index is consistent")
	default:
		return checkErr
	}

	if opts.optimize {
		if err := s.Optimize(ctx); err != nil {
			return err
		}
		out.Success("full-text index optimized")
	}
	return nil
}
