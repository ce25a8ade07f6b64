package cmd

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bibdex/bibdex/internal/output"
)

func newStatsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long: `Show index statistics: entry counts, per-type and per-file
breakdowns, and on-disk size.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), cmd, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, asJSON bool) error {
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

	stats, err := s.Stats(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	out.Status("entries: %d (fts rows: %d)", stats.TotalEntries, stats.FTSEntries)
	out.Status("database: %s (%.1f KiB, schema v%d)",
		s.Path(), float64(stats.SizeBytes)/1024, stats.SchemaVer)

	printBreakdown(out, "by type", stats.ByType)
	printBreakdown(out, "by file", stats.ByFile)
	return nil
}

func printBreakdown(out *output.Writer, label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	out.Status("%s:", label)
	for _, name := range names {
		out.Status("  %-20s %d", name, counts[name])
	}
}
