package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/bibdex/bibdex/internal/index"
	"github.com/bibdex/bibdex/internal/output"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status [paths...]",
		Short: "Show how the index differs from the bibliography",
		Long: `Compare the index against freshly parsed bibliography files
without writing anything.

Reports entries that are new, stale (changed on disk), unchanged, and
missing (indexed but gone from their source file).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd, args, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, args []string, asJSON bool) error {
	out := output.NewWriter(cmd.OutOrStdout())

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

	report, err := index.New(s, cfg.Index.BatchSize).Status(ctx, entries)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	out.Status("indexed: %d  loaded: %d", report.Stored, report.Loaded)
	out.Status("new: %d  stale: %d  unchanged: %d  missing: %d",
		report.New, report.Stale, report.Unchanged, report.Missing)

	printKeys := func(label string, keys []string) {
		if len(keys) == 0 {
			return
		}
		out.Status("%s:", label)
		for _, key := range keys {
			out.Status("  %s", key)
		}
	}
	printKeys("new entries", report.NewKeys)
	printKeys("stale entries", report.StaleKeys)
	printKeys("missing entries", report.MissingKeys)

	if report.New == 0 && report.Stale == 0 && report.Missing == 0 {
		out.Success("index is up to date")
	}
	return nil
}
