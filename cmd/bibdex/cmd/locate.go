package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/bibdex/bibdex/internal/output"
)

// locateOptions holds CLI flags for locate.
type locateOptions struct {
	glob   bool
	asJSON bool
}

func newLocateCmd() *cobra.Command {
	var opts locateOptions

	cmd := &cobra.Command{
		Use:   "locate <pattern>",
		Short: "Find entries by their attached file path",
		Long: `Find indexed entries whose file field matches the pattern.

By default the pattern is a case-insensitive substring match. With
--glob it is matched as a glob against the full path.

Examples:
  bibdex locate feynman1965.pdf
  bibdex locate --glob '*/quantum/*.pdf'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocate(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.glob, "glob", false, "Treat the pattern as a glob")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Output as JSON")

	return cmd
}

func runLocate(ctx context.Context, cmd *cobra.Command, pattern string, opts locateOptions) error {
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

	rows, err := s.Locate(ctx, pattern, opts.glob)
	if err != nil {
		return err
	}

	if opts.asJSON {
		type located struct {
			Key  string `json:"key"`
			File string `json:"file"`
		}
		matches := make([]located, 0, len(rows))
		for _, r := range rows {
			matches = append(matches, located{Key: r.Key, File: r.Entry().FilePath()})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	}

	if len(rows) == 0 {
		out.Status("no matches")
		return nil
	}
	for _, r := range rows {
		out.Status("%s\t%s", r.Key, r.Entry().FilePath())
	}
	return nil
}
