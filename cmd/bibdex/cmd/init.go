package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bibdex/bibdex/internal/config"
	"github.com/bibdex/bibdex/internal/output"
)

func newInitCmd() *cobra.Command {
	var bibliography []string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a project configuration in the current directory",
		Long: `Write a default ` + config.ConfigFileName + ` to the current directory.

Examples:
  bibdex init
  bibdex init --bibliography papers/ --bibliography refs.bib`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, bibliography)
		},
	}

	cmd.Flags().StringSliceVar(&bibliography, "bibliography", nil, "Bibliography file or directory (repeatable)")

	return cmd
}

func runInit(cmd *cobra.Command, bibliography []string) error {
	out := output.NewWriter(cmd.OutOrStdout())

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	path := filepath.Join(cwd, config.ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	cfg := config.Default()
	if len(bibliography) > 0 {
		cfg.Paths.Bibliography = bibliography
	}
	if err := cfg.Save(cwd); err != nil {
		return err
	}

	out.Success("created %s", path)
	out.Status("edit paths.bibliography, then run 'bibdex index'")
	return nil
}
