package cmd

import (
	"os"

	"github.com/bibdex/bibdex/internal/bib"
	"github.com/bibdex/bibdex/internal/config"
	"github.com/bibdex/bibdex/internal/store"
)

// loadProject resolves the project root and its configuration. Outside a
// project, the current directory with default configuration is used so
// read-only commands still work.
func loadProject() (string, *config.Config, error) {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, err = os.Getwd()
		if err != nil {
			return "", nil, err
		}
	}

	cfg, err := config.Load(root)
	if err != nil {
		return "", nil, err
	}
	return root, cfg, nil
}

// openStore opens the configured index store.
func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.Paths.Database, store.Options{
		LockTimeout: cfg.Index.LockTimeout,
	})
}

// loadEntries parses bibliography entries. Explicit args override the
// configured bibliography paths.
func loadEntries(cfg *config.Config, args []string) ([]*bib.Entry, error) {
	paths := args
	if len(paths) == 0 {
		paths = cfg.Paths.Bibliography
	}
	return bib.NewLoader().Load(paths)
}
