// Package config loads and validates bibdex configuration.
//
// Resolution order, later wins:
//  1. built-in defaults
//  2. ~/.config/bibdex/config.yaml (user defaults)
//  3. .bibdex.yaml in the project root (per-collection tuning)
//  4. BIBDEX_* environment variables
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	bterrors "github.com/bibdex/bibdex/internal/errors"
)

// ConfigFileName is the per-collection config file.
const ConfigFileName = ".bibdex.yaml"

// Config is the complete bibdex configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Paths   PathsConfig   `yaml:"paths" json:"paths"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PathsConfig locates the bibliography sources and the database.
type PathsConfig struct {
	// Bibliography lists .bib files or directories to index.
	Bibliography []string `yaml:"bibliography" json:"bibliography"`
	// Database is the index store location.
	Database string `yaml:"database" json:"database"`
}

// IndexConfig tunes the indexing pipeline.
type IndexConfig struct {
	// BatchSize is the number of entries committed per transaction.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// LockTimeout bounds the wait for the writer lock.
	LockTimeout time.Duration `yaml:"lock_timeout" json:"lock_timeout"`
}

// SearchConfig sets query defaults.
type SearchConfig struct {
	// DefaultLimit is the result limit when none is given.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
	// DefaultSort is the default sort key (relevance, year, author, added).
	DefaultSort string `yaml:"default_sort" json:"default_sort"`
}

// LoggingConfig controls file logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Bibliography: []string{"bibliography"},
			Database:     filepath.Join(".bibdex", "index.db"),
		},
		Index: IndexConfig{
			BatchSize:   500,
			LockTimeout: 5 * time.Second,
		},
		Search: SearchConfig{
			DefaultLimit: 20,
			DefaultSort:  "relevance",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the effective configuration for the given project root.
func Load(root string) (*Config, error) {
	cfg := Default()

	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, ".config", "bibdex", "config.yaml")
		if err := mergeFile(cfg, userPath); err != nil {
			return nil, err
		}
	}

	if err := mergeFile(cfg, filepath.Join(root, ConfigFileName)); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Relative paths resolve against the project root
	if !filepath.IsAbs(cfg.Paths.Database) {
		cfg.Paths.Database = filepath.Join(root, cfg.Paths.Database)
	}
	for i, p := range cfg.Paths.Bibliography {
		if !filepath.IsAbs(p) {
			cfg.Paths.Bibliography[i] = filepath.Join(root, p)
		}
	}

	return cfg, nil
}

// mergeFile overlays YAML from path onto cfg. Missing files are fine.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return bterrors.New(bterrors.ErrCodeConfigNotFound,
			fmt.Sprintf("cannot read config %s", path), err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return bterrors.New(bterrors.ErrCodeConfigInvalid,
			fmt.Sprintf("cannot parse config %s", path), err).
			WithSuggestion("check the YAML syntax")
	}
	return nil
}

// applyEnvOverrides applies BIBDEX_* variables, highest priority.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BIBDEX_DATABASE"); v != "" {
		cfg.Paths.Database = v
	}
	if v := os.Getenv("BIBDEX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.BatchSize = n
		}
	}
	if v := os.Getenv("BIBDEX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks bounds and enumerations.
func (c *Config) Validate() error {
	if c.Index.BatchSize < 1 || c.Index.BatchSize > 10000 {
		return bterrors.New(bterrors.ErrCodeConfigInvalid,
			fmt.Sprintf("index.batch_size %d out of range [1, 10000]", c.Index.BatchSize), nil)
	}
	if c.Index.LockTimeout < 0 {
		return bterrors.New(bterrors.ErrCodeConfigInvalid,
			"index.lock_timeout cannot be negative", nil)
	}
	if c.Search.DefaultLimit < 1 {
		return bterrors.New(bterrors.ErrCodeConfigInvalid,
			"search.default_limit must be positive", nil)
	}
	switch c.Search.DefaultSort {
	case "relevance", "year", "author", "added":
	default:
		return bterrors.New(bterrors.ErrCodeConfigInvalid,
			fmt.Sprintf("search.default_sort %q unknown", c.Search.DefaultSort), nil).
			WithSuggestion("use one of: relevance, year, author, added")
	}
	return nil
}

// FindProjectRoot walks up from start looking for a .bibdex.yaml or a
// .bibdex data directory. Falls back to start when none is found.
func FindProjectRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ConfigFileName)); err == nil {
			return dir, nil
		}
		if info, err := os.Stat(filepath.Join(dir, ".bibdex")); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			abs, _ := filepath.Abs(start)
			return abs, nil
		}
		dir = parent
	}
}

// Save writes the config as YAML to the project root.
func (c *Config) Save(root string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return bterrors.InternalError("cannot marshal config", err)
	}
	path := filepath.Join(root, ConfigFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return bterrors.New(bterrors.ErrCodeConfigInvalid,
			fmt.Sprintf("cannot write config %s", path), err)
	}
	return nil
}
