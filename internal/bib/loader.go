package bib

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nickng/bibtex"

	bterrors "github.com/bibdex/bibdex/internal/errors"
)

// Loader reads .bib files into Entry values.
// Parsing is delegated to the bibtex package; the loader only normalizes
// the parsed records into the Entry model.
type Loader struct{}

// NewLoader creates a new Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadFile parses a single .bib file into entries.
// Field values are normalized: surrounding braces stripped, internal
// whitespace collapsed.
func (l *Loader) LoadFile(path string) ([]*Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, bterrors.New(bterrors.ErrCodeSourceUnreadable,
			fmt.Sprintf("cannot open bibliography file %s", path), err)
	}
	defer f.Close()

	parsed, err := bibtex.Parse(f)
	if err != nil {
		return nil, bterrors.New(bterrors.ErrCodeSourceUnreadable,
			fmt.Sprintf("cannot parse bibliography file %s", path), err).
			WithSuggestion("check the file for BibTeX syntax errors")
	}

	entries := make([]*Entry, 0, len(parsed.Entries))
	for _, be := range parsed.Entries {
		fields := make(map[string]string, len(be.Fields))
		for name, value := range be.Fields {
			fields[strings.ToLower(name)] = normalizeValue(value.String())
		}
		entries = append(entries, &Entry{
			Key:        be.CiteName,
			Type:       strings.ToLower(be.Type),
			Fields:     fields,
			SourceFile: path,
		})
	}
	return entries, nil
}

// Load parses every .bib file under the given paths.
// Each path may be a .bib file or a directory, which is walked recursively.
// The returned entries are ordered by source file, then by position in file.
func (l *Loader) Load(paths []string) ([]*Entry, error) {
	files, err := l.Discover(paths)
	if err != nil {
		return nil, err
	}

	var entries []*Entry
	for _, file := range files {
		loaded, err := l.LoadFile(file)
		if err != nil {
			return nil, err
		}
		entries = append(entries, loaded...)
	}
	return entries, nil
}

// Discover resolves paths to the sorted list of .bib files they contain.
func (l *Loader) Discover(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, bterrors.New(bterrors.ErrCodeSourceUnreadable,
				fmt.Sprintf("bibliography path %s not accessible", path), err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".bib") {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, bterrors.New(bterrors.ErrCodeSourceUnreadable,
				fmt.Sprintf("cannot walk bibliography directory %s", path), err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// normalizeValue strips surrounding braces and collapses runs of
// whitespace so that formatting-only edits do not change the value.
func normalizeValue(v string) string {
	v = strings.TrimSpace(v)
	for strings.HasPrefix(v, "{") && strings.HasSuffix(v, "}") {
		v = strings.TrimSpace(v[1 : len(v)-1])
	}
	return strings.Join(strings.Fields(v), " ")
}
