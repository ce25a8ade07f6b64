// Package bib provides the bibliographic entry model and .bib file loading.
package bib

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Entry represents one bibliographic record loaded from a .bib file.
type Entry struct {
	// Key is the citation key, unique across the indexed collection.
	Key string

	// Type is the BibTeX entry type (article, book, phdthesis, ...).
	Type string

	// Fields maps field names to values (author, title, year, ...).
	Fields map[string]string

	// SourceFile is the path of the .bib file the entry was loaded from.
	SourceFile string
}

// FilePath extracts the PDF path from the entry's file field, if present.
// Handles the common BibTeX file formats: {:path:pdf}, path:pdf, and bare paths.
func (e *Entry) FilePath() string {
	raw, ok := e.Fields["file"]
	if !ok {
		return ""
	}
	f := strings.Trim(raw, "{}")
	f = strings.TrimSuffix(f, ":pdf")
	f = strings.TrimPrefix(f, ":")
	return f
}

// Fingerprint returns a deterministic hash of the entry's type and field map.
// The hash is order-independent: reordering fields or reserializing with
// different whitespace never changes it, but any value change does.
func (e *Entry) Fingerprint() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	h.Write([]byte(e.Type))
	h.Write([]byte{0})
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(e.Fields[name]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	fields := make(map[string]string, len(e.Fields))
	for k, v := range e.Fields {
		fields[k] = v
	}
	return &Entry{
		Key:        e.Key,
		Type:       e.Type,
		Fields:     fields,
		SourceFile: e.SourceFile,
	}
}

// String renders the entry as a BibTeX record.
// Fields are sorted for stable output.
func (e *Entry) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "@%s{%s,\n", e.Type, e.Key)

	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		fmt.Fprintf(&sb, "  %s = {%s}", name, e.Fields[name])
		if i < len(names)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}")
	return sb.String()
}
