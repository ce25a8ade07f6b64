// Package store provides the persistent SQLite index for bibliographic
// entries. One row per entry in the entries table, plus a full-text shadow
// row in the entries_fts FTS5 table sharing the same rowid. Both rows always
// change together inside one transaction.
package store

import (
	"github.com/bibdex/bibdex/internal/bib"
)

// Row is the persisted projection of an entry.
type Row struct {
	// ID is the surrogate rowid, shared with the FTS shadow row.
	ID int64

	// Key is the citation key, unique across the store.
	Key string

	// EntryType is the BibTeX entry type.
	EntryType string

	// SourceFile is the .bib file the entry was loaded from.
	SourceFile string

	// Fingerprint is the content hash used for change detection.
	Fingerprint string

	// Fields is the full field map, round-tripped through JSON.
	Fields map[string]string
}

// NewRow builds a Row from a loaded entry.
func NewRow(e *bib.Entry) *Row {
	return &Row{
		Key:         e.Key,
		EntryType:   e.Type,
		SourceFile:  e.SourceFile,
		Fingerprint: e.Fingerprint(),
		Fields:      e.Fields,
	}
}

// Entry converts the row back to the entry model.
func (r *Row) Entry() *bib.Entry {
	return &bib.Entry{
		Key:        r.Key,
		Type:       r.EntryType,
		Fields:     r.Fields,
		SourceFile: r.SourceFile,
	}
}

// SortKey selects the result ordering for Search.
type SortKey string

const (
	// SortRelevance orders by BM25 score, best match first. Default.
	SortRelevance SortKey = "relevance"
	// SortYear orders by publication year, newest first.
	SortYear SortKey = "year"
	// SortAuthor orders by author, case-insensitive ascending.
	SortAuthor SortKey = "author"
	// SortAdded orders by insertion order.
	SortAdded SortKey = "added"
)

// SearchOptions bound and order a search.
type SearchOptions struct {
	// Limit is the maximum number of hits. Must be positive.
	Limit int
	// Offset skips the first N hits for pagination.
	Offset int
	// Sort selects the ordering. Empty means SortRelevance.
	Sort SortKey
}

// Hit is one ranked search result.
type Hit struct {
	Row *Row

	// Score is the negated BM25 rank, higher is better. Populated for
	// every sort order; year and author sorts use it as a tiebreaker.
	Score float64

	// Snippet is a short highlighted extract from the matched columns.
	Snippet string
}

// Stats describes the current store contents.
type Stats struct {
	TotalEntries int            `json:"total_entries"`
	ByType       map[string]int `json:"by_type"`
	ByFile       map[string]int `json:"by_file"`
	FTSEntries   int            `json:"fts_entries"`
	SizeBytes    int64          `json:"size_bytes"`
	SchemaVer    int            `json:"schema_version"`
}

// ftsColumns are the shadow-table columns, in schema order.
// The order matters: bm25() weights and snippet() column indexes use it.
var ftsColumns = []string{"key", "title", "author", "abstract", "keywords", "journal", "year"}

// IsSearchField reports whether name is a valid field qualifier for queries.
func IsSearchField(name string) bool {
	for _, c := range ftsColumns {
		if c == name {
			return true
		}
	}
	return false
}

// SearchFields returns the valid field qualifiers in schema order.
func SearchFields() []string {
	out := make([]string, len(ftsColumns))
	copy(out, ftsColumns)
	return out
}
