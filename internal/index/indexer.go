// Package index reconciles the store with entries loaded from .bib files.
package index

import (
	"context"
	"fmt"
	"sort"

	"github.com/bibdex/bibdex/internal/bib"
	bterrors "github.com/bibdex/bibdex/internal/errors"
	"github.com/bibdex/bibdex/internal/store"
)

// DefaultBatchSize is the number of entries committed per transaction.
// Bounded batches keep readers unblocked during bulk indexing and bound
// the work lost on cancellation.
const DefaultBatchSize = 500

// Progress reports running counts so a caller can render progress.
// done counts entries written so far, total the entries in this pass.
type Progress func(done, total int)

// Indexer drives bulk and incremental population of the store.
type Indexer struct {
	store     *store.Store
	batchSize int
}

// New creates an Indexer. batchSize <= 0 selects DefaultBatchSize.
func New(s *store.Store, batchSize int) *Indexer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Indexer{store: s, batchSize: batchSize}
}

// BuildResult summarizes a full rebuild.
type BuildResult struct {
	Indexed int `json:"indexed"`
	Deleted int `json:"deleted"`
	Batches int `json:"batches"`
}

// Build performs a full rebuild: every entry is upserted in bounded
// batches, then stored keys absent from the load are removed. Running it
// twice with the same input produces an identical store. Cancellation is
// honored at batch boundaries; committed batches stay committed.
func (ix *Indexer) Build(ctx context.Context, entries []*bib.Entry, progress Progress) (*BuildResult, error) {
	if err := checkDuplicates(entries); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = func(int, int) {}
	}

	total := len(entries)
	result := &BuildResult{}
	progress(0, total)

	target := make(map[string]struct{}, total)
	for _, e := range entries {
		target[e.Key] = struct{}{}
	}

	for start := 0; start < total; start += ix.batchSize {
		if err := ctx.Err(); err != nil {
			return result, buildCancelled(result.Batches, err)
		}
		end := min(start+ix.batchSize, total)
		rows := make([]*store.Row, 0, end-start)
		for _, e := range entries[start:end] {
			rows = append(rows, store.NewRow(e))
		}
		if err := ix.store.UpsertBatch(ctx, rows); err != nil {
			return result, withBatchCount(err, result.Batches)
		}
		result.Batches++
		result.Indexed = end
		progress(end, total)
	}

	// Orphan cleanup: anything stored but not in the target set goes.
	stored, err := ix.store.AllKeys(ctx)
	if err != nil {
		return result, withBatchCount(err, result.Batches)
	}
	var orphans []string
	for _, key := range stored {
		if _, ok := target[key]; !ok {
			orphans = append(orphans, key)
		}
	}
	for start := 0; start < len(orphans); start += ix.batchSize {
		if err := ctx.Err(); err != nil {
			return result, buildCancelled(result.Batches, err)
		}
		end := min(start+ix.batchSize, len(orphans))
		if err := ix.store.DeleteBatch(ctx, orphans[start:end]); err != nil {
			return result, withBatchCount(err, result.Batches)
		}
		result.Batches++
		result.Deleted = end
	}

	if err := ix.store.Optimize(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// UpdateOptions controls incremental updates.
type UpdateOptions struct {
	// Prune deletes entries that disappeared from reloaded files.
	// Without it, such entries are only reported as candidates.
	Prune bool
}

// UpdateResult summarizes an incremental update.
type UpdateResult struct {
	Added     int `json:"added"`
	Changed   int `json:"changed"`
	Unchanged int `json:"unchanged"`
	Deleted   int `json:"deleted"`

	// DeletionCandidates are stored keys whose source file was reloaded
	// but which were absent from the load. Sorted.
	DeletionCandidates []string `json:"deletion_candidates,omitempty"`
}

// Update reconciles the store with a (possibly partial) load. Entries whose
// fingerprint is unchanged are skipped without a write. Deletion scope
// matches load scope: only entries belonging to files present in this load
// can become deletion candidates, so a partial load never touches entries
// from other files.
func (ix *Indexer) Update(ctx context.Context, entries []*bib.Entry, opts UpdateOptions, progress Progress) (*UpdateResult, error) {
	if err := checkDuplicates(entries); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = func(int, int) {}
	}

	stored, err := ix.store.Fingerprints(ctx)
	if err != nil {
		return nil, err
	}

	result := &UpdateResult{}
	var dirty []*bib.Entry
	loaded := make(map[string]struct{}, len(entries))
	filesSeen := make(map[string]struct{})
	for _, e := range entries {
		loaded[e.Key] = struct{}{}
		filesSeen[e.SourceFile] = struct{}{}
		switch fp, ok := stored[e.Key]; {
		case !ok:
			result.Added++
			dirty = append(dirty, e)
		case fp != e.Fingerprint():
			result.Changed++
			dirty = append(dirty, e)
		default:
			result.Unchanged++
		}
	}

	total := len(dirty)
	progress(0, total)
	batches := 0
	for start := 0; start < total; start += ix.batchSize {
		if err := ctx.Err(); err != nil {
			return result, buildCancelled(batches, err)
		}
		end := min(start+ix.batchSize, total)
		rows := make([]*store.Row, 0, end-start)
		for _, e := range dirty[start:end] {
			rows = append(rows, store.NewRow(e))
		}
		if err := ix.store.UpsertBatch(ctx, rows); err != nil {
			return result, withBatchCount(err, batches)
		}
		batches++
		progress(end, total)
	}

	// Deletion candidates: keys stored under a reloaded file but missing
	// from the load. Files not part of this load are never inspected.
	files := make([]string, 0, len(filesSeen))
	for f := range filesSeen {
		files = append(files, f)
	}
	byFile, err := ix.store.KeysBySourceFile(ctx, files)
	if err != nil {
		return result, err
	}
	for _, keys := range byFile {
		for _, key := range keys {
			if _, ok := loaded[key]; !ok {
				result.DeletionCandidates = append(result.DeletionCandidates, key)
			}
		}
	}
	sort.Strings(result.DeletionCandidates)

	if opts.Prune && len(result.DeletionCandidates) > 0 {
		candidates := result.DeletionCandidates
		for start := 0; start < len(candidates); start += ix.batchSize {
			if err := ctx.Err(); err != nil {
				return result, buildCancelled(batches, err)
			}
			end := min(start+ix.batchSize, len(candidates))
			if err := ix.store.DeleteBatch(ctx, candidates[start:end]); err != nil {
				return result, withBatchCount(err, batches)
			}
			batches++
			result.Deleted = end
		}
		result.DeletionCandidates = nil
	}

	return result, nil
}

// StatusReport is a dry-run diff between the store and a fresh load.
type StatusReport struct {
	Stored    int `json:"stored"`
	Loaded    int `json:"loaded"`
	New       int `json:"new"`
	Stale     int `json:"stale"`
	Unchanged int `json:"unchanged"`
	Missing   int `json:"missing"`

	NewKeys     []string `json:"new_keys,omitempty"`
	StaleKeys   []string `json:"stale_keys,omitempty"`
	MissingKeys []string `json:"missing_keys,omitempty"`
}

// Status reports how the store differs from freshly parsed entries without
// writing anything.
func (ix *Indexer) Status(ctx context.Context, entries []*bib.Entry) (*StatusReport, error) {
	if err := checkDuplicates(entries); err != nil {
		return nil, err
	}

	stored, err := ix.store.Fingerprints(ctx)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{Stored: len(stored), Loaded: len(entries)}
	loaded := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		loaded[e.Key] = struct{}{}
		switch fp, ok := stored[e.Key]; {
		case !ok:
			report.New++
			report.NewKeys = append(report.NewKeys, e.Key)
		case fp != e.Fingerprint():
			report.Stale++
			report.StaleKeys = append(report.StaleKeys, e.Key)
		default:
			report.Unchanged++
		}
	}
	for key := range stored {
		if _, ok := loaded[key]; !ok {
			report.Missing++
			report.MissingKeys = append(report.MissingKeys, key)
		}
	}
	sort.Strings(report.NewKeys)
	sort.Strings(report.StaleKeys)
	sort.Strings(report.MissingKeys)
	return report, nil
}

// checkDuplicates fails fast when one load contains the same key twice.
// Indexing either copy would silently drop the other's data.
func checkDuplicates(entries []*bib.Entry) error {
	seen := make(map[string]string, len(entries))
	for _, e := range entries {
		if first, ok := seen[e.Key]; ok {
			return bterrors.DuplicateKeyInBatch(e.Key, first, e.SourceFile)
		}
		seen[e.Key] = e.SourceFile
	}
	return nil
}

// buildCancelled reports cooperative cancellation at a batch boundary.
func buildCancelled(batches int, cause error) error {
	return bterrors.New(bterrors.ErrCodeBuildCancelled,
		fmt.Sprintf("indexing cancelled after %d committed batches", batches), cause).
		WithDetail("batches_completed", fmt.Sprintf("%d", batches)).
		WithSuggestion("rerun the command to resume; committed batches are kept")
}

// withBatchCount annotates a store error with resume information.
func withBatchCount(err error, batches int) error {
	if be, ok := err.(*bterrors.BibError); ok {
		return be.WithDetail("batches_completed", fmt.Sprintf("%d", batches))
	}
	return err
}
