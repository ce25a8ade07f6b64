package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	bterrors "github.com/bibdex/bibdex/internal/errors"
)

// schemaVersion is the schema expected by this build. Open fails with a
// schema-mismatch error when the on-disk version differs, so callers can
// tell "rebuild needed" apart from "store broken".
const schemaVersion = 1

// DefaultLockTimeout bounds the wait for the cross-process writer lock.
const DefaultLockTimeout = 5 * time.Second

// Options configures Open.
type Options struct {
	// LockTimeout bounds writer lock acquisition.
	// Zero means DefaultLockTimeout.
	LockTimeout time.Duration
}

// Store is the persistent index over bibliographic entries.
// It supports unlimited concurrent readers and one writer at a time;
// WAL mode keeps readers unblocked while a write transaction is open.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	lock   *writerLock
	closed bool

	// writes counts committed write transactions through this handle.
	// PRAGMA data_version does not move for same-connection commits, so
	// in-process cache invalidation needs this counter alongside it.
	writes atomic.Int64
}

// Open opens or creates the store at path. The schema is created if absent
// and the stored schema version is checked against this build's.
// An empty path opens an in-memory store for testing.
func Open(path string, opts Options) (*Store, error) {
	timeout := opts.LockTimeout
	if timeout == 0 {
		timeout = DefaultLockTimeout
	}

	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, bterrors.StoreUnavailable(
				fmt.Sprintf("cannot create store directory %s", dir), err)
		}
		// busy_timeout is a second line of defense behind the flock
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, bterrors.StoreUnavailable(
			fmt.Sprintf("cannot open store at %s", path), err)
	}

	// Single connection: SQLite serializes writers anyway, and a shared
	// connection keeps the in-memory variant coherent.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN pragmas may be ignored by modernc.org/sqlite; set them explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, bterrors.StoreUnavailable("cannot configure store", err)
		}
	}

	s := &Store{
		db:   db,
		path: path,
	}
	if path != "" {
		s.lock = newWriterLock(path+".lock", timeout)
	}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// initSchema creates missing tables and verifies the schema version.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		description TEXT
	);

	CREATE TABLE IF NOT EXISTS entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT UNIQUE NOT NULL,
		entry_type TEXT NOT NULL,
		source_file TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_entries_type ON entries(entry_type);
	CREATE INDEX IF NOT EXISTS idx_entries_source ON entries(source_file);

	CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
		key, title, author, abstract, keywords, journal, year,
		tokenize='porter unicode61'
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		if strings.Contains(err.Error(), "fts5") {
			return bterrors.StoreUnavailable("SQLite FTS5 extension not available", err)
		}
		return bterrors.StoreUnavailable("cannot initialize store schema", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return bterrors.StoreUnavailable("cannot read schema version", err)
	}

	switch {
	case version == 0:
		_, err = s.db.Exec(
			`INSERT INTO schema_version (version, description) VALUES (?, ?)`,
			schemaVersion, "entries table with FTS5 shadow")
		if err != nil {
			return bterrors.StoreUnavailable("cannot record schema version", err)
		}
	case version != schemaVersion:
		return bterrors.SchemaMismatch(version, schemaVersion)
	}

	return nil
}

// withWriter runs fn inside one write transaction, holding the
// cross-process writer lock for the duration.
func (s *Store) withWriter(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return bterrors.StoreUnavailable("store is closed", nil)
	}

	if s.lock != nil {
		if err := s.lock.acquire(ctx); err != nil {
			return err
		}
		defer s.lock.release()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLiteErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapSQLiteErr("commit transaction", err)
	}
	s.writes.Add(1)
	return nil
}

// Upsert inserts or replaces the row matching its key, updating the FTS
// shadow row in the same transaction.
func (s *Store) Upsert(ctx context.Context, row *Row) error {
	return s.UpsertBatch(ctx, []*Row{row})
}

// UpsertBatch upserts a group of rows in one transaction.
// Either every row in the batch lands, or none do.
func (s *Store) UpsertBatch(ctx context.Context, rows []*Row) error {
	if len(rows) == 0 {
		return nil
	}
	return s.withWriter(ctx, func(tx *sql.Tx) error {
		for _, row := range rows {
			if err := upsertRow(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
}

// upsertRow writes one entry row and its shadow row inside tx.
func upsertRow(ctx context.Context, tx *sql.Tx, row *Row) error {
	data, err := json.Marshal(row.Fields)
	if err != nil {
		return bterrors.InternalError(
			fmt.Sprintf("cannot serialize fields for %s", row.Key), err)
	}

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM entries WHERE key = ?`, row.Key).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		res, err := tx.ExecContext(ctx,
			`INSERT INTO entries (key, entry_type, source_file, fingerprint, data)
			 VALUES (?, ?, ?, ?, ?)`,
			row.Key, row.EntryType, row.SourceFile, row.Fingerprint, string(data))
		if err != nil {
			return mapSQLiteErr("insert entry "+row.Key, err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return mapSQLiteErr("read entry id for "+row.Key, err)
		}
	case err != nil:
		return mapSQLiteErr("look up entry "+row.Key, err)
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE entries
			 SET entry_type = ?, source_file = ?, fingerprint = ?, data = ?,
			     updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			row.EntryType, row.SourceFile, row.Fingerprint, string(data), id)
		if err != nil {
			return mapSQLiteErr("update entry "+row.Key, err)
		}
		// FTS5 has no REPLACE; drop the old shadow row first
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM entries_fts WHERE rowid = ?`, id); err != nil {
			return mapSQLiteErr("clear shadow row for "+row.Key, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO entries_fts (rowid, key, title, author, abstract, keywords, journal, year)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, row.Key,
		row.Fields["title"], row.Fields["author"], row.Fields["abstract"],
		row.Fields["keywords"], row.Fields["journal"], row.Fields["year"])
	if err != nil {
		return mapSQLiteErr("insert shadow row for "+row.Key, err)
	}

	row.ID = id
	return nil
}

// Delete removes the row and its shadow row atomically.
// Absent keys are a no-op, not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.DeleteBatch(ctx, []string{key})
}

// DeleteBatch removes a group of keys in one transaction.
func (s *Store) DeleteBatch(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.withWriter(ctx, func(tx *sql.Tx) error {
		for _, key := range keys {
			var id int64
			err := tx.QueryRowContext(ctx, `SELECT id FROM entries WHERE key = ?`, key).Scan(&id)
			if err == sql.ErrNoRows {
				continue
			}
			if err != nil {
				return mapSQLiteErr("look up entry "+key, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM entries_fts WHERE rowid = ?`, id); err != nil {
				return mapSQLiteErr("delete shadow row for "+key, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id); err != nil {
				return mapSQLiteErr("delete entry "+key, err)
			}
		}
		return nil
	})
}

// Get returns the stored row for key, or (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, key string) (*Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, bterrors.StoreUnavailable("store is closed", nil)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, key, entry_type, source_file, fingerprint, data
		 FROM entries WHERE key = ?`, key)
	r, err := scanRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapSQLiteErr("get entry "+key, err)
	}
	return r, nil
}

// AllKeys returns every stored citation key in sorted order.
func (s *Store) AllKeys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, bterrors.StoreUnavailable("store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key FROM entries ORDER BY key`)
	if err != nil {
		return nil, mapSQLiteErr("list keys", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, mapSQLiteErr("scan key", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Fingerprints returns the stored fingerprint for every key.
// Used by the indexer to diff against freshly loaded entries.
func (s *Store) Fingerprints(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, bterrors.StoreUnavailable("store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, fingerprint FROM entries`)
	if err != nil {
		return nil, mapSQLiteErr("list fingerprints", err)
	}
	defer rows.Close()

	fps := make(map[string]string)
	for rows.Next() {
		var key, fp string
		if err := rows.Scan(&key, &fp); err != nil {
			return nil, mapSQLiteErr("scan fingerprint", err)
		}
		fps[key] = fp
	}
	return fps, rows.Err()
}

// KeysBySourceFile returns the stored keys for each of the given source
// files. Used to scope incremental deletion to reloaded files only.
func (s *Store) KeysBySourceFile(ctx context.Context, files []string) (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, bterrors.StoreUnavailable("store is closed", nil)
	}

	out := make(map[string][]string, len(files))
	for _, file := range files {
		rows, err := s.db.QueryContext(ctx,
			`SELECT key FROM entries WHERE source_file = ? ORDER BY key`, file)
		if err != nil {
			return nil, mapSQLiteErr("list keys for "+file, err)
		}
		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				rows.Close()
				return nil, mapSQLiteErr("scan key", err)
			}
			out[file] = append(out[file], key)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

// Locate returns rows whose file field matches the pattern.
// With glob true the pattern uses GLOB matching, otherwise substring match.
func (s *Store) Locate(ctx context.Context, pattern string, glob bool) ([]*Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, bterrors.StoreUnavailable("store is closed", nil)
	}

	var (
		query string
		arg   string
	)
	if glob {
		query = `SELECT id, key, entry_type, source_file, fingerprint, data
		         FROM entries WHERE json_extract(data, '$.file') GLOB ? ORDER BY key`
		arg = "*" + pattern + "*"
	} else {
		query = `SELECT id, key, entry_type, source_file, fingerprint, data
		         FROM entries WHERE json_extract(data, '$.file') LIKE ? ORDER BY key`
		arg = "%" + pattern + "%"
	}

	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, mapSQLiteErr("locate entries", err)
	}
	defer rows.Close()

	return collectRows(rows)
}

// Search executes an FTS5 match expression against the shadow table and
// returns ranked hits. The expression must already be in FTS5 syntax; query
// parsing and translation live in the query package.
func (s *Store) Search(ctx context.Context, expr string, opts SearchOptions) ([]*Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, bterrors.StoreUnavailable("store is closed", nil)
	}

	if opts.Limit <= 0 {
		return nil, bterrors.QueryInvalidLimit(opts.Limit)
	}

	orderBy := "rank"
	switch opts.Sort {
	case SortYear:
		orderBy = "CAST(json_extract(e.data, '$.year') AS INTEGER) DESC, rank"
	case SortAuthor:
		orderBy = "json_extract(e.data, '$.author') COLLATE NOCASE ASC, rank"
	case SortAdded:
		orderBy = "e.id ASC"
	}

	// Column weights follow ftsColumns order: key and title dominate,
	// abstract contributes least per token.
	query := fmt.Sprintf(`
		SELECT e.id, e.key, e.entry_type, e.source_file, e.fingerprint, e.data,
		       bm25(entries_fts, 2.0, 5.0, 4.0, 1.0, 3.0, 2.0, 2.0) AS rank,
		       snippet(entries_fts, -1, '[', ']', '…', 10) AS snip
		FROM entries_fts
		JOIN entries e ON e.id = entries_fts.rowid
		WHERE entries_fts MATCH ?
		ORDER BY %s
		LIMIT ? OFFSET ?`, orderBy)

	rows, err := s.db.QueryContext(ctx, query, expr, opts.Limit, opts.Offset)
	if err != nil {
		// The translation layer should never emit invalid FTS5 syntax;
		// surface it as a query error rather than a store failure if it does.
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			return nil, bterrors.QuerySyntax("full-text expression rejected by engine", expr, 0)
		}
		return nil, mapSQLiteErr("search", err)
	}
	defer rows.Close()

	var hits []*Hit
	for rows.Next() {
		var (
			r     Row
			data  string
			rank  float64
			snip  string
		)
		if err := rows.Scan(&r.ID, &r.Key, &r.EntryType, &r.SourceFile, &r.Fingerprint,
			&data, &rank, &snip); err != nil {
			return nil, mapSQLiteErr("scan hit", err)
		}
		if err := json.Unmarshal([]byte(data), &r.Fields); err != nil {
			return nil, bterrors.InternalError("cannot decode fields for "+r.Key, err)
		}
		// FTS5 bm25() is negative, lower is better; negate so higher wins.
		hits = append(hits, &Hit{Row: &r, Score: -rank, Snippet: snip})
	}
	return hits, rows.Err()
}

// Stats returns row counts, per-type and per-file breakdowns, and the
// approximate on-disk size.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, bterrors.StoreUnavailable("store is closed", nil)
	}

	st := &Stats{
		ByType:    make(map[string]int),
		ByFile:    make(map[string]int),
		SchemaVer: schemaVersion,
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&st.TotalEntries); err != nil {
		return nil, mapSQLiteErr("count entries", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries_fts`).Scan(&st.FTSEntries); err != nil {
		return nil, mapSQLiteErr("count shadow rows", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_type, COUNT(*) FROM entries GROUP BY entry_type`)
	if err != nil {
		return nil, mapSQLiteErr("count by type", err)
	}
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			rows.Close()
			return nil, mapSQLiteErr("scan type count", err)
		}
		st.ByType[typ] = n
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT source_file, COUNT(*) FROM entries GROUP BY source_file`)
	if err != nil {
		return nil, mapSQLiteErr("count by file", err)
	}
	for rows.Next() {
		var file string
		var n int
		if err := rows.Scan(&file, &n); err != nil {
			rows.Close()
			return nil, mapSQLiteErr("scan file count", err)
		}
		st.ByFile[file] = n
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if s.path != "" {
		if info, err := os.Stat(s.path); err == nil {
			st.SizeBytes = info.Size()
		}
	}

	return st, nil
}

// CheckConsistency verifies the entries table and its FTS shadow table have
// not drifted apart. A mismatch is corruption: it is reported, never
// auto-healed, since healing could mask data loss.
func (s *Store) CheckConsistency(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return bterrors.StoreUnavailable("store is closed", nil)
	}

	var entries, shadow int
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM entries), (SELECT COUNT(*) FROM entries_fts)`).
		Scan(&entries, &shadow)
	if err != nil {
		return mapSQLiteErr("consistency check", err)
	}
	if entries != shadow {
		return bterrors.IndexCorruption(fmt.Sprintf(
			"entries table has %d rows but full-text table has %d", entries, shadow))
	}
	return nil
}

// RebuildFTS drops and repopulates the shadow table from stored entries.
// The explicit recovery path for detected corruption.
func (s *Store) RebuildFTS(ctx context.Context) error {
	return s.withWriter(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries_fts`); err != nil {
			return mapSQLiteErr("clear shadow table", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO entries_fts (rowid, key, title, author, abstract, keywords, journal, year)
			SELECT id, key,
			       COALESCE(json_extract(data, '$.title'), ''),
			       COALESCE(json_extract(data, '$.author'), ''),
			       COALESCE(json_extract(data, '$.abstract'), ''),
			       COALESCE(json_extract(data, '$.keywords'), ''),
			       COALESCE(json_extract(data, '$.journal'), ''),
			       COALESCE(json_extract(data, '$.year'), '')
			FROM entries`)
		if err != nil {
			return mapSQLiteErr("rebuild shadow table", err)
		}
		return nil
	})
}

// Optimize merges the FTS index segments after bulk indexing.
func (s *Store) Optimize(ctx context.Context) error {
	return s.withWriter(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entries_fts(entries_fts) VALUES('optimize')`); err != nil {
			return mapSQLiteErr("optimize full-text index", err)
		}
		return nil
	})
}

// DataVersion returns SQLite's data_version counter, which changes when
// the database is modified by another connection. Commits on this handle's
// own connection do not move it; pair with WriteGeneration to key
// read-side caches.
func (s *Store) DataVersion(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, bterrors.StoreUnavailable("store is closed", nil)
	}

	var v int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&v); err != nil {
		return 0, mapSQLiteErr("read data version", err)
	}
	return v, nil
}

// WriteGeneration returns the number of write transactions committed
// through this handle. It covers the same-connection writes that
// DataVersion cannot see.
func (s *Store) WriteGeneration() int64 {
	return s.writes.Load()
}

// Close checkpoints the WAL and closes the database. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.db != nil {
		if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			slog.Debug("wal checkpoint on close failed", slog.String("error", err.Error()))
		}
		return s.db.Close()
	}
	return nil
}

// Path returns the on-disk location of the store.
func (s *Store) Path() string {
	return s.path
}

// scanRow reads one entries row from a single-row query.
func scanRow(row *sql.Row) (*Row, error) {
	var (
		r    Row
		data string
	)
	if err := row.Scan(&r.ID, &r.Key, &r.EntryType, &r.SourceFile, &r.Fingerprint, &data); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &r.Fields); err != nil {
		return nil, bterrors.InternalError("cannot decode fields for "+r.Key, err)
	}
	return &r, nil
}

// collectRows reads all entries rows from a multi-row query.
func collectRows(rows *sql.Rows) ([]*Row, error) {
	var out []*Row
	for rows.Next() {
		var (
			r    Row
			data string
		)
		if err := rows.Scan(&r.ID, &r.Key, &r.EntryType, &r.SourceFile, &r.Fingerprint, &data); err != nil {
			return nil, mapSQLiteErr("scan entry", err)
		}
		if err := json.Unmarshal([]byte(data), &r.Fields); err != nil {
			return nil, bterrors.InternalError("cannot decode fields for "+r.Key, err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// mapSQLiteErr wraps driver errors, promoting lock contention to StoreBusy.
func mapSQLiteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") {
		return bterrors.StoreBusy("store is locked by another writer: "+op, err)
	}
	return bterrors.StoreUnavailable(op+" failed", err)
}
