// Package knowledge persists per-database notes with full-text search. The
// store is a single SQLite file with an FTS5 index over entry name,
// description, and SQL, kept in sync by triggers.
package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS knowledge (
    id TEXT PRIMARY KEY,
    database_name TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL,
    sql TEXT,
    source TEXT,
    created_at REAL NOT NULL,
    updated_at REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_knowledge_database_name
    ON knowledge(database_name);

CREATE INDEX IF NOT EXISTS idx_knowledge_database_updated
    ON knowledge(database_name, updated_at DESC);

CREATE VIRTUAL TABLE IF NOT EXISTS knowledge_fts
USING fts5(
    name,
    description,
    sql,
    content='knowledge',
    content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS knowledge_ai AFTER INSERT ON knowledge BEGIN
    INSERT INTO knowledge_fts(rowid, name, description, sql)
    VALUES (new.rowid, new.name, new.description, COALESCE(new.sql, ''));
END;

CREATE TRIGGER IF NOT EXISTS knowledge_ad AFTER DELETE ON knowledge BEGIN
    INSERT INTO knowledge_fts(knowledge_fts, rowid, name, description, sql)
    VALUES ('delete', old.rowid, old.name, old.description, COALESCE(old.sql, ''));
END;

CREATE TRIGGER IF NOT EXISTS knowledge_au AFTER UPDATE ON knowledge BEGIN
    INSERT INTO knowledge_fts(knowledge_fts, rowid, name, description, sql)
    VALUES ('delete', old.rowid, old.name, old.description, COALESCE(old.sql, ''));
    INSERT INTO knowledge_fts(rowid, name, description, sql)
    VALUES (new.rowid, new.name, new.description, COALESCE(new.sql, ''));
END;
`

// Entry is one knowledge item for a database. SQL and Source are optional;
// empty means absent. Timestamps are unix seconds.
type Entry struct {
	ID           string  `json:"id"`
	DatabaseName string  `json:"database_name"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	SQL          string  `json:"sql,omitempty"`
	Source       string  `json:"source,omitempty"`
	CreatedAt    float64 `json:"created_at"`
	UpdatedAt    float64 `json:"updated_at"`
}

// Store is the SQLite-backed knowledge store.
type Store struct {
	path string
	db   *sql.DB
}

// DefaultPath is the per-user knowledge database location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "sqlsaber", "knowledge.db"), nil
}

// NewStore opens (creating if needed) the knowledge database at path and
// ensures the schema and FTS index exist.
func NewStore(path string) (*Store, error) {
	dirExisted := true
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		dirExisted = false
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create knowledge dir: %w", err)
	}
	if !dirExisted {
		securePermissions(dir, true)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open knowledge db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply knowledge schema: %w", err)
	}
	if err := maybeRebuildFTS(db); err != nil {
		db.Close()
		return nil, err
	}
	securePermissions(path, false)
	return &Store{path: path, db: db}, nil
}

// maybeRebuildFTS repopulates the index for legacy databases that carry
// knowledge rows but no index rows.
func maybeRebuildFTS(db *sql.DB) error {
	var hasRows bool
	if err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM knowledge LIMIT 1)").Scan(&hasRows); err != nil {
		return fmt.Errorf("probe knowledge table: %w", err)
	}
	if !hasRows {
		return nil
	}
	var indexed bool
	err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM knowledge_fts_docsize LIMIT 1)").Scan(&indexed)
	if err == nil && indexed {
		return nil
	}
	// Either the shadow table probe failed (unexpected FTS schema shape) or
	// the index is empty; a one-time rebuild covers both.
	if _, err := db.Exec("INSERT INTO knowledge_fts(knowledge_fts) VALUES ('rebuild')"); err != nil {
		return fmt.Errorf("rebuild fts index: %w", err)
	}
	return nil
}

func securePermissions(path string, isDir bool) {
	if runtime.GOOS == "windows" {
		return
	}
	mode := os.FileMode(0o600)
	if isDir {
		mode = 0o700
	}
	os.Chmod(path, mode)
}

// Close releases the underlying pool.
func (s *Store) Close() error { return s.db.Close() }

// Add inserts a new entry.
func (s *Store) Add(ctx context.Context, e *Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge (id, database_name, name, description, sql, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.DatabaseName, e.Name, e.Description,
		nullable(e.SQL), nullable(e.Source), e.CreatedAt, e.UpdatedAt)
	return err
}

// Get returns the entry with the given id for a database, or nil.
func (s *Store) Get(ctx context.Context, database, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, database_name, name, description, sql, source, created_at, updated_at
		FROM knowledge
		WHERE database_name = ? AND id = ?`, database, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// Update rewrites an existing entry and reports whether a row changed.
func (s *Store) Update(ctx context.Context, e *Entry) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE knowledge
		SET name = ?, description = ?, sql = ?, source = ?, updated_at = ?
		WHERE database_name = ? AND id = ?`,
		e.Name, e.Description, nullable(e.SQL), nullable(e.Source), e.UpdatedAt,
		e.DatabaseName, e.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Remove deletes an entry and reports whether it existed.
func (s *Store) Remove(ctx context.Context, database, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM knowledge WHERE database_name = ? AND id = ?", database, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Clear deletes all entries for a database and returns the count removed.
func (s *Store) Clear(ctx context.Context, database string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM knowledge WHERE database_name = ?", database)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ListAll returns every entry for a database, most recently updated first.
func (s *Store) ListAll(ctx context.Context, database string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, database_name, name, description, sql, source, created_at, updated_at
		FROM knowledge
		WHERE database_name = ?
		ORDER BY updated_at DESC`, database)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Search runs an FTS5 MATCH scoped to the database, ranked by BM25 then
// recency. Free text becomes OR-joined terms; queries that already carry FTS
// operators pass through unchanged. When an operator-bearing query fails to
// parse or match, a quoted-token fallback runs once.
func (s *Store) Search(ctx context.Context, database, query string, limit int) ([]Entry, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	ftsQuery := prepareFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}
	if limit < 1 {
		limit = 1
	}

	entries, err := s.runFTSQuery(ctx, database, ftsQuery, limit)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		return entries, nil
	}

	fallback := quotedTokenQuery(query)
	if fallback == "" || fallback == ftsQuery {
		return nil, nil
	}
	return s.runFTSQuery(ctx, database, fallback, limit)
}

func (s *Store) runFTSQuery(ctx context.Context, database, query string, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT k.id, k.database_name, k.name, k.description, k.sql, k.source,
		       k.created_at, k.updated_at
		FROM knowledge_fts
		JOIN knowledge AS k ON k.rowid = knowledge_fts.rowid
		WHERE knowledge_fts MATCH ? AND k.database_name = ?
		ORDER BY bm25(knowledge_fts), k.updated_at DESC
		LIMIT ?`, query, database, limit)
	if err != nil {
		// Unsupported MATCH syntax surfaces here; treat as no results so
		// the caller can fall back. Anything else (missing index, corrupt
		// file) is a real failure and propagates.
		if isFTSQueryErr(err) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// isFTSQueryErr reports whether err comes from the MATCH expression rather
// than the store itself.
func isFTSQueryErr(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"fts5: syntax error",
		"malformed match",
		"unknown special query",
		"no such column", // column filters like missing:token in user input
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// prepareFTSQuery converts free text into OR-mode terms. Input that already
// uses FTS operators, quotes, or grouping passes through untouched.
func prepareFTSQuery(raw string) string {
	stripped := strings.TrimSpace(raw)
	if stripped == "" {
		return ""
	}
	upper := strings.ToUpper(stripped)
	for _, op := range []string{" OR ", " AND ", " NOT ", " NEAR ", `"`} {
		if strings.Contains(upper, op) {
			return stripped
		}
	}
	if strings.ContainsAny(stripped, "()") {
		return stripped
	}
	tokens := strings.Fields(stripped)
	return strings.Join(tokens, " OR ")
}

// quotedTokenQuery quotes each token so FTS-special characters in user input
// stop being operators.
func quotedTokenQuery(raw string) string {
	var quoted []string
	for _, token := range strings.Fields(raw) {
		token = strings.ReplaceAll(token, `"`, "")
		if token != "" {
			quoted = append(quoted, `"`+token+`"`)
		}
	}
	return strings.Join(quoted, " OR ")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (*Entry, error) {
	var e Entry
	var sqlText, source sql.NullString
	if err := r.Scan(&e.ID, &e.DatabaseName, &e.Name, &e.Description,
		&sqlText, &source, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.SQL = sqlText.String
	e.Source = source.String
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
