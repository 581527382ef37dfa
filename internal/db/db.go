// Package db provides a uniform, read-only database gateway across
// PostgreSQL, MySQL, SQLite, and CSV-backed embedded SQL.
//
// Every query runs inside a transaction that is always rolled back, success
// or failure. That rollback is the sole write-safety mechanism: even when a
// caller is allowed to issue non-SELECT statements, nothing ever commits.
package db

import (
	"context"
	"encoding/json"
	"fmt"
)

// Dialect identifies the SQL dialect served by a gateway.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
	DialectCSV      Dialect = "csv"
)

// Gateway is the uniform connection abstraction. Implementations differ only
// in driver and dialect quirks.
type Gateway interface {
	// Execute runs one statement inside a transaction that is rolled back
	// on exit. Each returned row preserves the result set's column order.
	Execute(ctx context.Context, query string, args ...any) ([]Row, error)

	// Dialect reports the SQL dialect for introspection dispatch.
	Dialect() Dialect

	// DisplayName is the human-readable engine name used in prompts
	// (e.g. "PostgreSQL").
	DisplayName() string

	// Close releases the connection pool.
	Close() error
}

// Row is an ordered column-name-to-value mapping. It marshals as a JSON
// object with keys in result-set column order.
type Row struct {
	Columns []string
	Values  []any
}

// Get returns the value for a column name.
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map converts the row to a plain map. Column order is lost.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.Columns))
	for i, c := range r.Columns {
		m[c] = r.Values[i]
	}
	return m
}

// MarshalJSON writes the row as an object with keys in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, c := range r.Columns {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(normalizeValue(r.Values[i]))
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c, err)
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}

// RowMaps converts a result set to plain maps for event payloads.
func RowMaps(rows []Row) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		m := make(map[string]any, len(r.Columns))
		for j, c := range r.Columns {
			m[c] = normalizeValue(r.Values[j])
		}
		out[i] = m
	}
	return out
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
