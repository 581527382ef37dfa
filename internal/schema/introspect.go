package schema

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sqlsaber/sqlsaber/internal/db"
)

// introspector is the dialect-specific metadata source. Implementations fetch
// tables first, then columns, primary keys, and foreign keys restricted to
// that table set so payloads stay bounded.
type introspector interface {
	tables(ctx context.Context, gw db.Gateway, pattern string) ([]tableRow, error)
	columns(ctx context.Context, gw db.Gateway, tables []tableRow) ([]columnRow, error)
	primaryKeys(ctx context.Context, gw db.Gateway, tables []tableRow) ([]keyRow, error)
	foreignKeys(ctx context.Context, gw db.Gateway, tables []tableRow) ([]fkRow, error)
	listTables(ctx context.Context, gw db.Gateway) ([]tableRow, error)
}

func introspectorFor(d db.Dialect) (introspector, error) {
	switch d {
	case db.DialectPostgres:
		return postgresIntrospector{}, nil
	case db.DialectMySQL:
		return mysqlIntrospector{}, nil
	case db.DialectSQLite, db.DialectCSV:
		return sqliteIntrospector{}, nil
	}
	return nil, fmt.Errorf("no introspector for dialect %q", d)
}

// splitPattern interprets a filter pattern. "schema.table" matches both parts
// with LIKE; a bare "table" matches the table name or the schema-qualified
// composite.
func splitPattern(pattern string) (schemaPart, tablePart string, qualified bool) {
	if i := strings.Index(pattern, "."); i >= 0 {
		return pattern[:i], pattern[i+1:], true
	}
	return "", pattern, false
}

// pairFilter builds "(schema = ? AND table = ?) OR ..." placeholder filters
// for an IN-list style restriction to a known table set.
func pairFilter(tables []tableRow, prefix string, placeholder func(n int) string) (string, []any) {
	parts := make([]string, len(tables))
	args := make([]any, 0, len(tables)*2)
	for i, t := range tables {
		parts[i] = fmt.Sprintf("(%stable_schema = %s AND %stable_name = %s)",
			prefix, placeholder(len(args)+1), prefix, placeholder(len(args)+2))
		args = append(args, t.schema, t.name)
	}
	return strings.Join(parts, " OR "), args
}

func pgPlaceholder(n int) string { return "$" + strconv.Itoa(n) }
func qmPlaceholder(int) string   { return "?" }

// Value coercion from gateway rows. Drivers disagree on concrete types for
// information_schema results, so these accept the common encodings.

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func asInt64Ptr(v any) *int64 {
	var n int64
	switch x := v.(type) {
	case nil:
		return nil
	case int64:
		n = x
	case int:
		n = int64(x)
	case float64:
		n = int64(x)
	case string:
		parsed, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	return &n
}

func asBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case string:
		return x == "1" || strings.EqualFold(x, "true") || strings.EqualFold(x, "yes")
	}
	return false
}

func rowString(r db.Row, col string) string {
	v, _ := r.Get(col)
	return asString(v)
}

func rowValue(r db.Row, col string) any {
	v, _ := r.Get(col)
	return v
}
