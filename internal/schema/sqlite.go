package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/sqlsaber/sqlsaber/internal/db"
)

// sqliteIntrospector serves both SQLite files and the CSV gateway, whose
// per-file views live in the main schema.
type sqliteIntrospector struct{}

func (sqliteIntrospector) tables(ctx context.Context, gw db.Gateway, pattern string) ([]tableRow, error) {
	where := "type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'"
	var args []any
	if pattern != "" {
		// SQLite has a single user schema, so a qualified pattern only
		// matches when the schema part covers "main".
		schemaPart, tablePart, qualified := splitPattern(pattern)
		if qualified {
			where += " AND 'main' LIKE ? AND name LIKE ?"
			args = append(args, schemaPart, tablePart)
		} else {
			where += " AND (name LIKE ? OR 'main.' || name LIKE ?)"
			args = append(args, tablePart, tablePart)
		}
	}
	query := fmt.Sprintf(`
		SELECT 'main' AS table_schema, name AS table_name, type AS table_type
		FROM sqlite_master
		WHERE %s
		ORDER BY name`, where)
	rows, err := gw.Execute(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return tableRowsFromInfoSchema(rows), nil
}

func (sqliteIntrospector) columns(ctx context.Context, gw db.Gateway, tables []tableRow) ([]columnRow, error) {
	var out []columnRow
	for _, t := range tables {
		rows, err := gw.Execute(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(t.name)))
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out = append(out, columnRow{
				schema:   "main",
				table:    t.name,
				column:   rowString(r, "name"),
				dataType: rowString(r, "type"),
				nullable: !asBool(rowValue(r, "notnull")),
				dflt:     rowValue(r, "dflt_value"),
			})
		}
	}
	return out, nil
}

func (sqliteIntrospector) primaryKeys(ctx context.Context, gw db.Gateway, tables []tableRow) ([]keyRow, error) {
	var out []keyRow
	for _, t := range tables {
		rows, err := gw.Execute(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(t.name)))
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if asBool(rowValue(r, "pk")) {
				out = append(out, keyRow{schema: "main", table: t.name, column: rowString(r, "name")})
			}
		}
	}
	return out, nil
}

func (sqliteIntrospector) foreignKeys(ctx context.Context, gw db.Gateway, tables []tableRow) ([]fkRow, error) {
	var out []fkRow
	for _, t := range tables {
		rows, err := gw.Execute(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(t.name)))
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out = append(out, fkRow{
				schema:    "main",
				table:     t.name,
				column:    rowString(r, "from"),
				refSchema: "main",
				refTable:  rowString(r, "table"),
				refColumn: rowString(r, "to"),
			})
		}
	}
	return out, nil
}

func (s sqliteIntrospector) listTables(ctx context.Context, gw db.Gateway) ([]tableRow, error) {
	return s.tables(ctx, gw, "")
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
