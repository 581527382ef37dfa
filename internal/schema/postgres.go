package schema

import (
	"context"
	"fmt"

	"github.com/sqlsaber/sqlsaber/internal/db"
)

type postgresIntrospector struct{}

func (postgresIntrospector) tables(ctx context.Context, gw db.Gateway, pattern string) ([]tableRow, error) {
	where := "table_schema NOT IN ('pg_catalog', 'information_schema')"
	var args []any
	if pattern != "" {
		schemaPart, tablePart, qualified := splitPattern(pattern)
		if qualified {
			where += " AND (table_schema LIKE $1 AND table_name LIKE $2)"
			args = append(args, schemaPart, tablePart)
		} else {
			where += " AND (table_name LIKE $1 OR table_schema || '.' || table_name LIKE $1)"
			args = append(args, tablePart)
		}
	}
	query := fmt.Sprintf(`
		SELECT table_schema, table_name, table_type
		FROM information_schema.tables
		WHERE %s
		ORDER BY table_schema, table_name`, where)
	rows, err := gw.Execute(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return tableRowsFromInfoSchema(rows), nil
}

func (postgresIntrospector) columns(ctx context.Context, gw db.Gateway, tables []tableRow) ([]columnRow, error) {
	if len(tables) == 0 {
		return nil, nil
	}
	filter, args := pairFilter(tables, "", pgPlaceholder)
	query := fmt.Sprintf(`
		SELECT table_schema, table_name, column_name, data_type, is_nullable,
		       column_default, character_maximum_length, numeric_precision, numeric_scale
		FROM information_schema.columns
		WHERE %s
		ORDER BY table_schema, table_name, ordinal_position`, filter)
	rows, err := gw.Execute(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return columnRowsFromInfoSchema(rows), nil
}

func (postgresIntrospector) primaryKeys(ctx context.Context, gw db.Gateway, tables []tableRow) ([]keyRow, error) {
	if len(tables) == 0 {
		return nil, nil
	}
	filter, args := pairFilter(tables, "tc.", pgPlaceholder)
	query := fmt.Sprintf(`
		SELECT tc.table_schema, tc.table_name, kcu.column_name
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
		    ON tc.constraint_name = kcu.constraint_name
		    AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY' AND (%s)
		ORDER BY tc.table_schema, tc.table_name, kcu.ordinal_position`, filter)
	rows, err := gw.Execute(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return keyRowsFromInfoSchema(rows), nil
}

func (postgresIntrospector) foreignKeys(ctx context.Context, gw db.Gateway, tables []tableRow) ([]fkRow, error) {
	if len(tables) == 0 {
		return nil, nil
	}
	filter, args := pairFilter(tables, "tc.", pgPlaceholder)
	// The referenced side comes from constraint_column_usage, which Postgres
	// resolves to the unique constraint's columns.
	query := fmt.Sprintf(`
		SELECT tc.table_schema, tc.table_name, kcu.column_name,
		       ccu.table_schema AS foreign_table_schema,
		       ccu.table_name AS foreign_table_name,
		       ccu.column_name AS foreign_column_name
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
		    ON tc.constraint_name = kcu.constraint_name
		    AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage AS ccu
		    ON ccu.constraint_name = tc.constraint_name
		    AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND (%s)`, filter)
	rows, err := gw.Execute(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return fkRowsFromInfoSchema(rows), nil
}

func (p postgresIntrospector) listTables(ctx context.Context, gw db.Gateway) ([]tableRow, error) {
	return p.tables(ctx, gw, "")
}

// Shared decoders for information_schema result shapes. MySQL reuses these.

func tableRowsFromInfoSchema(rows []db.Row) []tableRow {
	out := make([]tableRow, len(rows))
	for i, r := range rows {
		out[i] = tableRow{
			schema: rowString(r, "table_schema"),
			name:   rowString(r, "table_name"),
			kind:   rowString(r, "table_type"),
		}
	}
	return out
}

func columnRowsFromInfoSchema(rows []db.Row) []columnRow {
	out := make([]columnRow, len(rows))
	for i, r := range rows {
		out[i] = columnRow{
			schema:    rowString(r, "table_schema"),
			table:     rowString(r, "table_name"),
			column:    rowString(r, "column_name"),
			dataType:  rowString(r, "data_type"),
			nullable:  rowString(r, "is_nullable") == "YES",
			dflt:      rowValue(r, "column_default"),
			maxLength: asInt64Ptr(rowValue(r, "character_maximum_length")),
			precision: asInt64Ptr(rowValue(r, "numeric_precision")),
			scale:     asInt64Ptr(rowValue(r, "numeric_scale")),
		}
	}
	return out
}

func keyRowsFromInfoSchema(rows []db.Row) []keyRow {
	out := make([]keyRow, len(rows))
	for i, r := range rows {
		out[i] = keyRow{
			schema: rowString(r, "table_schema"),
			table:  rowString(r, "table_name"),
			column: rowString(r, "column_name"),
		}
	}
	return out
}

func fkRowsFromInfoSchema(rows []db.Row) []fkRow {
	out := make([]fkRow, len(rows))
	for i, r := range rows {
		out[i] = fkRow{
			schema:    rowString(r, "table_schema"),
			table:     rowString(r, "table_name"),
			column:    rowString(r, "column_name"),
			refSchema: rowString(r, "foreign_table_schema"),
			refTable:  rowString(r, "foreign_table_name"),
			refColumn: rowString(r, "foreign_column_name"),
		}
	}
	return out
}
