package schema

import (
	"context"
	"fmt"

	"github.com/sqlsaber/sqlsaber/internal/db"
)

type mysqlIntrospector struct{}

func (mysqlIntrospector) tables(ctx context.Context, gw db.Gateway, pattern string) ([]tableRow, error) {
	where := "table_schema NOT IN ('information_schema', 'performance_schema', 'mysql', 'sys')"
	var args []any
	if pattern != "" {
		schemaPart, tablePart, qualified := splitPattern(pattern)
		if qualified {
			where += " AND (table_schema LIKE ? AND table_name LIKE ?)"
			args = append(args, schemaPart, tablePart)
		} else {
			where += " AND (table_name LIKE ? OR CONCAT(table_schema, '.', table_name) LIKE ?)"
			args = append(args, tablePart, tablePart)
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

func (mysqlIntrospector) columns(ctx context.Context, gw db.Gateway, tables []tableRow) ([]columnRow, error) {
	if len(tables) == 0 {
		return nil, nil
	}
	filter, args := pairFilter(tables, "", qmPlaceholder)
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

func (mysqlIntrospector) primaryKeys(ctx context.Context, gw db.Gateway, tables []tableRow) ([]keyRow, error) {
	if len(tables) == 0 {
		return nil, nil
	}
	filter, args := pairFilter(tables, "tc.", qmPlaceholder)
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

func (mysqlIntrospector) foreignKeys(ctx context.Context, gw db.Gateway, tables []tableRow) ([]fkRow, error) {
	if len(tables) == 0 {
		return nil, nil
	}
	filter, args := pairFilter(tables, "tc.", qmPlaceholder)
	// MySQL exposes the referenced side on key_column_usage directly;
	// referential_constraints supplies the referenced schema and table.
	query := fmt.Sprintf(`
		SELECT tc.table_schema, tc.table_name, kcu.column_name,
		       rc.unique_constraint_schema AS foreign_table_schema,
		       rc.referenced_table_name AS foreign_table_name,
		       kcu.referenced_column_name AS foreign_column_name
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
		    ON tc.constraint_name = kcu.constraint_name
		    AND tc.table_schema = kcu.table_schema
		JOIN information_schema.referential_constraints AS rc
		    ON tc.constraint_name = rc.constraint_name
		    AND tc.table_schema = rc.constraint_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND (%s)`, filter)
	rows, err := gw.Execute(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return fkRowsFromInfoSchema(rows), nil
}

func (m mysqlIntrospector) listTables(ctx context.Context, gw db.Gateway) ([]tableRow, error) {
	return m.tables(ctx, gw, "")
}
