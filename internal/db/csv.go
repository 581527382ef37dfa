package db

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// OpenCSV loads one or more CSV files into an in-memory SQLite database and
// exposes each file as a queryable table named after the file stem.
//
// Backing tables live in an attached schema so that main holds only the
// per-file views; introspection of main then reports exactly the tables the
// user loaded. The pool is pinned to a single connection because the attach
// and the loaded data are connection-local.
func OpenCSV(paths []string) (Gateway, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no csv files given")
	}
	pool, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, &ConnError{Target: paths[0], Err: err}
	}
	pool.SetMaxOpenConns(1)

	if _, err := pool.Exec(`ATTACH ':memory:' AS csvdata`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("attach csv schema: %w", err)
	}
	for _, p := range paths {
		if err := loadCSVFile(pool, p); err != nil {
			pool.Close()
			return nil, &ConnError{Target: p, Err: err}
		}
	}
	display := "CSV"
	if len(paths) == 1 {
		display = fmt.Sprintf("CSV (%s)", filepath.Base(paths[0]))
	}
	return &sqlGateway{db: pool, dialect: DialectCSV, display: display, target: strings.Join(paths, ",")}, nil
}

func loadCSVFile(pool *sql.DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = sanitizeIdent(h)
		if cols[i] == "" {
			cols[i] = fmt.Sprintf("column_%d", i+1)
		}
	}

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read row: %w", err)
		}
		records = append(records, rec)
	}

	table := sanitizeIdent(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if table == "" {
		return fmt.Errorf("cannot derive table name from %q", path)
	}

	types := inferColumnTypes(cols, records)
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = fmt.Sprintf("%q %s", c, types[i])
	}
	backing := fmt.Sprintf("csvdata.%q", table)
	if _, err := pool.Exec(fmt.Sprintf("CREATE TABLE %s (%s)", backing, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	if len(records) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
		tx, err := pool.Begin()
		if err != nil {
			return err
		}
		stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s VALUES (%s)", backing, placeholders))
		if err != nil {
			tx.Rollback()
			return err
		}
		for _, rec := range records {
			args := make([]any, len(cols))
			for i := range cols {
				if i < len(rec) {
					args[i] = csvValue(rec[i], types[i])
				}
			}
			if _, err := stmt.Exec(args...); err != nil {
				stmt.Close()
				tx.Rollback()
				return fmt.Errorf("insert row: %w", err)
			}
		}
		stmt.Close()
		if err := tx.Commit(); err != nil {
			return err
		}
	}

	_, err = pool.Exec(fmt.Sprintf("CREATE VIEW main.%q AS SELECT * FROM %s", table, backing))
	if err != nil {
		return fmt.Errorf("create view: %w", err)
	}
	return nil
}

// inferColumnTypes samples every record and picks the narrowest SQLite type
// that admits all non-empty values in the column.
func inferColumnTypes(cols []string, records [][]string) []string {
	types := make([]string, len(cols))
	for i := range cols {
		isInt, isReal, seen := true, true, false
		for _, rec := range records {
			if i >= len(rec) || rec[i] == "" {
				continue
			}
			seen = true
			if _, err := strconv.ParseInt(rec[i], 10, 64); err != nil {
				isInt = false
			}
			if _, err := strconv.ParseFloat(rec[i], 64); err != nil {
				isReal = false
			}
			if !isInt && !isReal {
				break
			}
		}
		switch {
		case seen && isInt:
			types[i] = "INTEGER"
		case seen && isReal:
			types[i] = "REAL"
		default:
			types[i] = "TEXT"
		}
	}
	return types
}

func csvValue(raw, sqlType string) any {
	if raw == "" {
		return nil
	}
	switch sqlType {
	case "INTEGER":
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	case "REAL":
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	return raw
}

var identRE = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// sanitizeIdent turns an arbitrary header or file stem into a safe SQL
// identifier: non-alphanumerics collapse to underscores, leading digits get
// an underscore prefix.
func sanitizeIdent(s string) string {
	s = identRE.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return ""
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	return strings.ToLower(s)
}
