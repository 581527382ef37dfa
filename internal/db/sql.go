package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// sqlGateway is the database/sql-backed implementation shared by every
// engine. Only the driver, dialect, and display name vary.
type sqlGateway struct {
	db      *sql.DB
	dialect Dialect
	display string
	target  string
}

// NewGateway wraps an already-configured pool. Callers own the pool's
// lifetime settings; Close still closes it.
func NewGateway(pool *sql.DB, dialect Dialect, display string) Gateway {
	return &sqlGateway{db: pool, dialect: dialect, display: display}
}

func newSQLGateway(driver, dsn, target string, dialect Dialect, display string) (*sqlGateway, error) {
	pool, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &ConnError{Target: target, Err: err}
	}
	pool.SetMaxOpenConns(10)
	pool.SetMaxIdleConns(1)
	if err := pool.Ping(); err != nil {
		pool.Close()
		return nil, &ConnError{Target: target, Err: err}
	}
	return &sqlGateway{db: pool, dialect: dialect, display: display, target: target}, nil
}

// Execute runs the statement inside a transaction and rolls it back
// unconditionally. Results are fully materialized before the rollback so the
// caller never holds driver cursors.
func (g *sqlGateway) Execute(ctx context.Context, query string, args ...any) ([]Row, error) {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

func (g *sqlGateway) Dialect() Dialect    { return g.dialect }
func (g *sqlGateway) DisplayName() string { return g.display }
func (g *sqlGateway) Close() error        { return g.db.Close() }

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		out = append(out, Row{Columns: cols, Values: values})
	}
	return out, rows.Err()
}

func openPostgres(connString string) (Gateway, error) {
	// lib/pq accepts postgres:// URLs directly.
	return newSQLGateway("postgres", connString, redactTarget(connString), DialectPostgres, "PostgreSQL")
}

func openMySQL(connString string) (Gateway, error) {
	dsn, err := mysqlDSN(connString)
	if err != nil {
		return nil, err
	}
	return newSQLGateway("mysql", dsn, redactTarget(connString), DialectMySQL, "MySQL")
}

func openSQLite(path string) (Gateway, error) {
	return newSQLGateway("sqlite3", path, path, DialectSQLite, "SQLite")
}

// mysqlDSN converts a mysql:// URL into the go-sql-driver DSN form
// user:pass@tcp(host:port)/dbname.
func mysqlDSN(connString string) (string, error) {
	u, err := url.Parse(connString)
	if err != nil {
		return "", fmt.Errorf("parse mysql url: %w", err)
	}
	host := u.Host
	if u.Port() == "" {
		host += ":3306"
	}
	var creds string
	if u.User != nil {
		creds = u.User.Username()
		if pass, ok := u.User.Password(); ok {
			creds += ":" + pass
		}
		creds += "@"
	}
	dbname := strings.TrimPrefix(u.Path, "/")
	dsn := fmt.Sprintf("%stcp(%s)/%s", creds, host, dbname)
	if u.RawQuery != "" {
		dsn += "?" + u.RawQuery
	}
	return dsn, nil
}

// redactTarget strips credentials from a URL-form connection string for use
// in error messages.
func redactTarget(connString string) string {
	u, err := url.Parse(connString)
	if err != nil || u.Host == "" {
		return connString
	}
	u.User = nil
	return u.String()
}
