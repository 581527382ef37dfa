package schema

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/sqlsaber/sqlsaber/internal/db"
)

func newSQLiteGateway(t *testing.T) db.Gateway {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")
	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	stmts := []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, email TEXT)`,
		`CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			user_id INTEGER REFERENCES users(id),
			total REAL DEFAULT 0
		)`,
		`CREATE VIEW user_emails AS SELECT name, email FROM users`,
	}
	for _, s := range stmts {
		if _, err := raw.Exec(s); err != nil {
			t.Fatalf("setup %q: %v", s, err)
		}
	}
	raw.Close()

	gw, err := db.Open(path)
	if err != nil {
		t.Fatalf("open gateway: %v", err)
	}
	t.Cleanup(func() { gw.Close() })
	return gw
}

func TestSQLiteGetSchema(t *testing.T) {
	m, err := NewManager(newSQLiteGateway(t), 0)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	ctx := context.Background()

	info, err := m.GetSchema(ctx, "")
	if err != nil {
		t.Fatalf("get schema: %v", err)
	}
	if len(info) != 3 {
		t.Fatalf("got %d tables, want 3", len(info))
	}

	users, ok := info["main.users"]
	if !ok {
		t.Fatal("main.users missing")
	}
	if !strings.HasPrefix(strings.ToUpper(users.Columns["id"].DataType), "INT") {
		t.Fatalf("users.id type = %q", users.Columns["id"].DataType)
	}
	if users.Columns["name"].Nullable {
		t.Fatal("users.name should be NOT NULL")
	}
	if len(users.PrimaryKeys) != 1 || users.PrimaryKeys[0] != "id" {
		t.Fatalf("users primary keys = %v", users.PrimaryKeys)
	}

	orders := info["main.orders"]
	if len(orders.ForeignKeys) != 1 {
		t.Fatalf("orders foreign keys = %v", orders.ForeignKeys)
	}
	fk := orders.ForeignKeys[0]
	if fk.Column != "user_id" || fk.References.Table != "main.users" || fk.References.Column != "id" {
		t.Fatalf("orders fk = %+v", fk)
	}
}

func TestSQLitePatternFilter(t *testing.T) {
	m, err := NewManager(newSQLiteGateway(t), 0)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	info, err := m.GetSchema(context.Background(), "user%")
	if err != nil {
		t.Fatalf("get schema: %v", err)
	}
	if len(info) != 2 {
		t.Fatalf("pattern matched %d tables, want 2 (users, user_emails)", len(info))
	}
	if _, ok := info["main.users"]; !ok {
		t.Fatal("main.users missing from filtered schema")
	}
	if _, ok := info["main.orders"]; ok {
		t.Fatal("main.orders leaked through pattern filter")
	}
}

func TestCachedSchemaImmuneToCallerMutation(t *testing.T) {
	m, err := NewManager(newSQLiteGateway(t), 0)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	ctx := context.Background()

	first, err := m.GetSchema(ctx, "")
	if err != nil {
		t.Fatalf("get schema: %v", err)
	}
	delete(first, "main.users")

	second, err := m.GetSchema(ctx, "")
	if err != nil {
		t.Fatalf("get schema: %v", err)
	}
	if _, ok := second["main.users"]; !ok {
		t.Fatal("caller mutation poisoned the cache")
	}
	delete(second, "main.orders")

	third, err := m.GetSchema(ctx, "")
	if err != nil {
		t.Fatalf("get schema: %v", err)
	}
	if _, ok := third["main.orders"]; !ok {
		t.Fatal("mutation of a cache-hit result poisoned the cache")
	}
}

func TestListTablesExcludesInternal(t *testing.T) {
	m, err := NewManager(newSQLiteGateway(t), 0)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	listing, err := m.ListTables(context.Background())
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	if listing.TotalTables != 3 {
		t.Fatalf("total = %d, want 3", listing.TotalTables)
	}
	for _, tbl := range listing.Tables {
		if strings.HasPrefix(tbl.Name, "sqlite_") {
			t.Fatalf("internal table leaked: %s", tbl.Name)
		}
		if tbl.FullName != tbl.Schema+"."+tbl.Name {
			t.Fatalf("bad full name %q", tbl.FullName)
		}
	}
}

func expectPostgresIntrospection(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectQuery("FROM information_schema.tables").WillReturnRows(
		sqlmock.NewRows([]string{"table_schema", "table_name", "table_type"}).
			AddRow("public", "users", "BASE TABLE"))
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM information_schema.columns").WillReturnRows(
		sqlmock.NewRows([]string{
			"table_schema", "table_name", "column_name", "data_type", "is_nullable",
			"column_default", "character_maximum_length", "numeric_precision", "numeric_scale",
		}).
			AddRow("public", "users", "id", "integer", "NO", nil, nil, int64(32), int64(0)).
			AddRow("public", "users", "email", "character varying", "YES", nil, int64(255), nil, nil))
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery("PRIMARY KEY").WillReturnRows(
		sqlmock.NewRows([]string{"table_schema", "table_name", "column_name"}).
			AddRow("public", "users", "id"))
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery("FOREIGN KEY").WillReturnRows(
		sqlmock.NewRows([]string{
			"table_schema", "table_name", "column_name",
			"foreign_table_schema", "foreign_table_name", "foreign_column_name",
		}))
	mock.ExpectRollback()
}

func TestPostgresIntrospection(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	gw := db.NewGateway(conn, db.DialectPostgres, "PostgreSQL")
	defer gw.Close()

	expectPostgresIntrospection(mock)

	m, err := NewManager(gw, 0)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	info, err := m.GetSchema(context.Background(), "")
	if err != nil {
		t.Fatalf("get schema: %v", err)
	}

	users, ok := info["public.users"]
	if !ok {
		t.Fatal("public.users missing")
	}
	if users.Columns["id"].Nullable {
		t.Fatal("id should be NOT NULL")
	}
	email := users.Columns["email"]
	if email.MaxLength == nil || *email.MaxLength != 255 {
		t.Fatalf("email max_length = %v", email.MaxLength)
	}
	if len(users.PrimaryKeys) != 1 || users.PrimaryKeys[0] != "id" {
		t.Fatalf("primary keys = %v", users.PrimaryKeys)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSchemaCacheTTL(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	gw := db.NewGateway(conn, db.DialectPostgres, "PostgreSQL")
	defer gw.Close()

	expectPostgresIntrospection(mock)

	m, err := NewManager(gw, time.Minute)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	clock := time.Now()
	m.now = func() time.Time { return clock }

	ctx := context.Background()
	first, err := m.GetSchema(ctx, "")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	// Within TTL the driver must not be queried again; any second round of
	// queries would trip sqlmock's unexpected-call detection.
	second, err := m.GetSchema(ctx, "")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("cache returned different result: %d vs %d", len(first), len(second))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}

	// Past TTL the next call refetches.
	clock = clock.Add(2 * time.Minute)
	expectPostgresIntrospection(mock)
	if _, err := m.GetSchema(ctx, ""); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("refetch expectations: %v", err)
	}
}

func TestCacheKeyIncludesPattern(t *testing.T) {
	if patternKey("") != "all" {
		t.Fatalf("empty pattern key = %q", patternKey(""))
	}
	if patternKey("user%") != "user%" {
		t.Fatalf("pattern key = %q", patternKey("user%"))
	}
}
