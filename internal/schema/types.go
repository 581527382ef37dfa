// Package schema extracts structured metadata (tables, columns, keys) from a
// live database through a gateway, with per-gateway TTL caching.
package schema

// Column describes one column of a table.
type Column struct {
	DataType  string `json:"data_type"`
	Nullable  bool   `json:"nullable"`
	Default   any    `json:"default"`
	MaxLength *int64 `json:"max_length,omitempty"`
	Precision *int64 `json:"precision,omitempty"`
	Scale     *int64 `json:"scale,omitempty"`
}

// Reference is the referenced side of a foreign key.
type Reference struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// ForeignKey links a local column to a referenced table column.
type ForeignKey struct {
	Column     string    `json:"column"`
	References Reference `json:"references"`
}

// Table is the full metadata for one table or view.
type Table struct {
	Schema      string            `json:"schema"`
	Name        string            `json:"name"`
	Kind        string            `json:"type"`
	Columns     map[string]Column `json:"columns"`
	PrimaryKeys []string          `json:"primary_keys"`
	ForeignKeys []ForeignKey      `json:"foreign_keys"`
}

// Info maps fully-qualified table name ("schema.table") to its metadata.
type Info map[string]*Table

// TableSummary is one entry of a table listing.
type TableSummary struct {
	Schema   string `json:"schema"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Kind     string `json:"type"`
}

// TableListing is the result of listing all user tables.
type TableListing struct {
	Tables      []TableSummary `json:"tables"`
	TotalTables int            `json:"total_tables"`
}

// Intermediate row shapes shared by the dialect introspectors.

type tableRow struct {
	schema string
	name   string
	kind   string
}

type columnRow struct {
	schema    string
	table     string
	column    string
	dataType  string
	nullable  bool
	dflt      any
	maxLength *int64
	precision *int64
	scale     *int64
}

type keyRow struct {
	schema string
	table  string
	column string
}

type fkRow struct {
	schema    string
	table     string
	column    string
	refSchema string
	refTable  string
	refColumn string
}
