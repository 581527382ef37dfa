package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

func init() {
	Register("list_tables", func() Tool { return &listTablesTool{} })
	Register("introspect_schema", func() Tool { return &introspectSchemaTool{} })
	Register("execute_sql", func() Tool { return &executeSQLTool{} })
}

const defaultRowLimit = 100

// writeKeywords are the statement-leading keywords the write gate refuses
// without dangerous mode.
var writeKeywords = map[string]bool{
	"INSERT":   true,
	"UPDATE":   true,
	"DELETE":   true,
	"DROP":     true,
	"CREATE":   true,
	"ALTER":    true,
	"TRUNCATE": true,
}

type listTablesTool struct{}

func (listTablesTool) Name() string { return "list_tables" }

func (listTablesTool) Description() string {
	return "List all tables in the database with basic information. " +
		"Use this first to discover what tables exist before introspecting specific schemas."
}

func (listTablesTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (listTablesTool) Execute(ctx context.Context, deps *Deps, call Call) (string, error) {
	if deps == nil || deps.SchemaManager == nil {
		return "", fmt.Errorf("list_tables: no schema manager")
	}
	listing, err := deps.SchemaManager.ListTables(ctx)
	if err != nil {
		return errorJSON(fmt.Sprintf("Error listing tables: %v", err)), nil
	}
	return mustJSON(listing), nil
}

func (listTablesTool) DisplaySpec() *DisplaySpec {
	return &DisplaySpec{
		Name:      "List Tables",
		Executing: ExecutingConfig{Message: "Listing tables"},
		Result: ResultConfig{
			Format:     "table",
			Title:      "Tables ({total_tables} total)",
			Items:      "tables",
			ErrorField: "error",
			Table: &TableConfig{
				Columns: []ColumnDef{
					{Field: "schema", Header: "Schema", Style: "muted"},
					{Field: "name", Header: "Name", Style: "column.name"},
					{Field: "type", Header: "Type", Style: "column.type"},
				},
			},
		},
	}
}

type introspectSchemaTool struct{}

func (introspectSchemaTool) Name() string { return "introspect_schema" }

func (introspectSchemaTool) Description() string {
	return "Introspect database schema to understand table structures. " +
		"Prefer a narrow table_pattern (e.g. 'users' or 'public.orders%') to keep the payload small."
}

func (introspectSchemaTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"table_pattern": {
				"type": "string",
				"description": "Optional SQL LIKE pattern to filter tables (e.g. 'users', 'public.%', '%orders%')"
			}
		}
	}`)
}

func (introspectSchemaTool) Execute(ctx context.Context, deps *Deps, call Call) (string, error) {
	if deps == nil || deps.SchemaManager == nil {
		return "", fmt.Errorf("introspect_schema: no schema manager")
	}
	var args struct {
		TablePattern string `json:"table_pattern"`
	}
	if len(call.Input) > 0 {
		if err := json.Unmarshal(call.Input, &args); err != nil {
			return errorJSON(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}
	}
	info, err := deps.SchemaManager.GetSchema(ctx, args.TablePattern)
	if err != nil {
		return errorJSON(fmt.Sprintf("Error introspecting schema: %v", err)), nil
	}
	return mustJSON(info), nil
}

func (introspectSchemaTool) DisplaySpec() *DisplaySpec {
	return &DisplaySpec{
		Name: "Introspect Schema",
		Executing: ExecutingConfig{
			Message:  "Introspecting schema",
			ShowArgs: []string{"table_pattern"},
		},
		Result: ResultConfig{Format: "text", ErrorField: "error"},
	}
}

// executeSQLTool runs a statement through the gateway and captures the
// payload for later reference by the result handle.
type executeSQLTool struct{}

func (executeSQLTool) Name() string { return "execute_sql" }

func (executeSQLTool) Description() string {
	return "Execute a SQL query against the database. Queries run inside a transaction " +
		"that is always rolled back, so no statement ever commits. SELECT results are " +
		"limited to the requested row count."
}

func (executeSQLTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "The SQL query to execute"
			},
			"limit": {
				"type": "integer",
				"description": "Maximum number of rows to return (default 100)"
			}
		},
		"required": ["query"]
	}`)
}

func (executeSQLTool) Execute(ctx context.Context, deps *Deps, call Call) (string, error) {
	if deps == nil || deps.Gateway == nil {
		return "", fmt.Errorf("execute_sql: no gateway")
	}
	var args struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(call.Input, &args); err != nil {
		return errorJSON(fmt.Sprintf("Invalid arguments: %v", err)), nil
	}
	if strings.TrimSpace(args.Query) == "" {
		return errorJSON("No query provided."), nil
	}
	if args.Limit <= 0 {
		args.Limit = defaultRowLimit
	}

	if kw := firstKeyword(args.Query); writeKeywords[kw] && !deps.AllowDangerous {
		return errorJSON(fmt.Sprintf(
			"Write operations are not allowed. Query starts with '%s'. "+
				"Only SELECT statements are permitted unless dangerous mode is enabled.", kw)), nil
	}

	query, limited := injectLimit(args.Query, args.Limit)

	rows, err := deps.Gateway.Execute(ctx, query)
	if err != nil {
		return sqlErrorPayload(err), nil
	}

	// Rows marshal as ordered objects, keeping column order intact.
	payload := map[string]any{
		"success":   true,
		"row_count": len(rows),
		"results":   rows,
		"truncated": limited && len(rows) >= args.Limit,
	}
	out := mustJSON(payload)
	if deps.Results != nil && call.ID != "" {
		deps.Results.Put(call.ID, out)
	}
	return out, nil
}

func (executeSQLTool) DisplaySpec() *DisplaySpec {
	return &DisplaySpec{
		Name: "Execute SQL",
		Executing: ExecutingConfig{
			Message:  "Executing query",
			ShowArgs: []string{"query"},
		},
		Result: ResultConfig{
			Format:     "table",
			Title:      "Results ({row_count} rows)",
			Items:      "results",
			ErrorField: "error",
			Table:      &TableConfig{MaxRows: 20},
		},
	}
}

func firstKeyword(query string) string {
	fields := strings.Fields(strings.TrimSpace(query))
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// injectLimit appends LIMIT n to SELECT statements that do not already
// carry one, stripping a trailing semicolon first.
func injectLimit(query string, limit int) (string, bool) {
	trimmed := strings.TrimSpace(query)
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return query, false
	}
	if containsWord(upper, "LIMIT") {
		return query, false
	}
	trimmed = strings.TrimRight(strings.TrimSuffix(strings.TrimRight(trimmed, " \t\n"), ";"), " \t\n")
	return fmt.Sprintf("%s LIMIT %d", trimmed, limit), true
}

func containsWord(upper, word string) bool {
	idx := 0
	for {
		i := strings.Index(upper[idx:], word)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isWordChar(upper[i-1])
		afterIdx := i + len(word)
		after := afterIdx >= len(upper) || !isWordChar(upper[afterIdx])
		if before && after {
			return true
		}
		idx = i + len(word)
	}
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// sqlErrorPayload shapes driver errors with targeted suggestions keyed off
// well-known message substrings.
func sqlErrorPayload(err error) string {
	msg := err.Error()
	lower := strings.ToLower(msg)

	var suggestions []string
	switch {
	case strings.Contains(lower, "column") && strings.Contains(lower, "does not exist"),
		strings.Contains(lower, "no such column"):
		suggestions = []string{
			"Check the column name spelling",
			"Use introspect_schema to see available columns",
			"Column names may be case-sensitive or require quoting",
		}
	case strings.Contains(lower, "table") && strings.Contains(lower, "does not exist"),
		strings.Contains(lower, "no such table"):
		suggestions = []string{
			"Check the table name spelling",
			"Use list_tables to see available tables",
			"The table may be in a different schema",
		}
	case strings.Contains(lower, "syntax error"):
		suggestions = []string{
			"Check the SQL syntax near the reported position",
			"Verify the syntax is valid for this database dialect",
		}
	}

	payload := map[string]any{"error": msg}
	if len(suggestions) > 0 {
		payload["suggestions"] = suggestions
	}
	return mustJSON(payload)
}
