package viz

import (
	"encoding/json"
	"sort"
	"time"
)

// ColumnSummary describes one column of a result set for the spec agent.
type ColumnSummary struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Sample []any  `json:"sample"`
}

// DataSummary is the column metadata and rows extracted from an execute_sql
// payload.
type DataSummary struct {
	Columns  []ColumnSummary
	RowCount int
	Rows     []Row
}

// ExtractDataSummary pulls columns, row count, and rows out of a captured
// execute_sql result payload.
func ExtractDataSummary(payload map[string]any) *DataSummary {
	var rows []Row
	if results, ok := payload["results"].([]any); ok {
		rows = coerceRows(results)
	}

	rowCount := len(rows)
	switch n := payload["row_count"].(type) {
	case float64:
		rowCount = int(n)
	case int:
		rowCount = n
	case json.Number:
		if v, err := n.Int64(); err == nil {
			rowCount = int(v)
		}
	}

	return &DataSummary{
		Columns:  extractColumns(rows),
		RowCount: rowCount,
		Rows:     rows,
	}
}

// InferColumnType classifies sample values as one of "number", "string",
// "time", "boolean", or "null".
func InferColumnType(values []any) string {
	var cleaned []any
	for _, v := range values {
		if v != nil {
			cleaned = append(cleaned, v)
		}
	}
	if len(cleaned) == 0 {
		return "null"
	}

	allBool, allNumber, allTime := true, true, true
	for _, v := range cleaned {
		if _, ok := v.(bool); !ok {
			allBool = false
		}
		if _, ok := coerceNumericValue(v); !ok {
			allNumber = false
		}
		if !isTimeValue(v) {
			allTime = false
		}
	}
	switch {
	case allBool:
		return "boolean"
	case allNumber:
		return "number"
	case allTime:
		return "time"
	}
	return "string"
}

// extractColumns derives column metadata from rows. The union of keys over
// the first 50 rows catches sparse columns; types come from the first 20
// values and each column keeps 5 samples. Keys are sorted so the summary the
// model sees is stable across runs.
func extractColumns(rows []Row) []ColumnSummary {
	if len(rows) == 0 {
		return nil
	}

	head := rows
	if len(head) > 50 {
		head = head[:50]
	}
	seen := make(map[string]bool)
	var keys []string
	for _, row := range head {
		for key := range row {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)

	typed := rows
	if len(typed) > 20 {
		typed = typed[:20]
	}
	columns := make([]ColumnSummary, 0, len(keys))
	for _, key := range keys {
		var samples []any
		for _, row := range typed {
			if v, ok := row[key]; ok {
				samples = append(samples, v)
			}
		}
		col := ColumnSummary{Name: key, Type: InferColumnType(samples)}
		if len(samples) > 5 {
			samples = samples[:5]
		}
		col.Sample = samples
		columns = append(columns, col)
	}
	return columns
}

func coerceRows(results []any) []Row {
	rows := make([]Row, 0, len(results))
	for _, r := range results {
		if m, ok := r.(map[string]any); ok {
			rows = append(rows, m)
		} else {
			rows = append(rows, Row{"value": r})
		}
	}
	return rows
}

// coerceNumericValue is type inference's notion of a number: real numeric
// types only, not numeric strings.
func coerceNumericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case bool:
		return 0, false
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func isTimeValue(value any) bool {
	switch v := value.(type) {
	case time.Time:
		return true
	case string:
		if _, ok := coerceTime(v); ok {
			return true
		}
		// Bare times of day also count.
		_, ok := parseClockTime(v)
		return ok
	}
	return false
}

func parseClockTime(s string) (time.Time, bool) {
	for _, layout := range []string{"15:04:05.999999999", "15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
