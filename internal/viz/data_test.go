package viz

import (
	"encoding/json"
	"testing"
)

func TestExtractDataSummary(t *testing.T) {
	payload := map[string]any{
		"success":   true,
		"row_count": float64(3),
		"results": []any{
			map[string]any{"region": "west", "sales": 100.5, "active": true},
			map[string]any{"region": "east", "sales": 80.0, "active": false},
			map[string]any{"region": nil, "sales": 60.0, "active": true},
		},
	}
	summary := ExtractDataSummary(payload)
	if summary.RowCount != 3 || len(summary.Rows) != 3 {
		t.Fatalf("summary = %+v", summary)
	}

	types := make(map[string]string)
	for _, col := range summary.Columns {
		types[col.Name] = col.Type
	}
	want := map[string]string{"region": "string", "sales": "number", "active": "boolean"}
	for name, typ := range want {
		if types[name] != typ {
			t.Fatalf("column %s type = %q, want %q", name, types[name], typ)
		}
	}
}

func TestExtractDataSummaryRowCountFallback(t *testing.T) {
	payload := map[string]any{
		"results": []any{
			map[string]any{"n": 1.0},
			map[string]any{"n": 2.0},
		},
	}
	if got := ExtractDataSummary(payload).RowCount; got != 2 {
		t.Fatalf("row count = %d", got)
	}
}

func TestExtractDataSummaryScalarRows(t *testing.T) {
	payload := map[string]any{"results": []any{1.0, 2.0}}
	summary := ExtractDataSummary(payload)
	if len(summary.Columns) != 1 || summary.Columns[0].Name != "value" {
		t.Fatalf("columns = %+v", summary.Columns)
	}
	if summary.Columns[0].Type != "number" {
		t.Fatalf("type = %q", summary.Columns[0].Type)
	}
}

func TestExtractDataSummaryFromJSONPayload(t *testing.T) {
	raw := `{"success": true, "row_count": 2, "results": [{"day": "2024-01-01", "total": 5}, {"day": "2024-01-02", "total": 7}]}`
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatal(err)
	}
	summary := ExtractDataSummary(payload)
	if summary.RowCount != 2 {
		t.Fatalf("row count = %d", summary.RowCount)
	}
	types := make(map[string]string)
	for _, col := range summary.Columns {
		types[col.Name] = col.Type
	}
	if types["day"] != "time" || types["total"] != "number" {
		t.Fatalf("types = %v", types)
	}
}

func TestInferColumnType(t *testing.T) {
	tests := []struct {
		name   string
		values []any
		want   string
	}{
		{"empty", nil, "null"},
		{"all nil", []any{nil, nil}, "null"},
		{"booleans", []any{true, false, nil}, "boolean"},
		{"numbers", []any{1.0, int64(2), 3}, "number"},
		{"times", []any{"2024-01-01", "2024-01-02T10:00:00Z"}, "time"},
		{"clock times", []any{"10:30:00"}, "time"},
		{"mixed becomes string", []any{1.0, "apple"}, "string"},
		{"numeric strings are strings", []any{"1", "2"}, "string"},
	}
	for _, tt := range tests {
		if got := InferColumnType(tt.values); got != tt.want {
			t.Fatalf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestExtractColumnsSparseAndSamples(t *testing.T) {
	rows := make([]Row, 0, 60)
	for i := 0; i < 40; i++ {
		rows = append(rows, Row{"a": float64(i)})
	}
	// Column b appears only past the first rows but within the first 50.
	for i := 0; i < 20; i++ {
		rows = append(rows, Row{"a": float64(i), "b": "x"})
	}
	cols := extractColumns(rows)
	if len(cols) != 2 {
		t.Fatalf("columns = %+v", cols)
	}
	for _, col := range cols {
		if len(col.Sample) > 5 {
			t.Fatalf("column %s has %d samples", col.Name, len(col.Sample))
		}
	}
}
