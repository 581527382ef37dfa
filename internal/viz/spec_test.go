package viz

import (
	"encoding/json"
	"testing"
)

const validBarSpec = `{
	"version": "1",
	"title": "Sales by region",
	"data": {"source": {"file": "result_abc123.json"}},
	"chart": {
		"type": "bar",
		"encoding": {
			"x": {"field": "region", "type": "category"},
			"y": {"field": "sales", "type": "number"}
		}
	},
	"transform": [
		{"sort": [{"field": "sales", "dir": "desc"}]},
		{"limit": 10}
	]
}`

func TestValidateSpecAcceptsBarChart(t *testing.T) {
	spec, err := ValidateSpec([]byte(validBarSpec))
	if err != nil {
		t.Fatalf("ValidateSpec: %v", err)
	}
	if spec.Chart.Type != ChartBar {
		t.Fatalf("chart type = %q", spec.Chart.Type)
	}
	if spec.Chart.Orientation != "vertical" || spec.Chart.Mode != "grouped" {
		t.Fatalf("bar defaults not applied: %+v", spec.Chart)
	}
	if len(spec.Transform) != 2 || spec.Transform[1].Limit != 10 {
		t.Fatalf("transforms = %+v", spec.Transform)
	}
}

func TestValidateSpecDefaults(t *testing.T) {
	raw := `{
		"version": "1",
		"data": {"source": {"file": "result_x.json"}},
		"chart": {
			"type": "histogram",
			"histogram": {"field": "age"}
		},
		"transform": [{"sort": [{"field": "age"}]}]
	}`
	spec, err := ValidateSpec([]byte(raw))
	if err != nil {
		t.Fatalf("ValidateSpec: %v", err)
	}
	if spec.Chart.Histogram.Bins != 20 {
		t.Fatalf("bins = %d, want default 20", spec.Chart.Histogram.Bins)
	}
	if spec.Transform[0].Sort[0].Dir != "asc" {
		t.Fatalf("sort dir = %q, want default asc", spec.Transform[0].Sort[0].Dir)
	}
}

func TestValidateSpecRejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"wrong version", `{"version": "2", "data": {"source": {"file": "result_a.json"}}, "chart": {"type": "histogram", "histogram": {"field": "x"}}}`},
		{"bad file key", `{"version": "1", "data": {"source": {"file": "../etc/passwd"}}, "chart": {"type": "histogram", "histogram": {"field": "x"}}}`},
		{"unknown chart type", `{"version": "1", "data": {"source": {"file": "result_a.json"}}, "chart": {"type": "pie", "encoding": {"x": {"field": "a"}, "y": {"field": "b"}}}}`},
		{"bar missing encoding", `{"version": "1", "data": {"source": {"file": "result_a.json"}}, "chart": {"type": "bar"}}`},
		{"bins out of range", `{"version": "1", "data": {"source": {"file": "result_a.json"}}, "chart": {"type": "histogram", "histogram": {"field": "x", "bins": 1}}}`},
		{"bad filter op", `{"version": "1", "data": {"source": {"file": "result_a.json"}}, "chart": {"type": "histogram", "histogram": {"field": "x"}}, "transform": [{"filter": {"field": "x", "op": "~=", "value": 1}}]}`},
		{"mixed transform step", `{"version": "1", "data": {"source": {"file": "result_a.json"}}, "chart": {"type": "histogram", "histogram": {"field": "x"}}, "transform": [{"limit": 5, "sort": [{"field": "x"}]}]}`},
		{"width out of range", `{"version": "1", "data": {"source": {"file": "result_a.json"}}, "chart": {"type": "histogram", "histogram": {"field": "x"}, "options": {"width": 500}}}`},
	}
	for _, tt := range tests {
		if _, err := ValidateSpec([]byte(tt.raw)); err == nil {
			t.Fatalf("%s: validation unexpectedly passed", tt.name)
		}
	}
}

func TestTemplatesValidateAgainstSchema(t *testing.T) {
	for _, chartType := range []string{ChartBar, ChartLine, ChartScatter, ChartBoxplot, ChartHistogram} {
		tmpl, err := SpecTemplate(chartType, "result_abc123.json")
		if err != nil {
			t.Fatalf("SpecTemplate(%s): %v", chartType, err)
		}
		raw, err := json.Marshal(tmpl)
		if err != nil {
			t.Fatalf("marshal %s template: %v", chartType, err)
		}
		if _, err := ValidateSpec(raw); err != nil {
			t.Fatalf("%s template fails its own schema: %v", chartType, err)
		}
	}

	if _, err := SpecTemplate("pie", "result_a.json"); err == nil {
		t.Fatal("unknown chart type accepted")
	}
}

func TestListChartTypesCatalog(t *testing.T) {
	catalog := ListChartTypes()
	if len(catalog) != 5 {
		t.Fatalf("catalog has %d entries", len(catalog))
	}
	seen := make(map[string]bool)
	for _, entry := range catalog {
		if entry.Description == "" || entry.UseWhen == "" {
			t.Fatalf("entry %q missing guidance", entry.Type)
		}
		seen[entry.Type] = true
	}
	for _, want := range []string{ChartBar, ChartLine, ChartScatter, ChartBoxplot, ChartHistogram} {
		if !seen[want] {
			t.Fatalf("catalog missing %s", want)
		}
	}
}

func TestResultFilePattern(t *testing.T) {
	for _, ok := range []string{"result_abc.json", "result_toolu_01A-b.c.json"} {
		if !ResultFilePattern.MatchString(ok) {
			t.Fatalf("%q should match", ok)
		}
	}
	for _, bad := range []string{"abc.json", "result_.json/evil", "result_a.txt", "result_a b.json"} {
		if ResultFilePattern.MatchString(bad) {
			t.Fatalf("%q should not match", bad)
		}
	}
}
