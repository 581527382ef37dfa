package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sqlsaber/sqlsaber/internal/agent/providers"
	"github.com/sqlsaber/sqlsaber/internal/viz"
	"github.com/sqlsaber/sqlsaber/pkg/models"
)

// specClient answers every Stream call with the same spec text.
type specClient struct {
	spec  string
	calls int
}

func (c *specClient) Name() string { return "fake" }

func (c *specClient) Stream(ctx context.Context, req *providers.Request) (<-chan *providers.Chunk, error) {
	c.calls++
	chunks := make(chan *providers.Chunk, 1)
	chunks <- &providers.Chunk{Response: &providers.Response{
		Blocks:     []models.ContentBlock{models.TextBlock(c.spec)},
		StopReason: models.StopEndTurn,
	}}
	close(chunks)
	return chunks, nil
}

func vizDeps(spec string) *Deps {
	deps := &Deps{
		Results:    NewResultCache(),
		SpecClient: &specClient{spec: spec},
	}
	rows := make([]map[string]any, 0, 30)
	for i := 0; i < 30; i++ {
		rows = append(rows, map[string]any{"region": fmt.Sprintf("r%02d", i), "sales": float64(i)})
	}
	payload, _ := json.Marshal(map[string]any{
		"success":   true,
		"row_count": len(rows),
		"results":   rows,
	})
	deps.Results.Put("toolu_9", string(payload))
	return deps
}

func barSpecFor(file string) string {
	return fmt.Sprintf(`{
		"version": "1",
		"data": {"source": {"file": %q}},
		"chart": {
			"type": "bar",
			"encoding": {
				"x": {"field": "region", "type": "category"},
				"y": {"field": "sales", "type": "number"}
			}
		}
	}`, file)
}

func TestVizToolRejectsBadFileKey(t *testing.T) {
	deps := vizDeps("")
	for _, file := range []string{"", "../secrets.json", "result_a.txt", "plain.json"} {
		input, _ := json.Marshal(map[string]string{"request": "chart", "file": file})
		payload := runTool(t, deps, "viz", "c1", string(input))
		if payload["error"] != "Invalid result file key format." {
			t.Fatalf("file %q: payload = %v", file, payload)
		}
	}
}

func TestVizToolMissingResult(t *testing.T) {
	deps := vizDeps(barSpecFor("result_nope.json"))
	payload := runTool(t, deps, "viz", "c1", `{"request": "chart", "file": "result_nope.json"}`)
	if payload["error"] != "Tool output not found in message history." {
		t.Fatalf("payload = %v", payload)
	}
}

func TestVizToolGeneratesSpecWithBarDefaults(t *testing.T) {
	deps := vizDeps(barSpecFor("result_toolu_9.json"))
	payload := runTool(t, deps, "viz", "c1", `{"request": "sales by region", "file": "result_toolu_9.json", "chart_type": "bar"}`)
	if payload["error"] != nil {
		t.Fatalf("payload = %v", payload)
	}

	var spec viz.VizSpec
	raw, _ := json.Marshal(payload)
	if err := json.Unmarshal(raw, &spec); err != nil {
		t.Fatalf("spec decode: %v", err)
	}
	if spec.Chart.Type != viz.ChartBar {
		t.Fatalf("chart = %+v", spec.Chart)
	}
	// 30 rows and no transforms in the model output: defaults add desc
	// sort on the Y field plus a limit of 20.
	if len(spec.Transform) != 2 {
		t.Fatalf("transforms = %+v", spec.Transform)
	}
	if spec.Transform[0].Sort[0].Field != "sales" || spec.Transform[0].Sort[0].Dir != "desc" {
		t.Fatalf("sort = %+v", spec.Transform[0])
	}
	if spec.Transform[1].Limit != 20 {
		t.Fatalf("limit = %+v", spec.Transform[1])
	}
}

func TestVizToolInvalidSpecSurfacesDetails(t *testing.T) {
	deps := vizDeps(`{"version": "3"}`)
	payload := runTool(t, deps, "viz", "c1", `{"request": "chart", "file": "result_toolu_9.json"}`)
	if payload["error"] != "Failed to generate a valid visualization spec." {
		t.Fatalf("payload = %v", payload)
	}
	if payload["details"] == nil {
		t.Fatal("details missing")
	}
	// All retries consumed before giving up.
	if calls := deps.SpecClient.(*specClient).calls; calls != 3 {
		t.Fatalf("stream calls = %d, want 3", calls)
	}
}

func TestVizToolWithoutClient(t *testing.T) {
	deps := &Deps{Results: NewResultCache()}
	payload := runTool(t, deps, "viz", "c1", `{"request": "chart", "file": "result_a.json"}`)
	msg, _ := payload["error"].(string)
	if msg == "" {
		t.Fatalf("payload = %v", payload)
	}
}
