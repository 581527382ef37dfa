package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sqlsaber/sqlsaber/internal/viz"
)

func init() {
	Register("viz", func() Tool { return &vizTool{} })
}

// vizTool asks the visualization sub-agent for a chart spec over a
// previously captured execute_sql result.
type vizTool struct{}

func (vizTool) Name() string { return "viz" }

func (vizTool) Description() string {
	return "Generate a terminal visualization for SQL results. Pass the result file key " +
		"returned by execute_sql and describe the chart you want. Returns a validated " +
		"visualization spec."
}

func (vizTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"request": {
				"type": "string",
				"description": "Natural language description of the desired visualization"
			},
			"file": {
				"type": "string",
				"description": "Result file key from execute_sql (e.g., \"result_abc123.json\")"
			},
			"chart_type": {
				"type": "string",
				"enum": ["bar", "line", "scatter", "boxplot", "histogram"],
				"description": "Optional hint for the chart type"
			}
		},
		"required": ["request", "file"]
	}`)
}

func (vizTool) Execute(ctx context.Context, deps *Deps, call Call) (string, error) {
	if deps == nil {
		return "", fmt.Errorf("viz: no deps")
	}
	var args struct {
		Request   string `json:"request"`
		File      string `json:"file"`
		ChartType string `json:"chart_type"`
	}
	if err := json.Unmarshal(call.Input, &args); err != nil {
		return errorJSON(fmt.Sprintf("Invalid arguments: %v", err)), nil
	}
	if args.File == "" || !viz.ResultFilePattern.MatchString(args.File) {
		return errorJSON("Invalid result file key format."), nil
	}
	if deps.SpecClient == nil {
		return errorJSON("Visualization is unavailable: no model client configured."), nil
	}

	toolCallID := strings.TrimSuffix(strings.TrimPrefix(args.File, "result_"), ".json")
	payload, ok := lookupResult(deps, toolCallID)
	if !ok {
		return errorJSON("Tool output not found in message history."), nil
	}

	summary := viz.ExtractDataSummary(payload)

	agent := viz.NewSpecAgent(deps.SpecClient, deps.SpecModel)
	spec, err := agent.GenerateSpec(ctx, viz.SpecRequest{
		Request:       args.Request,
		Columns:       summary.Columns,
		RowCount:      summary.RowCount,
		File:          args.File,
		ChartTypeHint: args.ChartType,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return mustJSON(map[string]string{
				"error":   "Spec generation timed out.",
				"details": fmt.Sprintf("Timed out after %s.", viz.SpecTimeout),
			}), nil
		}
		return mustJSON(map[string]string{
			"error":   "Failed to generate a valid visualization spec.",
			"details": err.Error(),
		}), nil
	}

	viz.ApplyBarDefaults(spec, summary.RowCount)
	if spec.Transform == nil {
		spec.Transform = []viz.Transform{}
	}
	return mustJSON(spec), nil
}

// lookupResult finds a captured execute_sql payload by tool call ID and
// decodes it. Non-object payloads are wrapped like scalar rows.
func lookupResult(deps *Deps, toolCallID string) (map[string]any, bool) {
	if deps.Results == nil {
		return nil, false
	}
	raw, ok := deps.Results.Get(toolCallID)
	if !ok {
		return nil, false
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return map[string]any{"result": raw}, true
	}
	return payload, true
}

func (vizTool) DisplaySpec() *DisplaySpec {
	return &DisplaySpec{
		Name: "Visualize",
		Executing: ExecutingConfig{
			Message:  "Generating visualization",
			Icon:     "📊",
			ShowArgs: []string{"request"},
		},
		Result: ResultConfig{Format: "text", ErrorField: "error"},
	}
}
