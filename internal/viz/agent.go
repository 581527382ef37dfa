package viz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sqlsaber/sqlsaber/internal/agent/providers"
	"github.com/sqlsaber/sqlsaber/pkg/models"
)

const (
	// maxSpecRetries is how many validation-feedback rounds the agent gets
	// after its first attempt.
	maxSpecRetries = 2

	// SpecTimeout bounds one GenerateSpec call end to end.
	SpecTimeout = 300 * time.Second

	// maxToolRounds bounds the helper-tool loop within one attempt.
	maxToolRounds = 10
)

const specSystemPrompt = `You are a visualization spec generator. Given a user's request and data summary, generate a valid JSON visualization spec.

## Workflow
1. Decide the appropriate chart type based on the request and data
2. Call ` + "`get_vizspec_template`" + ` with the chart type and file to get the correct spec structure
3. Fill in the template with actual column names from the provided data summary
4. Return ONLY the final JSON spec (no explanations, no markdown code blocks)

## Chart Type Selection
- Comparing categories -> bar
- Comparing categories across series -> bar with encoding.series
- Trend over time -> line
- Correlation between two numbers -> scatter
- Distribution of one variable -> histogram
- Distribution comparison across groups -> boxplot

## Transform Operations (optional, add to "transform" array)
- {"sort": [{"field": "col", "dir": "desc"}]} - Sort data
- {"limit": 20} - Limit rows (recommended for bar charts with many categories)
- {"filter": {"field": "col", "op": "!=", "value": null}} - Filter rows

## Rules
1. ALWAYS call ` + "`get_vizspec_template`" + ` first to get the correct structure
2. Use ONLY columns that exist in the provided data summary
3. Match field types: category columns for x in bar charts, numeric columns for y
4. Add limit transform for bar charts to avoid overcrowding (10-20 bars max)
5. Sort bar charts by y value descending for better readability
6. Title should describe what the chart shows
`

// SpecRequest carries everything the spec agent needs for one generation.
type SpecRequest struct {
	Request       string
	Columns       []ColumnSummary
	RowCount      int
	File          string
	ChartTypeHint string
}

// SpecAgent drives a focused model conversation that produces a validated
// VizSpec. Validation failures are fed back into the conversation so the
// model can self-correct without losing the template it fetched.
type SpecAgent struct {
	client providers.Client
	model  string
	logger *slog.Logger
}

// NewSpecAgent builds a spec agent on the given provider client. Model may
// be empty to use the client's default.
func NewSpecAgent(client providers.Client, model string) *SpecAgent {
	return &SpecAgent{
		client: client,
		model:  model,
		logger: slog.Default().With("component", "viz.spec_agent"),
	}
}

// GenerateSpec runs the generation loop and returns a validated spec.
func (a *SpecAgent) GenerateSpec(ctx context.Context, req SpecRequest) (*VizSpec, error) {
	ctx, cancel := context.WithTimeout(ctx, SpecTimeout)
	defer cancel()

	turns := []models.Turn{models.UserTurn(a.buildPrompt(req))}

	var lastErr error
	for attempt := 0; attempt <= maxSpecRetries; attempt++ {
		output, history, err := a.converse(ctx, turns)
		if err != nil {
			return nil, err
		}
		turns = history

		spec, err := parseSpecOutput(output)
		if err == nil {
			return spec, nil
		}
		lastErr = err
		if attempt == maxSpecRetries {
			break
		}
		a.logger.Debug("spec validation failed",
			"attempt", attempt+1,
			"max_attempts", maxSpecRetries+1,
			"error", err)
		turns = append(turns, models.UserTurn(fmt.Sprintf(
			"The spec you returned failed validation:\n%v\n\nFix the JSON and return ONLY the corrected spec.", err)))
	}
	return nil, lastErr
}

// converse runs one attempt: stream a response, answer helper tool calls,
// repeat until the model stops with text. Returns the final text plus the
// accumulated history so retries keep full context.
func (a *SpecAgent) converse(ctx context.Context, turns []models.Turn) (string, []models.Turn, error) {
	history := append([]models.Turn(nil), turns...)

	for round := 0; round < maxToolRounds; round++ {
		resp, err := a.stream(ctx, history)
		if err != nil {
			return "", nil, err
		}
		history = append(history, models.AssistantTurn(resp.Blocks))

		if resp.StopReason != models.StopToolUse {
			return strings.TrimSpace(resp.Text()), history, nil
		}

		var results []models.ToolResult
		for _, call := range resp.ToolCalls() {
			results = append(results, models.ToolResult{
				ToolCallID: call.ID,
				Content:    a.runHelperTool(call),
			})
		}
		history = append(history, models.ToolResultTurn(results))
	}
	return "", nil, errors.New("viz: spec agent exceeded tool call budget")
}

func (a *SpecAgent) stream(ctx context.Context, turns []models.Turn) (*providers.Response, error) {
	chunks, err := a.client.Stream(ctx, &providers.Request{
		Model:  a.model,
		System: specSystemPrompt,
		Turns:  turns,
		Tools:  helperToolDefs(),
	})
	if err != nil {
		return nil, err
	}
	for chunk := range chunks {
		switch {
		case chunk.Err != nil:
			return nil, chunk.Err
		case chunk.Response != nil:
			return chunk.Response, nil
		}
	}
	return nil, errors.New("viz: stream closed without a response")
}

func (a *SpecAgent) runHelperTool(call models.ToolCall) string {
	switch call.Name {
	case "get_vizspec_template":
		var args struct {
			ChartType string `json:"chart_type"`
			File      string `json:"file"`
		}
		if err := json.Unmarshal(call.Input, &args); err != nil {
			return errorPayload(fmt.Sprintf("invalid arguments: %v", err))
		}
		tmpl, err := SpecTemplate(args.ChartType, args.File)
		if err != nil {
			return errorPayload(err.Error())
		}
		return mustJSON(tmpl)
	case "get_available_chart_types":
		return mustJSON(ListChartTypes())
	}
	return errorPayload(fmt.Sprintf("unknown tool: %s", call.Name))
}

func helperToolDefs() []providers.ToolDef {
	return []providers.ToolDef{
		{
			Name: "get_vizspec_template",
			Description: "Get the complete VizSpec template for a chart type. " +
				"Call this FIRST to get the correct JSON structure, then fill in " +
				"the placeholder field names with actual column names from your data.",
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"chart_type": {
						"type": "string",
						"enum": ["bar", "line", "scatter", "boxplot", "histogram"],
						"description": "The chart type to get a template for"
					},
					"file": {
						"type": "string",
						"description": "The result file key (e.g., \"result_abc123.json\")"
					}
				},
				"required": ["chart_type", "file"]
			}`),
		},
		{
			Name: "get_available_chart_types",
			Description: "List available chart types with descriptions. " +
				"Call this if you're unsure which chart type to use for the data.",
			Schema: json.RawMessage(`{"type": "object", "properties": {}}`),
		},
	}
}

func (a *SpecAgent) buildPrompt(req SpecRequest) string {
	columnsJSON, err := json.MarshalIndent(req.Columns, "", "  ")
	if err != nil {
		columnsJSON = []byte("[]")
	}
	hint := ""
	if req.ChartTypeHint != "" {
		hint = "Chart type hint: " + req.ChartTypeHint
	}
	prompt := fmt.Sprintf(
		"## User Request\n%s\n\n## Data Summary\nRow count: %d\nFile: %s\nColumns:\n%s\n\n%s\n\n"+
			"Use `get_vizspec_template` to get the correct spec structure, then fill in the placeholders with actual column names.\n"+
			"Return ONLY the final JSON.",
		strings.TrimSpace(req.Request), req.RowCount, req.File, columnsJSON, hint)
	return strings.TrimSpace(prompt)
}

// parseSpecOutput extracts a JSON object from the model's text and validates
// it. Prose around the JSON is tolerated by slicing from the first "{" to
// the last "}".
func parseSpecOutput(text string) (*VizSpec, error) {
	raw := []byte(text)
	if spec, err := ValidateSpec(raw); err == nil {
		return spec, nil
	} else if json.Valid(raw) {
		// Well-formed JSON that fails the schema gets no second chance
		// from substring extraction.
		return nil, err
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, errors.New("viz: no JSON object in model output")
	}
	return ValidateSpec([]byte(text[start : end+1]))
}

// ApplyBarDefaults adds the readability transforms a bar spec usually wants:
// sort descending by the Y field when no sort is present, and a limit of 20
// when the result has more than 20 rows and no limit is present.
func ApplyBarDefaults(spec *VizSpec, rowCount int) {
	if spec.Chart.Type != ChartBar || spec.Chart.Encoding == nil {
		return
	}
	hasSort, hasLimit := false, false
	for _, t := range spec.Transform {
		if len(t.Sort) > 0 {
			hasSort = true
		}
		if t.Limit > 0 {
			hasLimit = true
		}
	}
	if !hasSort {
		spec.Transform = append(spec.Transform, Transform{
			Sort: []SortItem{{Field: spec.Chart.Encoding.Y.Field, Dir: "desc"}},
		})
	}
	if !hasLimit && rowCount > 20 {
		spec.Transform = append(spec.Transform, Transform{Limit: 20})
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return errorPayload(err.Error())
	}
	return string(b)
}

func errorPayload(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}
