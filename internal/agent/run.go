package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sqlsaber/sqlsaber/internal/agent/providers"
	"github.com/sqlsaber/sqlsaber/internal/tools"
	"github.com/sqlsaber/sqlsaber/pkg/models"
)

const (
	defaultMaxTokens  = 8192
	processingMessage = "Analyzing results..."
)

// QueryStream runs one prompt through the agent loop and streams events. The
// channel closes when the run completes, fails, or the context is cancelled.
// History gains the user turn and every fully executed assistant/tool-result
// pair; cancellation before a batch finishes discards the whole pair, so a
// committed tool_use always has genuinely executed results.
func (a *Agent) QueryStream(ctx context.Context, prompt string) <-chan models.StreamEvent {
	events := make(chan models.StreamEvent, 16)
	go func() {
		defer close(events)
		a.run(ctx, prompt, events)
	}()
	return events
}

// Query runs one prompt to completion and returns the final text.
func (a *Agent) Query(ctx context.Context, prompt string) (string, error) {
	var text string
	for ev := range a.QueryStream(ctx, prompt) {
		switch ev.Type {
		case models.EventText:
			text += ev.Text
		case models.EventError:
			return text, errors.New(ev.Text)
		}
	}
	if err := ctx.Err(); err != nil {
		return text, err
	}
	return text, nil
}

func (a *Agent) run(ctx context.Context, prompt string, events chan<- models.StreamEvent) {
	a.mu.Lock()
	turns := append([]models.Turn(nil), a.history...)
	a.mu.Unlock()

	turns = append(turns, models.UserTurn(prompt))
	pending := []models.Turn{models.UserTurn(prompt)}
	deps := a.deps()

	for {
		resp, err := a.streamTurn(ctx, turns, events)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			a.logger.Error("model turn failed", "error", err)
			a.emit(ctx, events, models.ErrorEvent(err.Error()))
			return
		}

		assistant := models.AssistantTurn(resp.Blocks)
		calls := assistant.ToolCalls()
		if resp.StopReason != models.StopToolUse || len(calls) == 0 {
			pending = append(pending, assistant)
			break
		}

		// Cancellation before or during the batch discards the pending
		// turns entirely. Committing a partially executed batch would
		// record results that never ran.
		if ctx.Err() != nil {
			return
		}
		results := make([]models.ToolResult, 0, len(calls))
		for _, call := range calls {
			if ctx.Err() != nil {
				return
			}
			a.emit(ctx, events, models.ToolUseEvent(call.Name, models.ToolUseExecuting, call.Input))
			payload := a.executeTool(ctx, deps, call)
			a.emitToolOutcome(ctx, events, call, payload)
			results = append(results, models.ToolResult{ToolCallID: call.ID, Content: payload})
		}

		batch := []models.Turn{assistant, models.ToolResultTurn(results)}
		turns = append(turns, batch...)
		pending = append(pending, batch...)

		// The safe commit point: a complete, executed tool-result turn.
		// A cancel observed after this still keeps history resumable.
		a.commit(pending)
		pending = nil

		if ctx.Err() != nil {
			return
		}
		a.emit(ctx, events, models.ProcessingEvent(processingMessage))
	}

	a.commit(pending)
}

// streamTurn performs one model turn, forwarding text deltas and tool_use
// announcements as they arrive.
func (a *Agent) streamTurn(ctx context.Context, turns []models.Turn, events chan<- models.StreamEvent) (*providers.Response, error) {
	req := &providers.Request{
		Model:          a.model,
		System:         a.SystemPrompt(true),
		Turns:          turns,
		Tools:          tools.Defs(a.toolset),
		MaxTokens:      defaultMaxTokens,
		ThinkingBudget: a.thinkingBudget,
	}
	chunks, err := a.client.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	for chunk := range chunks {
		switch {
		case chunk.Err != nil:
			return nil, chunk.Err
		case chunk.Response != nil:
			return chunk.Response, nil
		case chunk.ToolUse != nil:
			a.emit(ctx, events, models.ToolUseEvent(chunk.ToolUse.Name, models.ToolUseStarted, nil))
		case chunk.Text != "":
			a.emit(ctx, events, models.TextEvent(chunk.Text))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, errors.New("agent: stream closed without a final response")
}

// executeTool runs one tool call. Failures become {"error": ...} payloads so
// the model sees them in the tool result instead of ending the run.
func (a *Agent) executeTool(ctx context.Context, deps *tools.Deps, call models.ToolCall) string {
	tool, ok := a.toolset[call.Name]
	if !ok {
		return errorPayload(fmt.Sprintf("unknown tool: %s", call.Name))
	}
	out, err := tool.Execute(ctx, deps, tools.Call{ID: call.ID, Input: call.Input})
	if err != nil {
		a.logger.Error("tool execution failed", "tool", call.Name, "error", err)
		return errorPayload(err.Error())
	}
	return out
}

// emitToolOutcome translates a completed tool call into the event its
// consumers render: query results for SQL, plot payloads for viz, and the
// raw payload for everything else.
func (a *Agent) emitToolOutcome(ctx context.Context, events chan<- models.StreamEvent, call models.ToolCall, payload string) {
	switch call.Name {
	case "execute_sql":
		if query, rows, ok := parseQueryPayload(call.Input, payload); ok {
			a.emit(ctx, events, models.QueryResultEvent(query, rows))
			return
		}
		a.emit(ctx, events, models.ToolResultEvent(call.Name, payload))
	case "viz":
		a.emit(ctx, events, models.PlotResultEvent(call.Name, call.Input, payload))
	default:
		a.emit(ctx, events, models.ToolResultEvent(call.Name, payload))
	}
}

// parseQueryPayload extracts the query text and result rows from a
// successful execute_sql payload.
func parseQueryPayload(input json.RawMessage, payload string) (string, []map[string]any, bool) {
	var args struct {
		Query string `json:"query"`
	}
	_ = json.Unmarshal(input, &args)

	var out struct {
		Success bool             `json:"success"`
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal([]byte(payload), &out); err != nil || !out.Success {
		return "", nil, false
	}
	return args.Query, out.Results, true
}

// emit sends an event unless the consumer is gone.
func (a *Agent) emit(ctx context.Context, events chan<- models.StreamEvent, ev models.StreamEvent) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

func errorPayload(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}
