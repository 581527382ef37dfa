package models

import "encoding/json"

// EventType discriminates stream events emitted by the orchestrator.
type EventType string

const (
	EventText        EventType = "text"
	EventToolUse     EventType = "tool_use"
	EventToolResult  EventType = "tool_result"
	EventQueryResult EventType = "query_result"
	EventProcessing  EventType = "processing"
	EventPlotResult  EventType = "plot_result"
	EventError       EventType = "error"
)

// ToolUseStatus reports the lifecycle stage of a tool_use event.
type ToolUseStatus string

const (
	ToolUseStarted   ToolUseStatus = "started"
	ToolUseExecuting ToolUseStatus = "executing"
)

// StreamEvent is the typed contract between the orchestrator and its
// consumers (CLI, API, tests). Exactly the fields for the given Type are set.
type StreamEvent struct {
	Type EventType `json:"type"`

	// Text holds the delta for text events and the message for
	// processing and error events.
	Text string `json:"text,omitempty"`

	// ToolName and Status are set for tool_use, tool_result, and
	// plot_result events.
	ToolName string        `json:"tool_name,omitempty"`
	Status   ToolUseStatus `json:"status,omitempty"`

	// Input carries the tool input for tool_use (executing) and
	// plot_result events.
	Input json.RawMessage `json:"input,omitempty"`

	// Payload carries the raw JSON tool result for tool_result and
	// plot_result events.
	Payload string `json:"payload,omitempty"`

	// Query and Rows are set for query_result events.
	Query string           `json:"query,omitempty"`
	Rows  []map[string]any `json:"rows,omitempty"`
}

// TextEvent builds a text delta event.
func TextEvent(delta string) StreamEvent {
	return StreamEvent{Type: EventText, Text: delta}
}

// ToolUseEvent builds a tool lifecycle event.
func ToolUseEvent(name string, status ToolUseStatus, input json.RawMessage) StreamEvent {
	return StreamEvent{Type: EventToolUse, ToolName: name, Status: status, Input: input}
}

// ToolResultEvent builds a tool result event.
func ToolResultEvent(name, payload string) StreamEvent {
	return StreamEvent{Type: EventToolResult, ToolName: name, Payload: payload}
}

// QueryResultEvent builds a query result event.
func QueryResultEvent(query string, rows []map[string]any) StreamEvent {
	return StreamEvent{Type: EventQueryResult, Query: query, Rows: rows}
}

// ProcessingEvent builds a progress notice.
func ProcessingEvent(msg string) StreamEvent {
	return StreamEvent{Type: EventProcessing, Text: msg}
}

// PlotResultEvent builds a visualization result event.
func PlotResultEvent(name string, input json.RawMessage, payload string) StreamEvent {
	return StreamEvent{Type: EventPlotResult, ToolName: name, Input: input, Payload: payload}
}

// ErrorEvent builds a terminal error event.
func ErrorEvent(msg string) StreamEvent {
	return StreamEvent{Type: EventError, Text: msg}
}
