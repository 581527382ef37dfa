// Package models defines the shared types exchanged between the agent
// orchestrator, the streaming LLM clients, the tool layer, and consumers of
// the event stream.
package models

import "encoding/json"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType discriminates assistant content blocks.
type BlockType string

const (
	BlockText    BlockType = "text"
	BlockToolUse BlockType = "tool_use"
)

// ContentBlock is one element of an assistant turn: either streamed text or a
// tool-use request. Blocks arrive from the provider in index order and are
// committed to history in that order.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// Text is set for text blocks.
	Text string `json:"text,omitempty"`

	// ID, Name, and Input are set for tool_use blocks. Input holds the
	// last successfully parsed value of the streamed input JSON.
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ToolUseBlock builds a tool_use content block.
func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// ToolCall is a model-initiated request to execute a named tool.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult answers one ToolCall. Content is always a JSON-encoded string;
// tool runtime failures are encoded as {"error": ...} payloads rather than
// IsError so the model can observe and recover.
type ToolResult struct {
	ToolCallID string `json:"tool_use_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Turn is one entry in a conversation. User turns carry either prompt text or
// the tool results answering the previous assistant turn; assistant turns
// carry content blocks.
type Turn struct {
	Role Role `json:"role"`

	// Text is the prompt for plain user turns.
	Text string `json:"text,omitempty"`

	// Blocks is the content of assistant turns.
	Blocks []ContentBlock `json:"blocks,omitempty"`

	// Results is set on user turns that answer tool_use blocks.
	Results []ToolResult `json:"results,omitempty"`
}

// UserTurn builds a plain user turn.
func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text}
}

// AssistantTurn builds an assistant turn, dropping empty text blocks so they
// never reach committed history.
func AssistantTurn(blocks []ContentBlock) Turn {
	kept := make([]ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == BlockText && b.Text == "" {
			continue
		}
		kept = append(kept, b)
	}
	return Turn{Role: RoleAssistant, Blocks: kept}
}

// ToolResultTurn builds the user turn answering a batch of tool calls.
func ToolResultTurn(results []ToolResult) Turn {
	return Turn{Role: RoleUser, Results: results}
}

// ToolCalls extracts the tool_use blocks of an assistant turn in order.
func (t Turn) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, b := range t.Blocks {
		if b.Type == BlockToolUse {
			calls = append(calls, ToolCall{ID: b.ID, Name: b.Name, Input: b.Input})
		}
	}
	return calls
}

// StopReason reports why the model ended a turn.
type StopReason string

const (
	StopEndTurn StopReason = "end_turn"
	StopToolUse StopReason = "tool_use"
)
