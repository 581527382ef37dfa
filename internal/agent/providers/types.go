// Package providers implements streaming LLM clients. The chunk/response
// event model is the unifying contract across providers; the wire format is
// each SDK's concern.
package providers

import (
	"context"
	"encoding/json"

	"github.com/sqlsaber/sqlsaber/pkg/models"
)

// ToolDef describes one tool offered to the model.
type ToolDef struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// Request is one streaming completion turn.
type Request struct {
	Model     string
	System    string
	Turns     []models.Turn
	Tools     []ToolDef
	MaxTokens int

	// ThinkingBudget enables extended thinking when positive (token budget).
	ThinkingBudget int64
}

// Chunk is one element of the stream. Exactly one field is set.
type Chunk struct {
	// Text is an incremental text delta.
	Text string

	// ToolUse announces a tool_use block as soon as its id and name are
	// known; input follows in the final response.
	ToolUse *models.ToolCall

	// Response is the sealed final result. The channel closes after it.
	Response *Response

	// Err terminates the stream.
	Err error
}

// Response is the reassembled result of one model turn.
type Response struct {
	Blocks     []models.ContentBlock
	StopReason models.StopReason
}

// ToolCalls extracts the tool_use blocks of the response in block order.
func (r *Response) ToolCalls() []models.ToolCall {
	var calls []models.ToolCall
	for _, b := range r.Blocks {
		if b.Type == models.BlockToolUse {
			calls = append(calls, models.ToolCall{ID: b.ID, Name: b.Name, Input: b.Input})
		}
	}
	return calls
}

// Text concatenates the text blocks of the response.
func (r *Response) Text() string {
	var out string
	for _, b := range r.Blocks {
		if b.Type == models.BlockText {
			out += b.Text
		}
	}
	return out
}

// Client performs one LLM turn as a stream of chunks. Implementations close
// the channel after the final Response or an Err chunk; cancellation via ctx
// ends the stream without a Response.
type Client interface {
	Stream(ctx context.Context, req *Request) (<-chan *Chunk, error)
	Name() string
}
