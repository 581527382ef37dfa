package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/sqlsaber/sqlsaber/pkg/models"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicClient streams completions from the Anthropic Messages API.
// Safe for concurrent use; every Stream call owns its own goroutine.
type AnthropicClient struct {
	client       anthropic.Client
	maxRetries   int
	retryDelay   time.Duration
	defaultModel string
}

// AnthropicConfig configures an AnthropicClient. Only APIKey is required.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	MaxRetries   int           // default 3
	RetryDelay   time.Duration // base for exponential backoff, default 1s
	DefaultModel string
}

// NewAnthropicClient validates config and builds a client.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaultAnthropicModel
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicClient{
		client:       anthropic.NewClient(opts...),
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (c *AnthropicClient) Name() string { return "anthropic" }

// Stream performs one turn. Transient failures before the first event are
// retried with exponential backoff; once events flow, errors terminate the
// stream.
func (c *AnthropicClient) Stream(ctx context.Context, req *Request) (<-chan *Chunk, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}
	model := c.model(req.Model)

	chunks := make(chan *Chunk)
	go func() {
		defer close(chunks)

		for attempt := 0; attempt <= c.maxRetries; attempt++ {
			stream := c.client.Messages.NewStreaming(ctx, params)
			emitted, done := c.processStream(ctx, stream, chunks, model)
			if done {
				return
			}
			err := stream.Err()
			if err == nil {
				err = errors.New("anthropic: stream ended without message_stop")
			}
			wrapped := c.wrapError(err, model)
			if emitted || !isRetryable(wrapped) || attempt == c.maxRetries {
				chunks <- &Chunk{Err: wrapped}
				return
			}
			backoff := c.retryDelay * time.Duration(math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				chunks <- &Chunk{Err: ctx.Err()}
				return
			case <-time.After(backoff):
			}
		}
	}()
	return chunks, nil
}

// processStream consumes SDK events until message_stop. It reports whether
// any chunk was emitted and whether the stream completed (response sent or
// unrecoverable mid-stream error already reported).
func (c *AnthropicClient) processStream(ctx context.Context, stream *ssestream.Stream[anthropic.MessageStreamEventUnion], chunks chan<- *Chunk, model string) (emitted, done bool) {
	asm := newBlockAssembler()

	for stream.Next() {
		if ctx.Err() != nil {
			chunks <- &Chunk{Err: ctx.Err()}
			return emitted, true
		}
		event := stream.Current()

		switch event.Type {
		case "content_block_start":
			start := event.AsContentBlockStart()
			switch start.ContentBlock.Type {
			case "text":
				asm.startText(start.Index)
			case "tool_use":
				tu := start.ContentBlock.AsToolUse()
				asm.startToolUse(start.Index, tu.ID, tu.Name)
				chunks <- &Chunk{ToolUse: &models.ToolCall{ID: tu.ID, Name: tu.Name}}
				emitted = true
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta()
			switch delta.Delta.Type {
			case "text_delta":
				if delta.Delta.Text != "" {
					asm.appendText(delta.Index, delta.Delta.Text)
					chunks <- &Chunk{Text: delta.Delta.Text}
					emitted = true
				}
			case "input_json_delta":
				if delta.Delta.PartialJSON != "" {
					asm.appendInput(delta.Index, delta.Delta.PartialJSON)
				}
			}

		case "message_stop":
			chunks <- &Chunk{Response: asm.seal()}
			return true, true

		case "error":
			chunks <- &Chunk{Err: c.wrapError(errors.New("anthropic stream error"), model)}
			return emitted, true
		}
	}
	return emitted, false
}

func (c *AnthropicClient) buildParams(req *Request) (anthropic.MessageNewParams, error) {
	messages, err := convertTurns(req.Turns)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model(req.Model)),
		Messages:  messages,
		MaxTokens: int64(maxTokens(req.MaxTokens)),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}
	if req.ThinkingBudget > 0 {
		budget := req.ThinkingBudget
		if budget < 1024 {
			budget = 1024
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}
	return params, nil
}

func convertTurns(turns []models.Turn) ([]anthropic.MessageParam, error) {
	var out []anthropic.MessageParam
	for _, turn := range turns {
		var content []anthropic.ContentBlockParamUnion

		if turn.Text != "" {
			content = append(content, anthropic.NewTextBlock(turn.Text))
		}
		for _, res := range turn.Results {
			content = append(content, anthropic.NewToolResultBlock(res.ToolCallID, res.Content, res.IsError))
		}
		for _, b := range turn.Blocks {
			switch b.Type {
			case models.BlockText:
				content = append(content, anthropic.NewTextBlock(b.Text))
			case models.BlockToolUse:
				var input map[string]any
				if err := json.Unmarshal(b.Input, &input); err != nil {
					return nil, fmt.Errorf("anthropic: invalid tool input for %s: %w", b.Name, err)
				}
				content = append(content, anthropic.NewToolUseBlock(b.ID, input, b.Name))
			}
		}

		if turn.Role == models.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(content...))
		} else {
			out = append(out, anthropic.NewUserMessage(content...))
		}
	}
	return out, nil
}

func convertTools(tools []ToolDef) ([]anthropic.ToolUnionParam, error) {
	var out []anthropic.ToolUnionParam
	for _, tool := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(tool.Schema, &schema); err != nil {
			return nil, fmt.Errorf("anthropic: invalid tool schema for %s: %w", tool.Name, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("anthropic: invalid tool schema for %s", tool.Name)
		}
		param.OfTool.Description = anthropic.String(tool.Description)
		out = append(out, param)
	}
	return out, nil
}

func (c *AnthropicClient) model(model string) string {
	if model == "" {
		return c.defaultModel
	}
	return model
}

func maxTokens(n int) int {
	if n <= 0 {
		return 4096
	}
	return n
}

type anthropicErrorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func (c *AnthropicClient) wrapError(err error, model string) error {
	if err == nil {
		return nil
	}
	if _, ok := AsProviderError(err); ok {
		return err
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		pe := NewProviderError("anthropic", model, err).WithStatus(apiErr.StatusCode)
		pe.RequestID = apiErr.RequestID
		if raw := apiErr.RawJSON(); raw != "" {
			var payload anthropicErrorPayload
			if json.Unmarshal([]byte(raw), &payload) == nil {
				if payload.Error.Message != "" {
					pe.Message = payload.Error.Message
				}
				if payload.Error.Type != "" {
					pe.Code = payload.Error.Type
				}
				if payload.RequestID != "" {
					pe.RequestID = payload.RequestID
				}
			}
		}
		return pe
	}
	return NewProviderError("anthropic", model, err)
}
