package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sqlsaber/sqlsaber/pkg/models"
)

const defaultOpenAIModel = "gpt-4o"

// OpenAIClient streams completions from the OpenAI chat API. Unlike the
// Anthropic wire format, the system prompt is a leading message and tool
// results are separate role "tool" messages; the chunk contract hides both.
type OpenAIClient struct {
	client       *openai.Client
	maxRetries   int
	retryDelay   time.Duration
	defaultModel string
}

// OpenAIConfig configures an OpenAIClient. Only APIKey is required.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
}

// NewOpenAIClient validates config and builds a client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaultOpenAIModel
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		client:       openai.NewClientWithConfig(clientCfg),
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (c *OpenAIClient) Name() string { return "openai" }

// Stream performs one turn against the chat completions API.
func (c *OpenAIClient) Stream(ctx context.Context, req *Request) (<-chan *Chunk, error) {
	model := c.model(req.Model)
	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: c.convertTurns(req.System, req.Turns),
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = c.convertTools(req.Tools)
	}

	var stream *openai.ChatCompletionStream
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}
		stream, lastErr = c.client.CreateChatCompletionStream(ctx, chatReq)
		if lastErr == nil {
			break
		}
		wrapped := c.wrapError(lastErr, model)
		if !isRetryable(wrapped) {
			return nil, wrapped
		}
		lastErr = wrapped
	}
	if lastErr != nil {
		return nil, fmt.Errorf("openai: max retries exceeded: %w", lastErr)
	}

	chunks := make(chan *Chunk)
	go c.processStream(ctx, stream, chunks, model)
	return chunks, nil
}

func (c *OpenAIClient) processStream(ctx context.Context, stream *openai.ChatCompletionStream, chunks chan<- *Chunk, model string) {
	defer close(chunks)
	defer stream.Close()

	var text strings.Builder
	type partialCall struct {
		id, name  string
		args      strings.Builder
		announced bool
	}
	calls := make(map[int]*partialCall)
	var order []int

	seal := func() *Response {
		resp := &Response{StopReason: models.StopEndTurn}
		if text.Len() > 0 {
			resp.Blocks = append(resp.Blocks, models.TextBlock(text.String()))
		}
		for _, i := range order {
			pc := calls[i]
			if pc.id == "" || pc.name == "" {
				continue
			}
			args := pc.args.String()
			if args == "" {
				args = "{}"
			}
			resp.Blocks = append(resp.Blocks, models.ToolUseBlock(pc.id, pc.name, []byte(args)))
			resp.StopReason = models.StopToolUse
		}
		return resp
	}

	for {
		if ctx.Err() != nil {
			chunks <- &Chunk{Err: ctx.Err()}
			return
		}
		response, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				chunks <- &Chunk{Response: seal()}
				return
			}
			chunks <- &Chunk{Err: c.wrapError(err, model)}
			return
		}
		if len(response.Choices) == 0 {
			continue
		}
		choice := response.Choices[0]

		if choice.Delta.Content != "" {
			text.WriteString(choice.Delta.Content)
			chunks <- &Chunk{Text: choice.Delta.Content}
		}
		for _, tc := range choice.Delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			pc := calls[index]
			if pc == nil {
				pc = &partialCall{}
				calls[index] = pc
				order = append(order, index)
			}
			if tc.ID != "" {
				pc.id = tc.ID
			}
			if tc.Function.Name != "" {
				pc.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				pc.args.WriteString(tc.Function.Arguments)
			}
			if !pc.announced && pc.id != "" && pc.name != "" {
				pc.announced = true
				chunks <- &Chunk{ToolUse: &models.ToolCall{ID: pc.id, Name: pc.name}}
			}
		}
	}
}

func (c *OpenAIClient) convertTurns(system string, turns []models.Turn) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, turn := range turns {
		switch turn.Role {
		case models.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
			for _, b := range turn.Blocks {
				switch b.Type {
				case models.BlockText:
					msg.Content += b.Text
				case models.BlockToolUse:
					msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
						ID:   b.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      b.Name,
							Arguments: string(b.Input),
						},
					})
				}
			}
			out = append(out, msg)
		default:
			if turn.Text != "" {
				out = append(out, openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleUser,
					Content: turn.Text,
				})
			}
			// Each tool result is its own role "tool" message.
			for _, res := range turn.Results {
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    res.Content,
					ToolCallID: res.ToolCallID,
				})
			}
		}
	}
	return out
}

func (c *OpenAIClient) convertTools(tools []ToolDef) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  json.RawMessage(tool.Schema),
			},
		}
	}
	return out
}

func (c *OpenAIClient) model(model string) string {
	if model == "" {
		return c.defaultModel
	}
	return model
}

func (c *OpenAIClient) wrapError(err error, model string) error {
	if err == nil {
		return nil
	}
	if _, ok := AsProviderError(err); ok {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		pe := NewProviderError("openai", model, err).WithStatus(apiErr.HTTPStatusCode)
		if apiErr.Message != "" {
			pe.Message = apiErr.Message
		}
		if code, ok := apiErr.Code.(string); ok {
			pe.Code = code
		}
		return pe
	}
	return NewProviderError("openai", model, err)
}
