package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient is the Anthropic LLM client.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// Models returns available models.
func (c *AnthropicClient) Models() []string {
	return []string{
		"claude-3-5-sonnet-20241022",
		"claude-3-5-haiku-20241022",
		"claude-3-opus-20240229",
	}
}

// Generate runs a single generation round.
func (c *AnthropicClient) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, toAnthropicMessage(msg))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(model),
		MaxTokens: anthropic.F(int64(maxTokens)),
		Messages:  anthropic.F(messages),
	}
	if req.System != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{
			{
				Type: anthropic.F(anthropic.TextBlockParamTypeText),
				Text: anthropic.F(req.System),
			},
		})
	}
	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			tools = append(tools, anthropic.ToolParam{
				Name:        anthropic.F(tool.Name),
				Description: anthropic.F(tool.Description),
				InputSchema: anthropic.F[interface{}](tool.Parameters),
			})
		}
		params.Tools = anthropic.F(tools)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	out := &GenerationResponse{
		Model:      resp.Model,
		TokensIn:   int(resp.Usage.InputTokens),
		TokensOut:  int(resp.Usage.OutputTokens),
		StopReason: string(resp.StopReason),
		LatencyMs:  time.Since(start).Milliseconds(),
	}
	for _, block := range resp.Content {
		switch block.Type {
		case anthropic.ContentBlockTypeText:
			out.Content += block.Text
		case anthropic.ContentBlockTypeToolUse:
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: json.RawMessage(block.Input),
			})
		}
	}

	return out, nil
}

// toAnthropicMessage converts one chat turn. Tool results become user-role
// tool_result blocks; assistant turns that requested tools carry their
// tool_use blocks so the tool_use/tool_result pairing the API expects holds.
func toAnthropicMessage(msg ChatMessage) anthropic.MessageParam {
	if msg.Role == "tool" {
		return anthropic.MessageParam{
			Role: anthropic.F(anthropic.MessageParamRoleUser),
			Content: anthropic.F([]anthropic.ContentBlockParamUnion{
				anthropic.ToolResultBlockParam{
					Type:      anthropic.F(anthropic.ToolResultBlockParamTypeToolResult),
					ToolUseID: anthropic.F(msg.ToolCallID),
					Content: anthropic.F([]anthropic.ToolResultBlockParamContentUnion{
						anthropic.TextBlockParam{
							Type: anthropic.F(anthropic.TextBlockParamTypeText),
							Text: anthropic.F(msg.Content),
						},
					}),
				},
			}),
		}
	}

	var blocks []anthropic.ContentBlockParamUnion
	if msg.Content != "" {
		blocks = append(blocks, anthropic.TextBlockParam{
			Type: anthropic.F(anthropic.TextBlockParamTypeText),
			Text: anthropic.F(msg.Content),
		})
	}
	for _, call := range msg.ToolCalls {
		blocks = append(blocks, anthropic.ToolUseBlockParam{
			Type:  anthropic.F(anthropic.ToolUseBlockParamTypeToolUse),
			ID:    anthropic.F(call.ID),
			Name:  anthropic.F(call.Name),
			Input: anthropic.F[interface{}](json.RawMessage(call.Arguments)),
		})
	}

	return anthropic.MessageParam{
		Role:    anthropic.F(anthropic.MessageParamRole(msg.Role)),
		Content: anthropic.F(blocks),
	}
}
