// Package anthropic adapts the Anthropic Messages API to core.LLMClient.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/rs/zerolog"

	"github.com/hattiebot/toolchat/internal/core"
	"github.com/hattiebot/toolchat/internal/registry"
)

const (
	DefaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 4096
)

func init() {
	registry.RegisterClient("anthropic", func(opts registry.ClientOptions) (core.LLMClient, error) {
		var extra []option.RequestOption
		if opts.Timeout > 0 {
			extra = append(extra, option.WithRequestTimeout(opts.Timeout))
		}
		return NewClient(opts.APIKey, opts.Model, opts.Log, extra...), nil
	})
}

// Client calls Claude through the official SDK.
type Client struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	log       zerolog.Logger
}

// NewClient builds a client. An empty model selects DefaultModel; opts go to the SDK.
func NewClient(apiKey, model string, log zerolog.Logger, opts ...option.RequestOption) *Client {
	if model == "" {
		model = DefaultModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: defaultMaxTokens,
		log:       log.With().Str("component", "anthropic").Logger(),
	}
}

func (c *Client) ChatCompletionWithTools(ctx context.Context, messages []core.Message, tools []core.ToolDefinition) (string, []core.ToolCall, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  convertMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", nil, fmt.Errorf("anthropic: %w", err)
	}

	var text strings.Builder
	var calls []core.ToolCall
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			calls = append(calls, core.NewToolCall(block.ID, block.Name, string(block.Input)))
		}
	}
	c.log.Debug().Str("stop_reason", string(msg.StopReason)).Int("tool_calls", len(calls)).Msg("completion")
	return text.String(), calls, nil
}

// convertMessages maps history onto Claude turns. Consecutive tool results are
// grouped into one user message, which the API requires.
func convertMessages(messages []core.Message) []anthropic.MessageParam {
	var result []anthropic.MessageParam
	for i := 0; i < len(messages); {
		m := messages[i]
		switch m.Kind() {
		case core.TurnFunctionCall, core.TurnModelText:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, toolInput(tc.Function.Arguments), tc.Function.Name))
			}
			if len(blocks) > 0 {
				result = append(result, anthropic.NewAssistantMessage(blocks...))
			}
			i++
		case core.TurnToolResult:
			var blocks []anthropic.ContentBlockParamUnion
			for i < len(messages) && messages[i].Kind() == core.TurnToolResult {
				blocks = append(blocks, anthropic.NewToolResultBlock(messages[i].ToolCallID, messages[i].Content, messages[i].IsError))
				i++
			}
			result = append(result, anthropic.NewUserMessage(blocks...))
		default:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			i++
		}
	}
	return result
}

// toolInput turns a JSON argument string into a tool_use input object.
func toolInput(args string) json.RawMessage {
	if strings.TrimSpace(args) == "" || !json.Valid([]byte(args)) {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(args)
}

func convertTools(tools []core.ToolDefinition) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := anthropic.ToolInputSchemaParam{Properties: t.Function.Parameters["properties"]}
		if req, ok := t.Function.Parameters["required"].([]string); ok {
			schema.Required = req
		}
		tp := anthropic.ToolUnionParamOfTool(schema, t.Function.Name)
		tp.OfTool.Description = param.NewOpt(t.Function.Description)
		result = append(result, tp)
	}
	return result
}
