// Package gemini adapts the Gemini API (google.golang.org/genai) to core.LLMClient.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/hattiebot/toolchat/internal/core"
	"github.com/hattiebot/toolchat/internal/registry"
)

const DefaultModel = "gemini-2.0-flash"

func init() {
	registry.RegisterClient("gemini", func(opts registry.ClientOptions) (core.LLMClient, error) {
		return NewClient(context.Background(), Options{
			APIKey: opts.APIKey,
			Model:  opts.Model,
			Log:    opts.Log,
		})
	})
}

// Options configures NewClient. BaseURL overrides the API endpoint.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	Log     zerolog.Logger
}

// Client calls generateContent with function declarations.
type Client struct {
	genai *genai.Client
	model string
	log   zerolog.Logger
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini: API key not set")
	}
	cfg := &genai.ClientConfig{APIKey: opts.APIKey, Backend: genai.BackendGeminiAPI}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	gc, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{genai: gc, model: model, log: opts.Log.With().Str("component", "gemini").Logger()}, nil
}

func (c *Client) ChatCompletionWithTools(ctx context.Context, messages []core.Message, tools []core.ToolDefinition) (string, []core.ToolCall, error) {
	contents, err := convertMessages(messages)
	if err != nil {
		return "", nil, err
	}
	var config *genai.GenerateContentConfig
	if len(tools) > 0 {
		config = &genai.GenerateContentConfig{Tools: []*genai.Tool{{FunctionDeclarations: convertTools(tools)}}}
	}
	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", nil, fmt.Errorf("gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", nil, fmt.Errorf("gemini: prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", nil, errors.New("gemini: no candidates in response")
	}

	var text strings.Builder
	var calls []core.ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		switch {
		case part.FunctionCall != nil:
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return "", nil, fmt.Errorf("gemini: encode args for %s: %w", part.FunctionCall.Name, err)
			}
			call := core.NewToolCall(part.FunctionCall.ID, part.FunctionCall.Name, string(args))
			call.Signature = part.ThoughtSignature
			calls = append(calls, call)
		case part.Text != "" && !part.Thought:
			text.WriteString(part.Text)
		}
	}
	c.log.Debug().Str("finish_reason", string(resp.Candidates[0].FinishReason)).Int("tool_calls", len(calls)).Msg("completion")
	return text.String(), calls, nil
}

// convertMessages maps history to Gemini contents. Consecutive tool results share
// one user content, matching how the model emitted the calls.
func convertMessages(messages []core.Message) ([]*genai.Content, error) {
	var out []*genai.Content
	for i := 0; i < len(messages); {
		m := messages[i]
		switch m.Kind() {
		case core.TurnFunctionCall, core.TurnModelText:
			content := &genai.Content{Role: genai.RoleModel}
			if m.Content != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				args := map[string]any{}
				if strings.TrimSpace(tc.Function.Arguments) != "" {
					if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
						return nil, fmt.Errorf("gemini: decode args for %s: %w", tc.Function.Name, err)
					}
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall:     &genai.FunctionCall{ID: tc.ID, Name: tc.Function.Name, Args: args},
					ThoughtSignature: tc.Signature,
				})
			}
			if len(content.Parts) > 0 {
				out = append(out, content)
			}
			i++
		case core.TurnToolResult:
			content := &genai.Content{Role: genai.RoleUser}
			for i < len(messages) && messages[i].Kind() == core.TurnToolResult {
				r := messages[i]
				key := "output"
				if r.IsError {
					key = "error"
				}
				content.Parts = append(content.Parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       r.ToolCallID,
					Name:     r.Name,
					Response: map[string]any{key: r.Content},
				}})
				i++
			}
			out = append(out, content)
		default:
			out = append(out, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: m.Content}}})
			i++
		}
	}
	return out, nil
}

func convertTools(tools []core.ToolDefinition) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  convertSchema(t.Function.Parameters),
		})
	}
	return decls
}

// convertSchema translates the JSON Schema subset tools.Spec emits.
func convertSchema(s map[string]interface{}) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{}
	switch s["type"] {
	case "object":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "integer":
		out.Type = genai.TypeInteger
	case "number":
		out.Type = genai.TypeNumber
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	}
	if d, ok := s["description"].(string); ok {
		out.Description = d
	}
	if props, ok := s["properties"].(map[string]interface{}); ok && len(props) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]interface{}); ok {
				out.Properties[name] = convertSchema(pm)
			}
		}
	}
	if req, ok := s["required"].([]string); ok {
		out.Required = req
	}
	return out
}
