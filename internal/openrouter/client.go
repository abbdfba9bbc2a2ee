package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hattiebot/toolchat/internal/core"
	"github.com/hattiebot/toolchat/internal/registry"
)

func init() {
	registry.RegisterClient("openrouter", func(opts registry.ClientOptions) (core.LLMClient, error) {
		c := NewClient(opts.APIKey, opts.Model)
		if opts.Timeout > 0 {
			c.HTTP = &http.Client{Timeout: opts.Timeout}
		}
		c.Log = opts.Log.With().Str("component", "openrouter").Logger()
		return c, nil
	})
}

const (
	BaseURL      = "https://openrouter.ai/api/v1"
	DefaultModel = "google/gemini-2.0-flash-001"
)

// parseContent parses API content that may be string, null, or array of parts (e.g. [{"type":"text","text":"..."}]).
func parseContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []map[string]interface{}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var b strings.Builder
	for _, p := range parts {
		if typ, _ := p["type"].(string); typ != "" && typ != "text" {
			continue
		}
		if t, ok := p["text"].(string); ok {
			b.WriteString(t)
		}
	}
	return b.String()
}

// wireMessage is core.Message in OpenAI chat format.
type wireMessage struct {
	Role       string          `json:"role"`
	Content    *string         `json:"content"`
	ToolCalls  []core.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Name       string          `json:"name,omitempty"`
}

func toWire(messages []core.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		w := wireMessage{Role: m.Role, ToolCalls: m.ToolCalls, ToolCallID: m.ToolCallID, Name: m.Name}
		content := m.Content
		// assistant turns that only carry tool calls send null content
		if !(m.Kind() == core.TurnFunctionCall && content == "") {
			w.Content = &content
		}
		out = append(out, w)
	}
	return out
}

// ChatRequest is the request body for chat completions.
type ChatRequest struct {
	Model      string                `json:"model"`
	Messages   []wireMessage         `json:"messages"`
	Tools      []core.ToolDefinition `json:"tools,omitempty"`
	ToolChoice interface{}           `json:"tool_choice,omitempty"` // "auto" or object
}

// ChatResponse is the response from chat completions.
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content   json.RawMessage `json:"content"`
			Role      string          `json:"role"`
			ToolCalls []core.ToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client calls the OpenRouter chat completions API.
type Client struct {
	APIKey  string
	Model   string
	BaseURL string
	HTTP    *http.Client
	Log     zerolog.Logger
	// MaxRetries and Backoff control retries on network errors, 429 and 5xx.
	MaxRetries int
	Backoff    time.Duration
}

// NewClient creates a client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		APIKey:     apiKey,
		Model:      model,
		BaseURL:    BaseURL,
		HTTP:       http.DefaultClient,
		Log:        zerolog.Nop(),
		MaxRetries: 3,
		Backoff:    time.Second,
	}
}

// ChatCompletionWithTools sends messages and optional tools; returns content and any tool_calls.
// Transient errors (network, 429, 5xx) are retried with exponential backoff.
func (c *Client) ChatCompletionWithTools(ctx context.Context, messages []core.Message, tools []core.ToolDefinition) (content string, toolCalls []core.ToolCall, err error) {
	if c.APIKey == "" {
		return "", nil, fmt.Errorf("openrouter: API key not set")
	}
	body := ChatRequest{
		Model:    c.Model,
		Messages: toWire(messages),
		Tools:    tools,
	}
	if len(tools) > 0 {
		body.ToolChoice = "auto"
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", nil, err
	}

	backoff := c.Backoff
	var resp *http.Response
	var lastErr error
	var bodyBytes []byte

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			c.Log.Warn().Int("attempt", attempt).Dur("backoff", backoff).Msg("retrying")
			select {
			case <-ctx.Done():
				return "", nil, fmt.Errorf("openrouter: %w", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.BaseURL, "/")+"/chat/completions", bytes.NewReader(raw))
		if err != nil {
			return "", nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
		req.Header.Set("X-Title", "toolchat")

		resp, lastErr = c.HTTP.Do(req)
		if lastErr != nil {
			if ctx.Err() != nil {
				return "", nil, fmt.Errorf("openrouter: %w", lastErr)
			}
			c.Log.Warn().Err(lastErr).Msg("network error")
			continue
		}

		bodyBytes, _ = io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			c.Log.Warn().Int("status", resp.StatusCode).Msg("retryable error")
			continue
		}
		break
	}

	if lastErr != nil {
		return "", nil, fmt.Errorf("openrouter: request failed after %d retries: %w", c.MaxRetries, lastErr)
	}
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("openrouter: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	var out ChatResponse
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		return "", nil, fmt.Errorf("openrouter: decode: %w", err)
	}
	if out.Error != nil {
		return "", nil, fmt.Errorf("openrouter: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", nil, fmt.Errorf("openrouter: no choices in response")
	}
	msg := out.Choices[0].Message
	c.Log.Debug().Str("finish_reason", out.Choices[0].FinishReason).Int("tool_calls", len(msg.ToolCalls)).Msg("completion")
	return parseContent(msg.Content), msg.ToolCalls, nil
}
