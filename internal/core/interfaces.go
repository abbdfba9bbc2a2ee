package core

import (
	"context"
)

// LLMClient abstracts the remote model API (Gemini, OpenRouter, Anthropic).
// A reply either carries tool calls or is a final text answer.
type LLMClient interface {
	ChatCompletionWithTools(ctx context.Context, messages []Message, tools []ToolDefinition) (content string, toolCalls []ToolCall, err error)
}

// ToolExecutor abstracts tool execution. The returned error is for infrastructure
// faults only; tool failures come back as error outcomes.
type ToolExecutor interface {
	Execute(ctx context.Context, name, argsJSON string) (Outcome, error)
}

// Outcome is the human-readable result of a tool run. Failed runs still carry text
// so the model can read what went wrong.
type Outcome struct {
	Text    string
	IsError bool
}

// Success wraps a successful tool result.
func Success(text string) Outcome { return Outcome{Text: text} }

// Failure wraps a tool error message.
func Failure(text string) Outcome { return Outcome{Text: text, IsError: true} }
