package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hattiebot/toolchat/internal/core"
	"github.com/hattiebot/toolchat/internal/session"
)

var (
	// ErrModelCall wraps every failure of the remote model call.
	ErrModelCall = errors.New("model call failed")
	// ErrNotConfigured is returned when no client is configured (no API key).
	ErrNotConfigured = errors.New("no API key configured")
	// ErrToolBudget is returned when the model keeps requesting tools past MaxToolRounds.
	ErrToolBudget = errors.New("tool-call budget exceeded")
)

const (
	DisabledAnswer     = "AI features are disabled: no API key configured."
	NoTextAnswer       = "The model returned no text response."
	DefaultMaxRounds   = 10
	DefaultCallTimeout = 2 * time.Minute
)

// ModelErrorAnswer is the answer shown when the model call fails.
func ModelErrorAnswer(err error) string {
	return fmt.Sprintf("Error communicating with the model: %v", err)
}

// BudgetAnswer is the answer recorded when the tool round limit is hit.
func BudgetAnswer(rounds int) string {
	return fmt.Sprintf("Tool-call budget exceeded (%d rounds); stopping here.", rounds)
}

// Loop runs one prompt through the model: model reply -> tool calls -> results -> model,
// until the model answers with text.
type Loop struct {
	Client   core.LLMClient
	Executor core.ToolExecutor
	// Tools is advertised to the model on every call.
	Tools []core.ToolDefinition
	// MaxToolRounds caps tool-call round trips per prompt.
	MaxToolRounds int
	// RequestTimeout bounds each model call.
	RequestTimeout time.Duration
	Log            zerolog.Logger
}

// RunOneTurn sends prompt with the session history, runs any requested tools and returns
// the final answer. Turns are appended to sess only when the cycle completes; on a
// model failure the answer is an error message, the session is unchanged and err wraps
// ErrModelCall.
func (l *Loop) RunOneTurn(ctx context.Context, sess *session.Session, prompt string) (answer string, err error) {
	log := l.Log.With().Str("session", sess.ID()).Logger()
	if l.Client == nil {
		log.Warn().Msg("prompt ignored: no model client")
		return DisabledAnswer, ErrNotConfigured
	}
	maxRounds := l.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}

	history := sess.Messages()
	pending := []core.Message{core.UserPrompt(prompt)}
	log.Debug().Int("history", len(history)).Int("prompt_len", len(prompt)).Msg("prompt received")

	for round := 0; ; round++ {
		content, toolCalls, err := l.complete(ctx, concat(history, pending))
		if err != nil {
			log.Error().Err(err).Int("round", round).Msg("model call failed")
			wrapped := fmt.Errorf("%w: %w", ErrModelCall, err)
			return ModelErrorAnswer(err), wrapped
		}
		log.Debug().Int("round", round).Int("tool_calls", len(toolCalls)).Int("content_len", len(content)).Msg("model replied")

		if len(toolCalls) == 0 {
			answer = content
			if strings.TrimSpace(answer) == "" {
				answer = NoTextAnswer
			}
			pending = append(pending, core.ModelText(answer))
			sess.Append(pending...)
			log.Debug().Int("rounds", round).Int("appended", len(pending)).Msg("done")
			return answer, nil
		}

		if round >= maxRounds {
			answer = BudgetAnswer(maxRounds)
			pending = append(pending, core.ModelText(answer))
			sess.Append(pending...)
			log.Warn().Int("rounds", maxRounds).Msg("tool-call budget exceeded")
			return answer, ErrToolBudget
		}

		for i := range toolCalls {
			if toolCalls[i].ID == "" {
				toolCalls[i].ID = uuid.NewString()
			}
			if toolCalls[i].Type == "" {
				toolCalls[i].Type = "function"
			}
		}
		pending = append(pending, core.ToolCallRequest(content, toolCalls))

		for _, tc := range toolCalls {
			start := time.Now()
			callCtx := core.WithCall(ctx, sess.ID(), tc.ID)
			out, err := l.Executor.Execute(callCtx, tc.Function.Name, tc.Function.Arguments)
			if err != nil {
				return "", fmt.Errorf("agent: dispatch %s: %w", tc.Function.Name, err)
			}
			log.Info().
				Str("tool", tc.Function.Name).
				Str("call_id", tc.ID).
				Bool("is_error", out.IsError).
				Dur("took", time.Since(start)).
				Msg("tool dispatched")
			pending = append(pending, core.ToolResult(tc.ID, tc.Function.Name, out.Text, out.IsError))
		}
	}
}

func (l *Loop) complete(ctx context.Context, messages []core.Message) (string, []core.ToolCall, error) {
	timeout := l.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return l.Client.ChatCompletionWithTools(callCtx, messages, l.Tools)
}

func concat(history, pending []core.Message) []core.Message {
	out := make([]core.Message, 0, len(history)+len(pending))
	out = append(out, history...)
	return append(out, pending...)
}
