package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"

	"github.com/hattiebot/toolchat/internal/core"
)

// Unavailable is the outcome for a tool name the registry does not know.
func Unavailable(name string) core.Outcome {
	return core.Failure(fmt.Sprintf("Error: tool '%s' is not available.", name))
}

// Executor dispatches tool calls by name through a Registry. Every tool failure,
// including a panic, comes back as an error outcome for the model to read.
type Executor struct {
	Registry *Registry
	Log      zerolog.Logger
}

// NewExecutor creates an executor over reg.
func NewExecutor(reg *Registry, log zerolog.Logger) *Executor {
	return &Executor{Registry: reg, Log: log.With().Str("component", "tools").Logger()}
}

// Execute resolves name, validates argsJSON and runs the tool. The error return is
// only set when ctx is already done.
func (e *Executor) Execute(ctx context.Context, name, argsJSON string) (core.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return core.Outcome{}, err
	}
	tool, ok := e.Registry.Resolve(name)
	if !ok {
		e.Log.Warn().Str("tool", name).Msg("model requested unknown tool")
		return Unavailable(name), nil
	}
	args, err := e.Registry.Arguments(name, argsJSON)
	if err != nil {
		e.Log.Debug().Str("tool", name).Err(err).Msg("rejected arguments")
		return core.Failure(fmt.Sprintf("Error: %s: %v", name, err)), nil
	}

	start := time.Now()
	var out core.Outcome
	var pc panics.Catcher
	pc.Try(func() {
		out = tool.Execute(ctx, args)
	})
	if r := pc.Recovered(); r != nil {
		e.Log.Error().Str("tool", name).Interface("panic", r.Value).Msg("tool panicked")
		return core.Failure(fmt.Sprintf("Error: tool '%s' failed: %v", name, r.Value)), nil
	}
	e.Log.Debug().
		Str("tool", name).
		Bool("is_error", out.IsError).
		Dur("took", time.Since(start)).
		Msg("tool finished")
	return out, nil
}

var _ core.ToolExecutor = (*Executor)(nil)
