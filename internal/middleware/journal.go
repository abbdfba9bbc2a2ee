package middleware

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hattiebot/toolchat/internal/core"
	"github.com/hattiebot/toolchat/internal/store"
)

// JournalingExecutor records every dispatch in the tool-call journal. A failed
// write is logged and never changes the outcome.
type JournalingExecutor struct {
	next    core.ToolExecutor
	journal store.ToolCallJournal
	log     zerolog.Logger
}

// NewJournalingExecutor wraps next. A nil journal makes it a pass-through.
func NewJournalingExecutor(next core.ToolExecutor, journal store.ToolCallJournal, log zerolog.Logger) *JournalingExecutor {
	return &JournalingExecutor{next: next, journal: journal, log: log.With().Str("component", "journal").Logger()}
}

func (j *JournalingExecutor) Execute(ctx context.Context, name, argsJSON string) (core.Outcome, error) {
	start := time.Now()
	out, err := j.next.Execute(ctx, name, argsJSON)
	if err != nil || j.journal == nil {
		return out, err
	}
	sessionID, callID := core.CallFrom(ctx)
	rec := store.ToolCallRecord{
		SessionID: sessionID,
		CallID:    callID,
		Tool:      name,
		Arguments: argsJSON,
		Outcome:   out.Text,
		IsError:   out.IsError,
		Duration:  time.Since(start),
	}
	// The dispatch already happened; record it even if the caller gave up meanwhile.
	if _, werr := j.journal.RecordToolCall(context.WithoutCancel(ctx), rec); werr != nil {
		j.log.Warn().Err(werr).Str("tool", name).Msg("could not record tool call")
	}
	return out, nil
}
