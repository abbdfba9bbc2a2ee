package core

import "context"

type ctxKey int

const (
	sessionIDKey ctxKey = iota
	callIDKey
)

// WithCall tags ctx with the session and tool-call ids being dispatched.
func WithCall(ctx context.Context, sessionID, callID string) context.Context {
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	return context.WithValue(ctx, callIDKey, callID)
}

// CallFrom returns the ids set by WithCall (empty when unset).
func CallFrom(ctx context.Context) (sessionID, callID string) {
	sessionID, _ = ctx.Value(sessionIDKey).(string)
	callID, _ = ctx.Value(callIDKey).(string)
	return sessionID, callID
}
