package store

import (
	"context"
	"time"
)

// ToolCallRecord is one dispatched tool call. The journal is an audit trail only;
// conversations are never reloaded from it.
type ToolCallRecord struct {
	ID        int64         `json:"id"`
	SessionID string        `json:"session_id"`
	CallID    string        `json:"call_id"`
	Tool      string        `json:"tool"`
	Arguments string        `json:"arguments"`
	Outcome   string        `json:"outcome"`
	IsError   bool          `json:"is_error"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// RecordToolCall inserts rec and returns its id.
func (db *DB) RecordToolCall(ctx context.Context, rec ToolCallRecord) (int64, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO tool_calls (session_id, call_id, tool, arguments, outcome, is_error, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.CallID, rec.Tool, rec.Arguments, rec.Outcome, rec.IsError, rec.Duration.Milliseconds(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecentToolCalls returns the last limit records, oldest first. sessionID "" means all sessions.
func (db *DB) RecentToolCalls(ctx context.Context, limit int, sessionID string) ([]ToolCallRecord, error) {
	query := `SELECT id, session_id, call_id, tool, arguments, outcome, is_error, duration_ms, created_at FROM tool_calls`
	var args []interface{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ToolCallRecord
	for rows.Next() {
		var r ToolCallRecord
		var ms int64
		if err := rows.Scan(&r.ID, &r.SessionID, &r.CallID, &r.Tool, &r.Arguments, &r.Outcome, &r.IsError, &ms, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	// Reverse to chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

// ToolCallJournal is the write side used by the journaling executor.
type ToolCallJournal interface {
	RecordToolCall(ctx context.Context, rec ToolCallRecord) (int64, error)
}

var _ ToolCallJournal = (*DB)(nil)
