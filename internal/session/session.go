// Package session holds the in-memory conversation history for one process run.
package session

import (
	"github.com/google/uuid"

	"github.com/hattiebot/toolchat/internal/core"
)

// Session is an append-only, ordered list of turns. It is owned by one goroutine
// at a time (the shell hands it to the agent loop for each prompt) and is never
// persisted.
type Session struct {
	id       string
	messages []core.Message
}

// New starts an empty session with a fresh id.
func New() *Session {
	return &Session{id: uuid.NewString()}
}

// ID identifies the session in logs and the dispatch journal.
func (s *Session) ID() string { return s.id }

// Len returns the number of turns.
func (s *Session) Len() int { return len(s.messages) }

// Messages returns a copy of the history in order.
func (s *Session) Messages() []core.Message {
	out := make([]core.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Append adds turns to the end of the history.
func (s *Session) Append(msgs ...core.Message) {
	s.messages = append(s.messages, msgs...)
}

// Last returns the most recent turn.
func (s *Session) Last() (core.Message, bool) {
	if len(s.messages) == 0 {
		return core.Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// Counts tallies turns by kind.
func (s *Session) Counts() map[core.TurnKind]int {
	out := make(map[core.TurnKind]int)
	for _, m := range s.messages {
		out[m.Kind()]++
	}
	return out
}
