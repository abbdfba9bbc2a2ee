// Package shell is the interactive terminal front end.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"

	"github.com/hattiebot/toolchat/internal/agent"
	"github.com/hattiebot/toolchat/internal/core"
	"github.com/hattiebot/toolchat/internal/session"
	"github.com/hattiebot/toolchat/internal/store"
)

const (
	Banner  = "toolchat: chat with a model that can use local tools"
	Hint    = "Type 'quit' or 'exit' to leave, '/history' to count turns, '/journal' to list tool calls, '/reset' to start over."
	Prompt  = "You: "
	Goodbye = "Goodbye!"
)

// Runner handles one prompt against a session. *agent.Loop implements it.
type Runner interface {
	RunOneTurn(ctx context.Context, sess *session.Session, prompt string) (string, error)
}

// JournalReader lists recorded tool dispatches.
type JournalReader interface {
	RecentToolCalls(ctx context.Context, limit int, sessionID string) ([]store.ToolCallRecord, error)
}

const journalLimit = 10

// Shell reads prompts line by line and prints the replies. Prompts are handled one
// at a time; the next is not read until the previous answer is printed.
type Shell struct {
	In      io.Reader
	Out     io.Writer
	Runner  Runner
	Session *session.Session
	// Journal backs /journal; nil when journaling is off.
	Journal JournalReader
	Log     zerolog.Logger
}

// Run loops until quit/exit, end of input, or ctx is cancelled. All three return nil.
func (s *Shell) Run(ctx context.Context) error {
	if s.Session == nil {
		s.Session = session.New()
	}
	fmt.Fprintln(s.Out, Banner)
	fmt.Fprintln(s.Out, Hint)

	lines := make(chan string)
	readErr := make(chan error, 1)
	// Reading stdin cannot be interrupted, so it lives in its own goroutine.
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(s.In)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		fmt.Fprint(s.Out, "\n"+Prompt)
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.Out, "\n"+Goodbye)
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(s.Out, "\n"+Goodbye)
			select {
			case err := <-readErr:
				if err != nil {
					return fmt.Errorf("shell: read input: %w", err)
				}
			default:
			}
			return nil
		}

		text := strings.TrimSpace(line)
		switch strings.ToLower(text) {
		case "":
			continue
		case "quit", "exit":
			fmt.Fprintln(s.Out, Goodbye)
			return nil
		case "/history":
			s.printHistory()
			continue
		case "/journal":
			s.printJournal(ctx)
			continue
		case "/reset":
			s.Session = session.New()
			fmt.Fprintln(s.Out, "Started a new session.")
			continue
		}

		answer, err := s.runTurn(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(s.Out, "\n"+Goodbye)
				return nil
			}
			s.logTurnError(err)
		}
		if answer != "" {
			fmt.Fprintf(s.Out, "\nAssistant: %s\n", answer)
		}
	}
}

// runTurn keeps a panicking runner from ending the shell. The loop commits only
// finished turns, so the session is unchanged after a recovered panic.
func (s *Shell) runTurn(ctx context.Context, prompt string) (answer string, err error) {
	var pc panics.Catcher
	pc.Try(func() {
		answer, err = s.Runner.RunOneTurn(ctx, s.Session, prompt)
	})
	if r := pc.Recovered(); r != nil {
		s.Log.Error().Err(r.AsError()).Msg("turn panicked")
		return fmt.Sprintf("Error: unexpected failure: %v", r.Value), nil
	}
	return answer, err
}

func (s *Shell) printHistory() {
	n := s.Session.Len()
	if n == 0 {
		fmt.Fprintln(s.Out, "0 turns in this session.")
		return
	}
	counts := s.Session.Counts()
	var parts []string
	for _, k := range []core.TurnKind{core.TurnUserPrompt, core.TurnFunctionCall, core.TurnToolResult, core.TurnModelText} {
		if c := counts[k]; c > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", k, c))
		}
	}
	fmt.Fprintf(s.Out, "%d turns in this session (%s).\n", n, strings.Join(parts, ", "))
}

func (s *Shell) printJournal(ctx context.Context) {
	if s.Journal == nil {
		fmt.Fprintln(s.Out, "The tool-call journal is disabled.")
		return
	}
	recs, err := s.Journal.RecentToolCalls(ctx, journalLimit, s.Session.ID())
	if err != nil {
		s.Log.Warn().Err(err).Msg("read journal")
		fmt.Fprintln(s.Out, "Could not read the tool-call journal.")
		return
	}
	if len(recs) == 0 {
		fmt.Fprintln(s.Out, "No tool calls in this session yet.")
		return
	}
	for _, r := range recs {
		status := "ok"
		if r.IsError {
			status = "error"
		}
		fmt.Fprintf(s.Out, "%s  %-12s %-5s %s\n", r.CreatedAt.Local().Format("15:04:05"), r.Tool, status, r.Duration)
	}
}

func (s *Shell) logTurnError(err error) {
	switch {
	case errors.Is(err, agent.ErrNotConfigured), errors.Is(err, agent.ErrToolBudget):
		s.Log.Debug().Err(err).Msg("turn ended early")
	default:
		s.Log.Warn().Err(err).Msg("turn failed")
	}
}
