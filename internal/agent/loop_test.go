package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hattiebot/toolchat/internal/core"
	"github.com/hattiebot/toolchat/internal/session"
	"github.com/hattiebot/toolchat/internal/tools"
)

type reply struct {
	content string
	calls   []core.ToolCall
	err     error
}

// MockClient replays scripted replies and records what it was sent.
type MockClient struct {
	replies []reply
	seen    [][]core.Message
	tools   []core.ToolDefinition
}

func (m *MockClient) ChatCompletionWithTools(ctx context.Context, messages []core.Message, tools []core.ToolDefinition) (string, []core.ToolCall, error) {
	m.seen = append(m.seen, messages)
	m.tools = tools
	if len(m.seen) > len(m.replies) {
		return "", nil, errors.New("unexpected model call")
	}
	r := m.replies[len(m.seen)-1]
	return r.content, r.calls, r.err
}

// MockExecutor records dispatched calls.
type MockExecutor struct {
	calls []string
	ids   []string
	out   core.Outcome
	err   error
}

func (m *MockExecutor) Execute(ctx context.Context, name, argsJSON string) (core.Outcome, error) {
	m.calls = append(m.calls, name)
	_, callID := core.CallFrom(ctx)
	m.ids = append(m.ids, callID)
	if m.err != nil {
		return core.Outcome{}, m.err
	}
	return m.out, nil
}

func newLoop(client core.LLMClient, exec core.ToolExecutor) *Loop {
	return &Loop{Client: client, Executor: exec, MaxToolRounds: 3, RequestTimeout: time.Second, Log: zerolog.Nop()}
}

func toolLoop(t *testing.T, dir string, client core.LLMClient) *Loop {
	t.Helper()
	reg, err := tools.NewBuiltinRegistry(dir, nil)
	require.NoError(t, err)
	l := newLoop(client, tools.NewExecutor(reg, zerolog.Nop()))
	l.Tools = reg.Definitions()
	return l
}

func TestRunOneTurn_TextReply(t *testing.T) {
	client := &MockClient{replies: []reply{{content: "Hello there!"}}}
	sess := session.New()

	answer, err := newLoop(client, &MockExecutor{}).RunOneTurn(context.Background(), sess, "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", answer)

	msgs := sess.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, core.UserPrompt("hi"), msgs[0])
	assert.Equal(t, core.ModelText("Hello there!"), msgs[1])
}

func TestRunOneTurn_SendsHistory(t *testing.T) {
	client := &MockClient{replies: []reply{{content: "one"}, {content: "two"}}}
	sess := session.New()
	l := newLoop(client, &MockExecutor{})

	_, err := l.RunOneTurn(context.Background(), sess, "first")
	require.NoError(t, err)
	_, err = l.RunOneTurn(context.Background(), sess, "second")
	require.NoError(t, err)

	require.Len(t, client.seen, 2)
	assert.Equal(t, []core.Message{core.UserPrompt("first"), core.ModelText("one"), core.UserPrompt("second")}, client.seen[1])
	assert.Equal(t, 4, sess.Len())
}

func TestRunOneTurn_EmptyTextPlaceholder(t *testing.T) {
	client := &MockClient{replies: []reply{{content: "  "}}}
	sess := session.New()
	answer, err := newLoop(client, &MockExecutor{}).RunOneTurn(context.Background(), sess, "hi")
	require.NoError(t, err)
	assert.Equal(t, NoTextAnswer, answer)
	last, _ := sess.Last()
	assert.Equal(t, NoTextAnswer, last.Content)
}

func TestRunOneTurn_CreatesNotesFile(t *testing.T) {
	dir := t.TempDir()
	client := &MockClient{replies: []reply{
		{calls: []core.ToolCall{core.NewToolCall("c1", "create_file", `{"filename":"notes.txt","content":"hello"}`)}},
		{content: "Created notes.txt."},
	}}
	sess := session.New()
	l := toolLoop(t, dir, client)

	answer, err := l.RunOneTurn(context.Background(), sess, "create notes.txt containing hello")
	require.NoError(t, err)
	assert.Equal(t, "Created notes.txt.", answer)

	data, err := os.ReadFile(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	msgs := sess.Messages()
	require.Len(t, msgs, 4)
	kinds := []core.TurnKind{msgs[0].Kind(), msgs[1].Kind(), msgs[2].Kind(), msgs[3].Kind()}
	assert.Equal(t, []core.TurnKind{core.TurnUserPrompt, core.TurnFunctionCall, core.TurnToolResult, core.TurnModelText}, kinds)
	assert.Equal(t, "create_file", msgs[2].Name)
	assert.Equal(t, "c1", msgs[2].ToolCallID)
	assert.False(t, msgs[2].IsError)
	assert.Len(t, client.tools, 6, "tool definitions go with every call")
}

func TestRunOneTurn_UnknownToolKeepsGoing(t *testing.T) {
	client := &MockClient{replies: []reply{
		{calls: []core.ToolCall{core.NewToolCall("c1", "frobnicate", `{}`)}},
		{content: "That tool does not exist."},
		{content: "Still here."},
	}}
	sess := session.New()
	l := toolLoop(t, t.TempDir(), client)

	answer, err := l.RunOneTurn(context.Background(), sess, "frobnicate please")
	require.NoError(t, err)
	assert.Equal(t, "That tool does not exist.", answer)

	result := sess.Messages()[2]
	assert.Equal(t, core.TurnToolResult, result.Kind())
	assert.True(t, result.IsError)
	assert.Equal(t, tools.Unavailable("frobnicate").Text, result.Content)

	answer, err = l.RunOneTurn(context.Background(), sess, "hello?")
	require.NoError(t, err)
	assert.Equal(t, "Still here.", answer)
}

func TestRunOneTurn_MultipleCallsInOrder(t *testing.T) {
	exec := &MockExecutor{out: core.Success("ok")}
	client := &MockClient{replies: []reply{
		{content: "working", calls: []core.ToolCall{
			core.NewToolCall("", "list_files", `{}`),
			core.NewToolCall("b", "read_file", `{"filename":"x"}`),
		}},
		{content: "done"},
	}}
	sess := session.New()

	_, err := newLoop(client, exec).RunOneTurn(context.Background(), sess, "go")
	require.NoError(t, err)
	assert.Equal(t, []string{"list_files", "read_file"}, exec.calls)
	assert.NotEmpty(t, exec.ids[0], "missing call ids are filled in")
	assert.Equal(t, "b", exec.ids[1])

	msgs := sess.Messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, "working", msgs[1].Content)
	assert.Equal(t, msgs[1].ToolCalls[0].ID, msgs[2].ToolCallID)
	assert.Equal(t, "b", msgs[3].ToolCallID)
}

func TestRunOneTurn_ToolBudget(t *testing.T) {
	call := []core.ToolCall{core.NewToolCall("c", "list_files", `{}`)}
	client := &MockClient{replies: []reply{{calls: call}, {calls: call}, {calls: call}, {calls: call}}}
	exec := &MockExecutor{out: core.Success("ok")}
	sess := session.New()

	answer, err := newLoop(client, exec).RunOneTurn(context.Background(), sess, "loop forever")
	assert.ErrorIs(t, err, ErrToolBudget)
	assert.Equal(t, BudgetAnswer(3), answer)
	assert.Len(t, exec.calls, 3)
	assert.Len(t, client.seen, 4)

	last, ok := sess.Last()
	require.True(t, ok)
	assert.Equal(t, core.ModelText(answer), last)
	assert.Equal(t, 1+3*2+1, sess.Len())
}

func TestRunOneTurn_ModelFailureLeavesHistory(t *testing.T) {
	boom := errors.New("connection refused")
	client := &MockClient{replies: []reply{
		{content: "first answer"},
		{calls: []core.ToolCall{core.NewToolCall("c", "list_files", `{}`)}},
		{err: boom},
	}}
	sess := session.New()
	l := newLoop(client, &MockExecutor{out: core.Success("ok")})

	_, err := l.RunOneTurn(context.Background(), sess, "one")
	require.NoError(t, err)
	before := sess.Messages()

	answer, err := l.RunOneTurn(context.Background(), sess, "two")
	assert.ErrorIs(t, err, ErrModelCall)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "Error communicating with the model: connection refused", answer)
	assert.Equal(t, before, sess.Messages())
}

func TestRunOneTurn_NoClient(t *testing.T) {
	sess := session.New()
	answer, err := (&Loop{Log: zerolog.Nop()}).RunOneTurn(context.Background(), sess, "hi")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, DisabledAnswer, answer)
	assert.Zero(t, sess.Len())
}

func TestRunOneTurn_DispatchCancelled(t *testing.T) {
	client := &MockClient{replies: []reply{{calls: []core.ToolCall{core.NewToolCall("c", "list_files", `{}`)}}}}
	exec := &MockExecutor{err: context.Canceled}
	sess := session.New()

	_, err := newLoop(client, exec).RunOneTurn(context.Background(), sess, "hi")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sess.Len())
}

type slowClient struct{}

func (slowClient) ChatCompletionWithTools(ctx context.Context, messages []core.Message, tools []core.ToolDefinition) (string, []core.ToolCall, error) {
	<-ctx.Done()
	return "", nil, ctx.Err()
}

func TestRunOneTurn_RequestTimeout(t *testing.T) {
	l := newLoop(slowClient{}, &MockExecutor{})
	l.RequestTimeout = 10 * time.Millisecond
	sess := session.New()

	_, err := l.RunOneTurn(context.Background(), sess, "hi")
	assert.ErrorIs(t, err, ErrModelCall)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, sess.Len())
}
