package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/hattiebot/toolchat/internal/core"
)

func testClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), Options{APIKey: "test-key", BaseURL: url, Log: zerolog.Nop()})
	require.NoError(t, err)
	return c
}

func TestChatCompletionWithTools_FunctionCall(t *testing.T) {
	var req map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/"+DefaultModel+":generateContent"), r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[
			{"functionCall":{"name":"create_file","args":{"filename":"notes.txt","content":"hello"}}}
		]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	history := []core.Message{
		core.UserPrompt("save hello"),
		core.ToolCallRequest("", []core.ToolCall{core.NewToolCall("c1", "list_files", `{"directory":"."}`)}),
		core.ToolResult("c1", "list_files", "Directory '.' is empty.", false),
	}
	defs := []core.ToolDefinition{{Type: "function", Function: core.FunctionSpec{
		Name: "create_file",
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"filename": map[string]interface{}{"type": "string"}},
			"required":   []string{"filename"},
		},
	}}}

	text, calls, err := testClient(t, srv.URL).ChatCompletionWithTools(context.Background(), history, defs)
	require.NoError(t, err)
	assert.Empty(t, text)
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].ID, "Gemini may omit call ids; the loop fills them in")
	assert.Equal(t, "create_file", calls[0].Function.Name)
	assert.JSONEq(t, `{"filename":"notes.txt","content":"hello"}`, calls[0].Function.Arguments)

	contents := req["contents"].([]interface{})
	require.Len(t, contents, 3)
	assert.Equal(t, "model", contents[1].(map[string]interface{})["role"])
	assert.Contains(t, fmt.Sprint(contents[2]), "functionResponse")
	assert.Contains(t, fmt.Sprint(req["tools"]), "create_file")
}

func TestChatCompletionWithTools_Text(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Hi "},{"text":"there"}]}}]}`)
	}))
	defer srv.Close()

	text, calls, err := testClient(t, srv.URL).ChatCompletionWithTools(context.Background(), []core.Message{core.UserPrompt("hi")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", text)
	assert.Empty(t, calls)
}

func TestChatCompletionWithTools_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	_, _, err := testClient(t, srv.URL).ChatCompletionWithTools(context.Background(), []core.Message{core.UserPrompt("hi")}, nil)
	assert.ErrorContains(t, err, "no candidates")
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), Options{})
	assert.EqualError(t, err, "gemini: API key not set")
}

func TestConvertSchema(t *testing.T) {
	s := convertSchema(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query":       map[string]interface{}{"type": "string", "description": "q"},
			"num_results": map[string]interface{}{"type": "integer"},
		},
		"required": []string{"query"},
	})
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, genai.TypeString, s.Properties["query"].Type)
	assert.Equal(t, "q", s.Properties["query"].Description)
	assert.Equal(t, genai.TypeInteger, s.Properties["num_results"].Type)
	assert.Equal(t, []string{"query"}, s.Required)
}

func TestConvertMessages_ErrorResult(t *testing.T) {
	contents, err := convertMessages([]core.Message{core.ToolResult("c", "read_file", "Error: nope", true)})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	fr := contents[0].Parts[0].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, map[string]any{"error": "Error: nope"}, fr.Response)
}

func TestChatCompletionWithTools_KeepsThoughtSignature(t *testing.T) {
	var req map[string]interface{}
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[
			{"functionCall":{"name":"list_files","args":{}},"thoughtSignature":"c2ln"}
		]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()
	c := testClient(t, srv.URL)

	_, got, err := c.ChatCompletionWithTools(context.Background(), []core.Message{core.UserPrompt("ls")}, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []byte("sig"), got[0].Signature)

	got[0].ID = "c1"
	history := []core.Message{
		core.UserPrompt("ls"),
		core.ToolCallRequest("", got),
		core.ToolResult("c1", "list_files", "Directory '.' is empty.", false),
	}
	_, _, err = c.ChatCompletionWithTools(context.Background(), history, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	model := req["contents"].([]interface{})[1].(map[string]interface{})
	part := model["parts"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "c2ln", part["thoughtSignature"])
}

func TestConvertMessages_ThoughtSignature(t *testing.T) {
	call := core.NewToolCall("c1", "list_files", `{}`)
	call.Signature = []byte("sig")
	contents, err := convertMessages([]core.Message{core.ToolCallRequest("", []core.ToolCall{call})})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, []byte("sig"), contents[0].Parts[0].ThoughtSignature)
}
