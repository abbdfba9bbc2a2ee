package core

// Message is one turn of conversation history (OpenAI-style roles).
// Providers that use a different wire shape convert to and from it.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	// Name is the tool name on role=tool messages; Gemini needs it to pair responses.
	Name    string `json:"name,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

// Roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// TurnKind classifies a Message as one of the four history variants.
type TurnKind int

const (
	TurnUnknown TurnKind = iota
	TurnUserPrompt
	TurnFunctionCall
	TurnToolResult
	TurnModelText
)

func (k TurnKind) String() string {
	switch k {
	case TurnUserPrompt:
		return "user_prompt"
	case TurnFunctionCall:
		return "function_call"
	case TurnToolResult:
		return "tool_result"
	case TurnModelText:
		return "model_text"
	default:
		return "unknown"
	}
}

// Kind reports which history variant m is.
func (m Message) Kind() TurnKind {
	switch m.Role {
	case RoleUser:
		return TurnUserPrompt
	case RoleTool:
		return TurnToolResult
	case RoleAssistant:
		if len(m.ToolCalls) > 0 {
			return TurnFunctionCall
		}
		return TurnModelText
	}
	return TurnUnknown
}

// UserPrompt builds a user turn.
func UserPrompt(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// ToolCallRequest builds an assistant turn requesting tool calls. content is any text
// the model sent alongside the calls.
func ToolCallRequest(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolResult builds the turn carrying a tool outcome back to the model.
func ToolResult(callID, name, outcome string, isError bool) Message {
	return Message{Role: RoleTool, ToolCallID: callID, Name: name, Content: outcome, IsError: isError}
}

// ModelText builds a plain assistant reply.
func ModelText(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// ToolCall is a single tool invocation request.
type ToolCall struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Function Function `json:"function"`
	// Signature is an opaque provider token that must be echoed back with the call.
	Signature []byte `json:"-"`
}

// Function holds the called function name and its JSON-encoded arguments.
type Function struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// NewToolCall builds a function-type ToolCall.
func NewToolCall(id, name, argsJSON string) ToolCall {
	return ToolCall{ID: id, Type: "function", Function: Function{Name: name, Arguments: argsJSON}}
}

// ToolDefinition describes a tool available to the model.
type ToolDefinition struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec describes the function signature.
type FunctionSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"` // JSON Schema
}
