package domain

import (
	"bytes"
	"encoding/json"
)

// Role is the author of a conversation message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model request to run a named tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolArguments converts the argument text a model produced into a value
// that is always valid JSON. Empty text becomes an empty object; text that
// does not parse is kept verbatim as a JSON string, which tools reject as
// invalid arguments.
func ToolArguments(text string) json.RawMessage {
	trimmed := bytes.TrimSpace([]byte(text))
	if len(trimmed) == 0 {
		return json.RawMessage(`{}`)
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, _ := json.Marshal(text)
	return json.RawMessage(quoted)
}

// NormalizeToolCalls returns a copy of calls whose Arguments are valid JSON.
func NormalizeToolCalls(calls []ToolCall) []ToolCall {
	if calls == nil {
		return nil
	}
	out := make([]ToolCall, len(calls))
	for i, call := range calls {
		call.Arguments = ToolArguments(string(call.Arguments))
		out[i] = call
	}
	return out
}

// ArgumentsText returns the arguments as the model wrote them, undoing the
// string wrapping ToolArguments applies to malformed input.
func (c ToolCall) ArgumentsText() string {
	if len(c.Arguments) > 0 && c.Arguments[0] == '"' {
		var text string
		if err := json.Unmarshal(c.Arguments, &text); err == nil {
			return text
		}
	}
	return string(c.Arguments)
}

// Message is one entry of a conversation. Assistant messages may carry tool
// calls; tool messages carry the ToolCallID they answer.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// SystemMessage creates a system message
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a user message
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// ToolResultMessage creates a tool result message answering call
func ToolResultMessage(call ToolCall, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: call.ID, Name: call.Name}
}

// HasToolCalls reports whether the message requests tools
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// ToolDefinition describes a tool offered to the model.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Usage tracks token accounting across model calls.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add returns the sum of u and o
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
	}
}

// Total returns the combined token count
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// ModelRequest is one turn sent to the language model. A nil Temperature
// uses the model's configured default; zero is a real setting.
type ModelRequest struct {
	Messages    []Message
	Tools       []ToolDefinition
	Temperature *float32
	MaxTokens   int
}

// ModelResponse is the model's reply for one turn.
type ModelResponse struct {
	Message    Message
	Usage      Usage
	StopReason string
}
