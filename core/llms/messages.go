package llms

import "github.com/invopop/jsonschema"

// MessageRole describes who a conversation message is from.
type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool"
)

// Message is a single message in the conversation sent to the model.
type Message struct {
	Role    MessageRole
	Content string

	// ToolCallID links a tool role message to the call it answers.
	ToolCallID string
	ToolCalls  []ToolCall
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string

	// Response is the serialized tool result, filled in once the call
	// has been executed.
	Response string
}

// Tool describes a callable function advertised to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// Response is a single completed response from an LLM.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *Usage
}

// Usage reports token consumption for a single generation.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
