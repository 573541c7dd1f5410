package events

const (
	// KindToolCallRequested identifies a model-requested tool invocation.
	KindToolCallRequested Kind = "tool.call"
	// KindToolCallCompleted identifies successful tool execution.
	KindToolCallCompleted Kind = "tool_call.completed"
	// KindToolCallFailed identifies tool execution failure.
	KindToolCallFailed Kind = "tool_call.failed"
)

// ToolCallRequested marks a tool invocation requested by the model.
type ToolCallRequested struct {
	Base
	ID        string
	Name      string
	Arguments string
}

// NewToolCallRequested creates a tool call requested event.
func NewToolCallRequested(id, name, arguments string) ToolCallRequested {
	return ToolCallRequested{Base: NewBase(KindToolCallRequested), ID: id, Name: name, Arguments: arguments}
}

// ToolCallCompleted marks successful tool execution.
type ToolCallCompleted struct {
	Base
	ID       string
	Name     string
	Response string
}

// NewToolCallCompleted creates a tool call completed event.
func NewToolCallCompleted(id, name, response string) ToolCallCompleted {
	return ToolCallCompleted{Base: NewBase(KindToolCallCompleted), ID: id, Name: name, Response: response}
}

// ToolCallFailed marks failed tool execution.
type ToolCallFailed struct {
	Base
	ID    string
	Name  string
	Error string
}

// NewToolCallFailed creates a tool call failed event.
func NewToolCallFailed(id, name, err string) ToolCallFailed {
	return ToolCallFailed{Base: NewBase(KindToolCallFailed), ID: id, Name: name, Error: err}
}
