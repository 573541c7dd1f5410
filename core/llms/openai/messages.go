package openai

import (
	"github.com/invopop/jsonschema"

	"github.com/invorto/voice-core/core/llms"
)

type message struct {
	Role       messageRole `json:"role"`
	Content    string      `json:"content"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	ToolCalls  []toolCall  `json:"tool_calls,omitempty"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
	messageRoleTool      messageRole = "tool"
)

type toolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function toolCallFunction `json:"function"`
}

type toolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

func toWireMessages(instructions string, history []llms.Message) []message {
	messages := []message{}
	if instructions != "" {
		messages = append(messages, message{
			Role:    messageRoleSystem,
			Content: instructions,
		})
	}
	for _, msg := range history {
		if msg.Role == llms.MessageRoleSystem {
			// Instructions already lead the request, skip duplicates.
			if msg.Content == instructions {
				continue
			}
		}

		wireMsg := message{
			Role:       messageRole(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		responseMsgs := []message{}
		for _, tCall := range msg.ToolCalls {
			wireMsg.ToolCalls = append(wireMsg.ToolCalls, toolCall{
				ID:   tCall.ID,
				Type: "function",
				Function: toolCallFunction{
					Name:      tCall.Name,
					Arguments: tCall.Arguments,
				},
			})
			if tCall.Response != "" {
				responseMsgs = append(responseMsgs, message{
					Role:       messageRoleTool,
					Content:    tCall.Response,
					ToolCallID: tCall.ID,
				})
			}
		}

		messages = append(messages, wireMsg)
		messages = append(messages, responseMsgs...)
	}
	return messages
}

func toWireTools(tools []llms.Tool) []tool {
	wireTools := make([]tool, 0, len(tools))
	for _, t := range tools {
		wireTools = append(wireTools, tool{
			Type: "function",
			Function: toolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return wireTools
}
