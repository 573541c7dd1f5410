package orchestration

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/invorto/voice-core/core/llms"
)

// Turn is one user-utterance/agent-response pair. At most one turn is open
// at a time; it is closed and appended to the conversation history when the
// agent finishes speaking or the call ends.
type Turn struct {
	ID             string
	StartTime      time.Time
	EndTime        *time.Time
	UserTranscript string
	AgentResponse  string
	ToolCalls      []llms.ToolCall
	Metadata       map[string]string
}

type turns struct {
	active  *Turn
	history []Turn

	now func() time.Time
}

func newTurns() turns {
	return turns{now: time.Now}
}

// open returns the active turn, creating one if none is open.
func (t *turns) open() *Turn {
	if t.active == nil {
		t.active = &Turn{
			ID:        uuid.NewString(),
			StartTime: t.now(),
		}
	}
	return t.active
}

func (t *turns) appendTranscript(transcript string) {
	turn := t.open()
	if turn.UserTranscript == "" {
		turn.UserTranscript = transcript
		return
	}
	turn.UserTranscript = strings.TrimSpace(turn.UserTranscript) + " " + transcript
}

// close finalizes the active turn and appends it to history. Closing with no
// open turn is a no-op.
func (t *turns) close() *Turn {
	if t.active == nil {
		return nil
	}

	endTime := t.now()
	t.active.EndTime = &endTime
	t.history = append(t.history, *t.active)
	closed := &t.history[len(t.history)-1]
	t.active = nil
	return closed
}

func (t *turns) activeTranscript() string {
	if t.active == nil {
		return ""
	}
	return t.active.UserTranscript
}

// messages renders the closed history as model messages, oldest first.
func (t *turns) messages() []llms.Message {
	var messages []llms.Message
	for _, turn := range t.history {
		if turn.UserTranscript != "" {
			messages = append(messages, llms.Message{
				Role:    llms.MessageRoleUser,
				Content: turn.UserTranscript,
			})
		}
		if turn.AgentResponse != "" || len(turn.ToolCalls) > 0 {
			messages = append(messages, llms.Message{
				Role:      llms.MessageRoleAssistant,
				Content:   turn.AgentResponse,
				ToolCalls: turn.ToolCalls,
			})
		}
	}
	return messages
}

func (t *turns) snapshot() []Turn {
	history := make([]Turn, len(t.history))
	copy(history, t.history)
	if t.active != nil {
		history = append(history, *t.active)
	}
	return history
}
