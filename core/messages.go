package orchestration

import (
	"context"
	"fmt"
)

// Inbound application messages. The wire format is owned by the transport
// collaborator; these are the shapes the core consumes.

type StartMessage struct {
	CallID  string `json:"callId"`
	AgentID string `json:"agentId"`
	Locale  string `json:"locale,omitempty"`
}

type AudioMessage struct {
	Seq         uint32 `json:"seq"`
	TimestampMs uint64 `json:"ts,omitempty"`
	PCM16       []byte `json:"pcm16"`
	Marker      bool   `json:"marker,omitempty"`
}

type ToolResultMessage struct {
	ID     string `json:"id"`
	Result string `json:"result"`
}

type DTMFMessage struct {
	Digits string `json:"digits"`
	Method string `json:"method"`
}

type TransferMessage struct {
	To   string `json:"to"`
	Mode string `json:"mode"`
}

type EndMessage struct {
	Reason string `json:"reason"`
}

// Dispatch routes one inbound message to the owning operation. Unknown
// message types are an error; everything else is fire-and-forget.
func (o *Orchestrator) Dispatch(ctx context.Context, msg any) error {
	switch msg := msg.(type) {
	case StartMessage:
		o.mu.Lock()
		if msg.CallID != "" {
			o.callID = msg.CallID
		}
		if msg.AgentID != "" {
			o.agentID = msg.AgentID
		}
		if msg.Locale != "" {
			o.locale = msg.Locale
		}
		o.mu.Unlock()
		return o.Start(ctx)

	case AudioMessage:
		o.ProcessAudioPacket(msg.Seq, msg.TimestampMs, msg.PCM16, msg.Marker)

	case ToolResultMessage:
		o.ProvideToolResult(msg.ID, msg.Result)

	case DTMFMessage:
		o.SendDTMF(msg.Digits, msg.Method)

	case TransferMessage:
		o.Transfer(msg.To, msg.Mode)

	case EndMessage:
		o.End(msg.Reason)

	default:
		return fmt.Errorf("unknown inbound message type %T", msg)
	}
	return nil
}
