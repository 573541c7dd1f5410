package orchestration

import (
	"context"
	"testing"

	"github.com/invorto/voice-core/core/llms"
	"github.com/invorto/voice-core/core/timeline"
)

func timelineKinds(recorder *timeline.Recorder) []string {
	events := recorder.Events()
	kinds := make([]string, 0, len(events))
	for _, event := range events {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

func hasTimelineKind(recorder *timeline.Recorder, kind string) bool {
	for _, k := range timelineKinds(recorder) {
		if k == kind {
			return true
		}
	}
	return false
}

func TestDispatchRoutesMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder := timeline.NewRecorder()
	o, _, _, _, _ := newTestOrchestrator(WithTimelinePublisher(recorder))

	if err := o.Dispatch(ctx, StartMessage{CallID: "call-42", AgentID: "agent-7"}); err != nil {
		t.Fatalf("Start dispatch failed: %v", err)
	}
	if state := o.State(); state != StateListening {
		t.Fatalf("expected state %q, got %q", StateListening, state)
	}

	o.Dispatch(ctx, AudioMessage{Seq: 1, TimestampMs: 0, PCM16: pcm16Frame(20)})
	o.Dispatch(ctx, DTMFMessage{Digits: "1", Method: "rfc2833"})
	o.Dispatch(ctx, TransferMessage{To: "+15550100", Mode: "blind"})
	o.Dispatch(ctx, EndMessage{Reason: "hangup"})

	if state := o.State(); state != StateIdle {
		t.Fatalf("expected state %q after end, got %q", StateIdle, state)
	}
	for _, kind := range []string{"call.started", "dtmf.send", "transfer", "call.end"} {
		if !hasTimelineKind(recorder, kind) {
			t.Fatalf("expected timeline kind %q, got %v", kind, timelineKinds(recorder))
		}
	}

	// The start message's identifiers must stick.
	for _, event := range recorder.Events() {
		if event.CallID != "call-42" {
			t.Fatalf("expected call id call-42 on %q, got %q", event.Kind, event.CallID)
		}
	}
}

func TestDispatchRejectsUnknownMessage(t *testing.T) {
	o, _, _, _, _ := newTestOrchestrator()
	if err := o.Dispatch(context.Background(), struct{ X int }{}); err == nil {
		t.Fatal("expected an error for an unknown message type")
	}
}

func TestProvideToolResultAttachesToPendingCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o, _, _, _, _ := newTestOrchestrator()

	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer o.End("test over")

	// Leave a turn open with an unresolved tool call on it.
	o.SendText("check my order")
	o.mu.Lock()
	turn := o.turns.open()
	turn.ToolCalls = append(turn.ToolCalls, llms.ToolCall{ID: "t9", Name: "lookup_order"})
	o.mu.Unlock()

	o.ProvideToolResult("t9", `{"status":"shipped"}`)

	history := o.Conversation()
	if len(history) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(history))
	}
	call := history[0].ToolCalls[0]
	if call.Response != `{"status":"shipped"}` {
		t.Fatalf("expected result attached to call, got %q", call.Response)
	}
}
