package orchestration

import (
	"context"
	"strings"

	"github.com/invorto/voice-core/core/events"
)

func (o *Orchestrator) handlePartialTranscript(transcript string, confidence float64) {
	o.enqueue(classText, kindTranscript, func(ctx context.Context) {
		o.emit(events.NewTranscriptPartial(transcript, confidence))

		// Partials only feed endpointing while the user holds the floor.
		if o.state.Current() == StateListening {
			o.mu.Lock()
			o.pendingPartial = transcript
			o.mu.Unlock()
		}
	})
}

func (o *Orchestrator) handleFinalTranscript(transcript string, confidence float64, durationSeconds float64) {
	o.enqueue(classText, kindTranscript, func(ctx context.Context) {
		o.emit(events.NewTranscriptFinal(transcript, confidence, durationSeconds))

		// Final transcripts always update the open turn, whatever the state.
		o.mu.Lock()
		if transcript != "" {
			o.turns.appendTranscript(transcript)
		}
		o.pendingPartial = ""
		o.mu.Unlock()
	})
}

func (o *Orchestrator) handleUtteranceEnd() {
	o.enqueue(classControl, kindControl, func(ctx context.Context) {
		o.emit(events.NewUtteranceEnded())

		o.mu.Lock()
		hasTranscript := o.turns.activeTranscript() != ""
		o.mu.Unlock()
		if o.state.Current() == StateListening && hasTranscript {
			o.endpoint(ctx, "utterance_end")
		}
	})
}

// transcriptForEndpointing joins the confirmed turn transcript with the
// newest partial so endpointing sees words before they are finalized.
func (o *Orchestrator) transcriptForEndpointing() string {
	o.mu.Lock()
	defer o.mu.Unlock()

	transcript := o.turns.activeTranscript()
	if o.pendingPartial == "" {
		return transcript
	}
	if transcript == "" {
		return o.pendingPartial
	}
	return strings.TrimSpace(transcript) + " " + o.pendingPartial
}

// SendText injects user text directly, bypassing audio and ASR. The text is
// treated as a completed utterance.
func (o *Orchestrator) SendText(text string) {
	o.enqueue(classText, kindUserText, func(ctx context.Context) {
		if text == "" {
			return
		}

		o.mu.Lock()
		o.turns.appendTranscript(text)
		o.mu.Unlock()

		if o.state.Current() == StateListening {
			o.endpoint(ctx, "user_text")
		}
	})
}

// ProvideToolResult resolves an externally executed tool call, attaching the
// result to the matching pending call.
func (o *Orchestrator) ProvideToolResult(id, result string) {
	o.enqueue(classToolResult, kindToolResult, func(ctx context.Context) {
		o.timeline.Publish(ctx, o.callID, string(events.KindToolCallCompleted),
			map[string]string{"id": id, "result": result})

		o.mu.Lock()
		defer o.mu.Unlock()
		if o.turns.active != nil {
			for i := range o.turns.active.ToolCalls {
				if o.turns.active.ToolCalls[i].ID == id && o.turns.active.ToolCalls[i].Response == "" {
					o.turns.active.ToolCalls[i].Response = result
					return
				}
			}
		}
		for t := len(o.turns.history) - 1; t >= 0; t-- {
			calls := o.turns.history[t].ToolCalls
			for i := range calls {
				if calls[i].ID == id && calls[i].Response == "" {
					calls[i].Response = result
					return
				}
			}
		}
	})
}

// SendDTMF records a DTMF request; dialing is the transport's concern.
func (o *Orchestrator) SendDTMF(digits, method string) {
	o.enqueue(classControl, kindControl, func(ctx context.Context) {
		o.timeline.Publish(ctx, o.callID, "dtmf.send",
			map[string]string{"digits": digits, "method": method})
	})
}

// Transfer records a transfer request; the handoff itself is the
// transport's concern.
func (o *Orchestrator) Transfer(to, mode string) {
	o.enqueue(classControl, kindControl, func(ctx context.Context) {
		o.timeline.Publish(ctx, o.callID, "transfer",
			map[string]string{"to": to, "mode": mode})
	})
}
