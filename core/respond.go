package orchestration

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/invorto/voice-core/core/events"
	"github.com/invorto/voice-core/core/llms"
	"github.com/invorto/voice-core/core/tools"
)

// endpoint closes the user's speaking turn and kicks off response
// generation. No-op unless the call is Listening.
func (o *Orchestrator) endpoint(ctx context.Context, reason string) {
	if err := o.state.Event(ctx, transitionEndpoint); err != nil {
		return
	}

	o.timeline.Publish(ctx, o.callID, "endpointing.triggered", map[string]string{"reason": reason})
	o.respond(ctx)
}

func (o *Orchestrator) respond(ctx context.Context) {
	o.mu.Lock()
	prompt := o.turns.activeTranscript()
	turn := o.turns.open()
	history := o.turns.messages()
	o.pendingPartial = ""
	o.fellBack = false
	o.mu.Unlock()

	response, err := o.llm.generate(ctx, prompt, generateOptions{
		systemPrompt: o.systemPrompt,
		history:      history,
		tools:        o.toolDefinitions(),
		onDelta: func(delta string) {
			o.emit(events.NewResponseDelta(delta))
		},
		onUsage: func(usage llms.Usage) {
			o.usage.addLLMTokens(ctx, int64(usage.InputTokens), int64(usage.OutputTokens))
		},
		executeTool: o.executeToolCall,
		cancelled: func() bool {
			state := o.state.Current()
			return state == StateEnding || state == StateIdle
		},
	})

	text := ""
	if response != nil {
		text = response.Content
		o.mu.Lock()
		turn.ToolCalls = append(turn.ToolCalls, response.ToolCalls...)
		o.mu.Unlock()
	}
	if err != nil {
		logger.Error("response generation failed, falling back", "error", err)
		o.timeline.Publish(ctx, o.callID, string(events.KindCallError),
			map[string]string{"stage": "llm", "error": err.Error()})
		o.mu.Lock()
		o.fellBack = true
		o.mu.Unlock()
		text = o.fallbackUtterance
	}

	if text == "" {
		if err := o.state.Event(ctx, transitionNoResponse); err != nil {
			logger.Error("failed to return to listening", "error", err)
		}
		o.endpointing.Reset()
		return
	}

	o.mu.Lock()
	turn.AgentResponse = text
	o.mu.Unlock()

	o.emit(events.NewResponseCompleted(text))
	if err := o.state.Event(ctx, transitionRespond); err != nil {
		return
	}
	o.speak(ctx, text)
}

func (o *Orchestrator) speak(ctx context.Context, text string) {
	if !o.textToSpeech.isConfigured() {
		o.finishSpeaking(ctx)
		return
	}

	o.usage.addTTSCharacters(ctx, int64(len(text)))
	if err := o.textToSpeech.Synthesize(text); err != nil {
		logger.Error("synthesis failed", "error", err)
		o.timeline.Publish(ctx, o.callID, string(events.KindCallError),
			map[string]string{"stage": "tts", "error": err.Error()})

		o.mu.Lock()
		fellBack := o.fellBack
		o.fellBack = true
		o.mu.Unlock()
		if !fellBack {
			o.speak(ctx, o.fallbackUtterance)
			return
		}
		o.finishSpeaking(ctx)
	}
}

// finishSpeaking closes the turn and returns the call to Listening once
// synthesis has completed (or was abandoned).
func (o *Orchestrator) finishSpeaking(ctx context.Context) {
	if o.state.Current() != StateSpeaking {
		return
	}

	o.mu.Lock()
	closed := o.turns.close()
	o.speakingWindows = 0
	o.mu.Unlock()

	o.emit(events.NewSpeechCompleted())
	if err := o.state.Event(ctx, transitionComplete); err != nil {
		logger.Error("failed to complete speaking", "error", err)
	}
	o.endpointing.Reset()

	if closed != nil {
		o.timeline.Publish(ctx, o.callID, "turn.completed", map[string]string{
			"id":         closed.ID,
			"transcript": closed.UserTranscript,
			"response":   closed.AgentResponse,
		})
	}
}

func (o *Orchestrator) handleSynthesizedAudio(chunk []byte) {
	buf := slices.Clone(chunk)
	o.enqueue(classAudio, kindSpeechOut, func(ctx context.Context) {
		if o.state.Current() != StateSpeaking {
			return
		}

		o.mu.Lock()
		o.speechSeq++
		seq := o.speechSeq
		o.mu.Unlock()

		o.emit(events.NewSpeechChunk(seq, buf))
	})
}

func (o *Orchestrator) handleSynthesisEnded() {
	o.enqueue(classControl, kindControl, func(ctx context.Context) {
		o.finishSpeaking(ctx)
	})
}

func (o *Orchestrator) handleSynthesisError(err error) {
	o.enqueue(classControl, kindControl, func(ctx context.Context) {
		logger.Error("text-to-speech reported error", "error", err)
		if o.state.Current() != StateSpeaking {
			return
		}

		o.mu.Lock()
		fellBack := o.fellBack
		o.fellBack = true
		o.mu.Unlock()
		if !fellBack {
			o.speak(ctx, o.fallbackUtterance)
			return
		}
		o.finishSpeaking(ctx)
	})
}

func (o *Orchestrator) toolDefinitions() []llms.Tool {
	if o.tools == nil {
		return nil
	}

	defs := o.tools.Definitions()
	list := make([]llms.Tool, 0, len(defs))
	for _, def := range defs {
		list = append(list, llms.Tool{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Parameters,
		})
	}
	return list
}

// executeToolCall runs one model-requested tool invocation. Failures come
// back as structured payloads, never as raised errors, and both the request
// and the result are timeline-published.
func (o *Orchestrator) executeToolCall(ctx context.Context, call llms.ToolCall) string {
	o.emit(events.NewToolCallRequested(call.ID, call.Name, call.Arguments))
	o.timeline.Publish(ctx, o.callID, string(events.KindToolCallRequested),
		map[string]string{"id": call.ID, "name": call.Name, "args": call.Arguments})
	o.usage.addToolCall(ctx)

	var result tools.Result
	if o.tools == nil {
		result = tools.Result{
			OK:    false,
			Error: tools.ErrNotConfigured.Error(),
			Code:  tools.ErrorCodeNotConfigured,
		}
	} else {
		result = o.tools.ExecuteTool(ctx, call.Name, call.Arguments)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		payload = []byte(`{"ok":false,"error":"failed to serialize tool result"}`)
	}

	if result.OK {
		o.emit(events.NewToolCallCompleted(call.ID, call.Name, string(payload)))
		o.timeline.Publish(ctx, o.callID, string(events.KindToolCallCompleted),
			map[string]string{"id": call.ID, "name": call.Name, "result": string(payload)})
	} else {
		o.emit(events.NewToolCallFailed(call.ID, call.Name, result.Error))
		o.timeline.Publish(ctx, o.callID, string(events.KindToolCallFailed),
			map[string]string{"id": call.ID, "name": call.Name, "error": result.Error, "code": result.Code})
	}
	return string(payload)
}
