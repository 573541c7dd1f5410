package orchestration

import (
	"context"

	"github.com/invorto/voice-core/core/audio/energy"
	"github.com/invorto/voice-core/core/events"
)

// handleEnergyWindow receives the energy meter's periodic windows. Each one
// is forwarded to the far end as telemetry; while the agent is speaking,
// consecutive windows with user speech detected trigger barge-in.
func (o *Orchestrator) handleEnergyWindow(window energy.Window) {
	o.enqueue(classControl, kindEnergyWindow, func(ctx context.Context) {
		o.emit(events.NewEmotionWindow(window.EnergyDB, window.Speaking))

		if o.state.Current() != StateSpeaking || !window.Speaking {
			o.mu.Lock()
			o.speakingWindows = 0
			o.mu.Unlock()
			return
		}

		o.mu.Lock()
		o.speakingWindows++
		triggered := o.speakingWindows >= o.bargeThreshold
		o.mu.Unlock()

		if triggered {
			o.bargeIn(ctx)
		}
	})
}

// bargeIn interrupts agent playback: synthesis is aborted, queued but unsent
// speech chunks are dropped, and exactly one stop-playback control message
// goes out before the call returns to Listening. In-flight tool calls or
// generation tied to the interrupted turn are left to finish and be
// discarded.
func (o *Orchestrator) bargeIn(ctx context.Context) {
	o.mu.Lock()
	o.speakingWindows = 0
	o.mu.Unlock()

	if err := o.textToSpeech.Interrupt(); err != nil {
		logger.Error("failed to interrupt synthesis on barge-in", "error", err)
	}
	dropped := o.queue.discard(kindSpeechOut)

	o.emit(events.NewBargeIn())
	o.timeline.Publish(ctx, o.callID, string(events.KindBargeIn),
		map[string]int{"dropped_chunks": dropped})

	o.mu.Lock()
	o.turns.close()
	o.mu.Unlock()

	if err := o.state.Event(ctx, transitionBargeIn); err != nil {
		logger.Error("failed to transition on barge-in", "error", err)
	}
	o.endpointing.Reset()
}
