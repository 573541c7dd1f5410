package orchestration

import (
	"context"

	"github.com/looplab/fsm"
)

// Conversation states. A call starts Idle, enters Listening once every
// configured adapter came up, and cycles Listening -> Processing -> Speaking
// -> Listening per turn until an end request routes it through Ending back
// to Idle.
const (
	StateIdle       = "idle"
	StateListening  = "listening"
	StateProcessing = "processing"
	StateSpeaking   = "speaking"
	StateEnding     = "ending"
)

const (
	transitionStart      = "start"
	transitionEndpoint   = "endpoint"
	transitionRespond    = "respond"
	transitionNoResponse = "no-response"
	transitionComplete   = "complete"
	transitionBargeIn    = "barge-in"
	transitionPause      = "pause"
	transitionResume     = "resume"
	transitionEnd        = "end"
	transitionReset      = "reset"
)

func newStateMachine(onTransition func(from, to string)) *fsm.FSM {
	return fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: transitionStart, Src: []string{StateIdle}, Dst: StateListening},
			{Name: transitionEndpoint, Src: []string{StateListening}, Dst: StateProcessing},
			{Name: transitionRespond, Src: []string{StateProcessing}, Dst: StateSpeaking},
			{Name: transitionNoResponse, Src: []string{StateProcessing}, Dst: StateListening},
			{Name: transitionComplete, Src: []string{StateSpeaking}, Dst: StateListening},
			{Name: transitionBargeIn, Src: []string{StateSpeaking}, Dst: StateListening},
			{Name: transitionPause, Src: []string{StateListening, StateProcessing, StateSpeaking}, Dst: StateIdle},
			{Name: transitionResume, Src: []string{StateIdle}, Dst: StateListening},
			{Name: transitionEnd, Src: []string{StateIdle, StateListening, StateProcessing, StateSpeaking}, Dst: StateEnding},
			{Name: transitionReset, Src: []string{StateEnding}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				onTransition(e.Src, e.Dst)
			},
		},
	)
}
