package events

const (
	// KindBargeIn identifies a caller interruption of agent speech.
	KindBargeIn Kind = "control.bargein"
	// KindStateChanged identifies a conversation state transition.
	KindStateChanged Kind = "call.state_changed"
	// KindCallEnded identifies call termination.
	KindCallEnded Kind = "call.end"
	// KindCallError identifies a fatal call error.
	KindCallError Kind = "call.error"
)

// BargeInActionStopTTS instructs the transport to stop playback
// immediately.
const BargeInActionStopTTS = "stop-tts"

// BargeIn instructs the far end to stop agent speech playback.
type BargeIn struct {
	Base
	Action string
}

// NewBargeIn creates a barge-in control event.
func NewBargeIn() BargeIn {
	return BargeIn{Base: NewBase(KindBargeIn), Action: BargeInActionStopTTS}
}

// StateChanged marks a conversation state transition.
type StateChanged struct {
	Base
	From string
	To   string
}

// NewStateChanged creates a state changed event.
func NewStateChanged(from, to string) StateChanged {
	return StateChanged{Base: NewBase(KindStateChanged), From: from, To: to}
}

// CallEnded marks call termination with its reason.
type CallEnded struct {
	Base
	Reason string
}

// NewCallEnded creates a call ended event.
func NewCallEnded(reason string) CallEnded {
	return CallEnded{Base: NewBase(KindCallEnded), Reason: reason}
}

// CallError marks a fatal error surfaced to the far end.
type CallError struct {
	Base
	Stage string
	Error string
}

// NewCallError creates a call error event.
func NewCallError(stage, err string) CallError {
	return CallError{Base: NewBase(KindCallError), Stage: stage, Error: err}
}
