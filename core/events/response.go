package events

const (
	// KindResponseDelta identifies a streamed agent response text segment.
	KindResponseDelta Kind = "llm.delta"
	// KindResponseCompleted identifies the end of a response generation.
	KindResponseCompleted Kind = "llm.final"
)

// ResponseDelta carries one streamed response text segment.
type ResponseDelta struct {
	Base
	Text string
}

// NewResponseDelta creates a response delta event.
func NewResponseDelta(text string) ResponseDelta {
	return ResponseDelta{Base: NewBase(KindResponseDelta), Text: text}
}

// ResponseCompleted carries the full assembled response text.
type ResponseCompleted struct {
	Base
	Text string
}

// NewResponseCompleted creates a response completed event.
func NewResponseCompleted(text string) ResponseCompleted {
	return ResponseCompleted{Base: NewBase(KindResponseCompleted), Text: text}
}
