package events

import "time"

// Kind identifies an outbound message stream on the wire, e.g.
// "stt.partial" or "control.bargein".
type Kind string

// Event is the envelope every outbound message satisfies.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base carries the kind and emission time shared by all events. Concrete
// events embed it and are built through their NewX constructors.
type Base struct {
	kind      Kind
	timestamp time.Time
}

// NewBase stamps a base with the emission time.
func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}
