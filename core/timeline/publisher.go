// Package timeline defines the fire-and-forget publisher contract for
// call timeline events. Publish failures are swallowed by callers and
// must never propagate into call handling.
package timeline

import (
	"context"
	"sync"
	"time"
)

// Publisher records call timeline events. Implementations must not block
// the caller; slow sinks should buffer or drop internally.
type Publisher interface {
	Publish(ctx context.Context, callID string, kind string, payload any)
}

// Event is one recorded timeline entry.
type Event struct {
	CallID    string
	Kind      string
	Payload   any
	Timestamp time.Time
}

// Recorder is an in-memory Publisher, used in tests and as the default
// sink when no external publisher is wired.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, callID string, kind string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, Event{
		CallID:    callID,
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := make([]Event, len(r.events))
	copy(events, r.events)
	return events
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, string, string, any) {}
