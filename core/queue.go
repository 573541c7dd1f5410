package orchestration

import (
	"container/heap"
	"context"
	"sync"
)

// msgClass orders queued messages: text beats control beats tool results
// beats audio, so a transcript already in flight is applied before the audio
// frames that followed it.
type msgClass int

const (
	classText msgClass = iota
	classControl
	classToolResult
	classAudio
)

type msgKind int

const (
	kindUserText msgKind = iota
	kindTranscript
	kindControl
	kindEnergyWindow
	kindToolResult
	kindPacketIn
	kindSpeechOut
)

type queuedMessage struct {
	class msgClass
	kind  msgKind
	// arrival breaks priority ties so messages of one class stay FIFO.
	arrival uint64
	run     func(ctx context.Context)
}

type messageHeap []queuedMessage

func (h messageHeap) Len() int { return len(h) }

func (h messageHeap) Less(i, j int) bool {
	if h[i].class != h[j].class {
		return h[i].class < h[j].class
	}
	return h[i].arrival < h[j].arrival
}

func (h messageHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *messageHeap) Push(x any) { *h = append(*h, x.(queuedMessage)) }

func (h *messageHeap) Pop() any {
	old := *h
	n := len(old)
	msg := old[n-1]
	*h = old[:n-1]
	return msg
}

// messageQueue is the call's single synchronization primitive: every state
// mutation is funneled through it and drained by one runner at a time.
type messageQueue struct {
	mu      sync.Mutex
	arrival uint64
	heap    messageHeap
}

func newMessageQueue() *messageQueue {
	return &messageQueue{}
}

func (q *messageQueue) push(class msgClass, kind msgKind, run func(context.Context)) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.arrival++
	heap.Push(&q.heap, queuedMessage{
		class:   class,
		kind:    kind,
		arrival: q.arrival,
		run:     run,
	})
}

func (q *messageQueue) pop() (queuedMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.heap) == 0 {
		return queuedMessage{}, false
	}
	return heap.Pop(&q.heap).(queuedMessage), true
}

func (q *messageQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.heap)
}

// discard drops every queued message of the passed kind and returns how many
// were removed.
func (q *messageQueue) discard(kind msgKind) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.heap[:0]
	dropped := 0
	for _, msg := range q.heap {
		if msg.kind == kind {
			dropped++
			continue
		}
		kept = append(kept, msg)
	}
	q.heap = kept
	heap.Init(&q.heap)
	return dropped
}
