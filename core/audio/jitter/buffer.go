// Package jitter implements an adaptive de-jitter buffer for sequenced
// audio packets with packet loss concealment.
package jitter

import (
	"math"
	"sync"
	"time"

	"github.com/invorto/voice-core/core/audio"
	"github.com/invorto/voice-core/internal/rolling"
)

const (
	// plcGain is the attenuation applied to a replayed packet when
	// concealing a loss.
	plcGain = 0.7

	// growJitterMs and shrinkJitterMs bound the adaptive depth control:
	// above growJitterMs the buffer deepens, below shrinkJitterMs it
	// shallows.
	growJitterMs   = 50.0
	shrinkJitterMs = 10.0

	// latencyWindow is how many recent playout latencies feed the jitter
	// estimate.
	latencyWindow = 10
)

type packet struct {
	sequence    uint32
	timestampMs uint64
	payload     []byte
	receivedAt  time.Time
	marker      bool
}

// Buffer reorders incoming audio packets, conceals losses and, in adaptive
// mode, trades playout latency against loss resilience based on observed
// network jitter.
type Buffer struct {
	mu sync.Mutex

	encodingInfo audio.EncodingInfo
	frameMs      int
	minDepth     int
	maxDepth     int
	targetDepth  int
	adaptive     bool
	concealment  bool

	// slots is a ring indexed by sequence number mod capacity.
	slots    []*packet
	buffered int

	started     bool
	expectedSeq uint32
	lastValid   []byte

	latencies *rolling.Ring[float64]

	now func() time.Time

	stats statsAccumulator
}

type Option func(*Buffer)

// WithTargetDelay sets the desired playout delay; the initial buffer depth
// is derived from it in frames.
func WithTargetDelay(targetMs int) Option {
	return func(b *Buffer) {
		if targetMs > 0 {
			b.targetDepth = targetMs / b.frameMs
		}
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) Option {
	return func(b *Buffer) {
		if !encodingInfo.IsZero() {
			b.encodingInfo = encodingInfo
		}
	}
}

func WithFrameDuration(frameMs int) Option {
	return func(b *Buffer) {
		if frameMs > 0 {
			b.frameMs = frameMs
		}
	}
}

// WithDepthBounds sets the minimum and maximum buffer depth in frames. The
// maximum also sizes the packet ring.
func WithDepthBounds(minFrames, maxFrames int) Option {
	return func(b *Buffer) {
		if minFrames > 0 {
			b.minDepth = minFrames
		}
		if maxFrames >= b.minDepth {
			b.maxDepth = maxFrames
		}
	}
}

func WithAdaptiveMode(enabled bool) Option {
	return func(b *Buffer) { b.adaptive = enabled }
}

func WithConcealment(enabled bool) Option {
	return func(b *Buffer) { b.concealment = enabled }
}

func New(opts ...Option) *Buffer {
	b := &Buffer{
		encodingInfo: audio.GetDefaultEncodingInfo(),
		frameMs:      audio.DefaultFrameMs,
		minDepth:     2,
		maxDepth:     50,
		targetDepth:  3,
		adaptive:     true,
		concealment:  true,
		latencies:    rolling.NewRing[float64](latencyWindow),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.targetDepth < b.minDepth {
		b.targetDepth = b.minDepth
	}
	if b.targetDepth > b.maxDepth {
		b.targetDepth = b.maxDepth
	}
	b.slots = make([]*packet, b.maxDepth)

	return b
}

// Push admits one packet. Packets behind the expected sequence have already
// been played or concealed and are counted late and dropped; duplicates of a
// pending sequence silently overwrite.
func (b *Buffer) Push(sequence uint32, timestampMs uint64, payload []byte, marker bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.received++

	if !b.started {
		b.started = true
		b.expectedSeq = sequence
	} else if int32(sequence-b.expectedSeq) < 0 {
		b.stats.late++
		return
	}

	slot := int(sequence) % len(b.slots)
	if b.slots[slot] == nil {
		b.buffered++
	}
	b.slots[slot] = &packet{
		sequence:    sequence,
		timestampMs: timestampMs,
		payload:     payload,
		receivedAt:  b.now(),
		marker:      marker,
	}

	b.recordDepthLocked()
	b.adaptDepthLocked()
}

// Pop returns the payload for the next expected sequence number, a
// concealment substitute when that packet never arrived, or nil when the
// buffer holds nothing at all (the caller must not advance its playout
// clock on nil).
func (b *Buffer) Pop() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started || b.buffered == 0 {
		return nil
	}

	slot := int(b.expectedSeq) % len(b.slots)
	if pkt := b.slots[slot]; pkt != nil && pkt.sequence == b.expectedSeq {
		b.slots[slot] = nil
		b.buffered--
		b.expectedSeq++

		b.stats.played++
		latency := float64(b.now().Sub(pkt.receivedAt).Microseconds()) / 1000.0
		b.latencies.Push(latency)
		b.stats.latencySum += latency

		b.lastValid = pkt.payload

		b.recordDepthLocked()
		b.adaptDepthLocked()
		return pkt.payload
	}

	// The expected packet never arrived but newer ones did.
	b.stats.lost++
	b.expectedSeq++
	b.recordDepthLocked()
	b.adaptDepthLocked()

	if b.concealment && b.lastValid != nil {
		return audio.AttenuatePCM16(b.lastValid, plcGain)
	}
	return nil
}

// HasEnoughPackets reports whether the buffer has filled to its target
// depth. Callers should honor this before starting playout.
func (b *Buffer) HasEnoughPackets() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffered >= b.targetDepth
}

// TargetDepth returns the current adaptive depth in frames.
func (b *Buffer) TargetDepth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.targetDepth
}

func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.slots {
		b.slots[i] = nil
	}
	b.buffered = 0
	b.started = false
	b.lastValid = nil
	b.latencies.Reset()
	b.stats = statsAccumulator{}
}

// recentJitterLocked is the mean absolute delta between consecutive playout
// latencies over the recent latency window.
func (b *Buffer) recentJitterLocked() float64 {
	latencies := b.latencies.Values()
	if len(latencies) < 2 {
		return 0
	}

	var sum float64
	for i := 1; i < len(latencies); i++ {
		sum += math.Abs(latencies[i] - latencies[i-1])
	}
	return sum / float64(len(latencies)-1)
}

func (b *Buffer) adaptDepthLocked() {
	if !b.adaptive {
		return
	}

	jitterMs := b.recentJitterLocked()
	if jitterMs > growJitterMs && b.targetDepth < b.maxDepth {
		b.targetDepth++
	} else if jitterMs < shrinkJitterMs && b.targetDepth > b.minDepth {
		b.targetDepth--
	}
}

func (b *Buffer) recordDepthLocked() {
	b.stats.depthSamples++
	b.stats.depthSum += int64(b.buffered)
	if b.buffered > b.stats.depthMax {
		b.stats.depthMax = b.buffered
	}
}
