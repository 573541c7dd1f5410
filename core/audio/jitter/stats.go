package jitter

// Stats is a read-only snapshot of buffer counters and gauges. Lost and
// late packets are counted separately: lost packets were concealment-worthy
// gaps at playout, late packets were rejected at admission.
type Stats struct {
	PacketsReceived uint64
	PacketsLost     uint64
	PacketsLate     uint64
	PacketsPlayed   uint64

	CurrentSize int
	AverageSize float64
	MaxSize     int

	JitterMs       float64
	AverageLatency float64
}

type statsAccumulator struct {
	received uint64
	lost     uint64
	late     uint64
	played   uint64

	depthSum     int64
	depthSamples int64
	depthMax     int

	latencySum float64
}

// Stats returns a snapshot of the buffer's counters. It never mutates
// buffer state.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := Stats{
		PacketsReceived: b.stats.received,
		PacketsLost:     b.stats.lost,
		PacketsLate:     b.stats.late,
		PacketsPlayed:   b.stats.played,
		CurrentSize:     b.buffered,
		MaxSize:         b.stats.depthMax,
		JitterMs:        b.recentJitterLocked(),
	}
	if b.stats.depthSamples > 0 {
		stats.AverageSize = float64(b.stats.depthSum) / float64(b.stats.depthSamples)
	}
	if b.stats.played > 0 {
		stats.AverageLatency = b.stats.latencySum / float64(b.stats.played)
	}
	return stats
}
