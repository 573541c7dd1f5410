// Package energy converts raw PCM16 audio into per-interval loudness,
// band-energy and voice-activity signals with noise-floor tracking and
// hysteresis on the speaking flag.
package energy

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/smallnest/ringbuffer"

	"github.com/invorto/voice-core/core/audio"
	"github.com/invorto/voice-core/internal/rolling"
)

const (
	defaultIntervalMs         = 250
	defaultSpeakingThreshold  = -40.0
	defaultNoiseGateThreshold = -65.0
	defaultMinHoldWindows     = 2

	noiseHistoryCap    = 50
	recentWindowCap    = 20
	noiseFloorQuantile = 0.2

	// pcmBufferSeconds bounds how much un-flushed audio the meter holds;
	// older audio is evicted when the producer outruns the flush cadence.
	pcmBufferSeconds = 2
)

// BandEnergy holds coarse spectral split RMS levels: low covers roughly
// 0-300 Hz, mid 300-3000 Hz, high 3000-8000 Hz.
type BandEnergy struct {
	Low  float64
	Mid  float64
	High float64
}

// Window is one measurement interval. Each window supersedes the last;
// timestamps are monotonically non-decreasing.
type Window struct {
	EnergyDB      float64
	Speaking      bool
	NoiseFloor    float64
	SNR           float64
	Bands         BandEnergy
	VADConfidence float64
	Timestamp     time.Time
}

// Meter accumulates PCM16 audio and emits one Window per flush interval,
// including silence windows when no audio arrived.
type Meter struct {
	mu sync.Mutex

	encodingInfo       audio.EncodingInfo
	interval           time.Duration
	speakingThreshold  float64
	noiseGateThreshold float64
	minHoldWindows     int
	adaptiveThreshold  bool
	onWindow           func(Window)

	pcm *ringbuffer.RingBuffer

	noiseHistory  *rolling.Ring[float64]
	recentWindows *rolling.Ring[float64]

	speaking      bool
	pendingState  bool
	pendingCount  int
	lastTimestamp time.Time

	closeOnce sync.Once
	done      chan struct{}

	now func() time.Time
}

type Option func(*Meter)

func WithEncodingInfo(encodingInfo audio.EncodingInfo) Option {
	return func(m *Meter) {
		if !encodingInfo.IsZero() {
			m.encodingInfo = encodingInfo
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(m *Meter) {
		if interval > 0 {
			m.interval = interval
		}
	}
}

func WithSpeakingThreshold(db float64) Option {
	return func(m *Meter) { m.speakingThreshold = db }
}

func WithNoiseGateThreshold(db float64) Option {
	return func(m *Meter) { m.noiseGateThreshold = db }
}

// WithMinHoldWindows sets how many consecutive windows must land on the
// other side of the speaking threshold before the speaking flag flips.
func WithMinHoldWindows(windows int) Option {
	return func(m *Meter) {
		if windows > 0 {
			m.minHoldWindows = windows
		}
	}
}

func WithAdaptiveThreshold(enabled bool) Option {
	return func(m *Meter) { m.adaptiveThreshold = enabled }
}

// WithWindowCallback registers the single consumer of emitted windows.
func WithWindowCallback(callback func(Window)) Option {
	return func(m *Meter) {
		if callback != nil {
			m.onWindow = callback
		}
	}
}

func New(opts ...Option) *Meter {
	m := &Meter{
		encodingInfo:       audio.GetDefaultEncodingInfo(),
		interval:           defaultIntervalMs * time.Millisecond,
		speakingThreshold:  defaultSpeakingThreshold,
		noiseGateThreshold: defaultNoiseGateThreshold,
		minHoldWindows:     defaultMinHoldWindows,
		onWindow:           func(Window) {},
		noiseHistory:       rolling.NewRing[float64](noiseHistoryCap),
		recentWindows:      rolling.NewRing[float64](recentWindowCap),
		done:               make(chan struct{}),
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	bufferSize := m.encodingInfo.SampleRate * m.encodingInfo.Format.ByteSize() * pcmBufferSeconds
	m.pcm = ringbuffer.New(bufferSize)

	return m
}

// PushPCM16 accumulates raw audio for the next flush. When the buffer is
// full the oldest audio is evicted.
func (m *Meter) PushPCM16(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(b) > m.pcm.Capacity() {
		b = b[len(b)-m.pcm.Capacity():]
	}
	if m.pcm.Free() < len(b) {
		evicted := make([]byte, len(b)-m.pcm.Free())
		m.pcm.Read(evicted)
	}
	m.pcm.Write(b)
}

// Start launches the periodic flush. Windows keep being emitted even with
// no audio buffered so downstream consumers see a steady heartbeat.
func (m *Meter) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.done:
				return
			case <-ticker.C:
				m.onWindow(m.Flush())
			}
		}
	}()
}

func (m *Meter) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}

// Speaking reports the hysteresis-filtered speaking flag.
func (m *Meter) Speaking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speaking
}

// SpeakingThreshold returns the current (possibly adapted) threshold in dBFS.
func (m *Meter) SpeakingThreshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speakingThreshold
}

// Flush computes one Window from the audio accumulated since the last
// flush and resets the accumulation buffer. Normally driven by the Start
// ticker; exposed so callers can drain on demand.
func (m *Meter) Flush() Window {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Before(m.lastTimestamp) {
		now = m.lastTimestamp
	}
	m.lastTimestamp = now

	var samples []float64
	if length := m.pcm.Length(); length > 0 {
		buffered := make([]byte, length)
		m.pcm.Read(buffered)
		samples = audio.DecodePCM16(buffered)
	}

	energyDb := audio.DBFS(audio.RMS(samples))
	bands := bandSplit(samples, m.encodingInfo.SampleRate)

	m.noiseHistory.Push(energyDb)
	noiseFloor := quantile(m.noiseHistory.Values(), noiseFloorQuantile)

	gated := energyDb
	if energyDb <= m.noiseGateThreshold {
		gated = audio.MinDBFS
	}

	snr := energyDb - noiseFloor
	if snr < 0 {
		snr = 0
	}

	confidence := 0.0
	if gated > noiseFloor+10 {
		confidence += 0.4
	}
	if snr > 15 {
		confidence += 0.3
	}
	if total := bands.Low + bands.Mid + bands.High; total > 0 && bands.Mid/total > 0.3 {
		confidence += 0.3
	}
	if confidence > 1 {
		confidence = 1
	}

	isAbove := gated >= m.speakingThreshold && confidence > 0.3
	m.applyHysteresisLocked(isAbove)

	m.recentWindows.Push(gated)
	if m.adaptiveThreshold {
		m.adaptThresholdLocked(gated, noiseFloor)
	}

	return Window{
		EnergyDB:      gated,
		Speaking:      m.speaking,
		NoiseFloor:    noiseFloor,
		SNR:           snr,
		Bands:         bands,
		VADConfidence: confidence,
		Timestamp:     now,
	}
}

// applyHysteresisLocked flips the speaking flag only after minHoldWindows
// consecutive windows land on the other side of the threshold.
func (m *Meter) applyHysteresisLocked(isAbove bool) {
	if isAbove == m.speaking {
		m.pendingCount = 0
		return
	}

	if m.pendingCount == 0 || m.pendingState != isAbove {
		m.pendingState = isAbove
		m.pendingCount = 1
	} else {
		m.pendingCount++
	}

	if m.pendingCount >= m.minHoldWindows {
		m.speaking = isAbove
		m.pendingCount = 0
	}
}

func (m *Meter) adaptThresholdLocked(gated, noiseFloor float64) {
	if m.speaking {
		m.speakingThreshold = clampThreshold(gated - 5)
		return
	}

	recent := m.recentWindows.Values()
	mean, stddev := meanStddev(recent)
	target := noiseFloor + 15
	if mean-stddev > target {
		target = mean - stddev
	}
	m.speakingThreshold = clampThreshold(0.95*m.speakingThreshold + 0.05*target)
}

func clampThreshold(db float64) float64 {
	if db < -60 {
		return -60
	}
	if db > -20 {
		return -20
	}
	return db
}

func meanStddev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(variance / float64(len(values)))
}

func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return audio.MinDBFS
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}

// bandSplit approximates a three-way spectral split with cheap time-domain
// filters: a moving average for the low band, a first difference for the
// high band, and the residual energy assigned to the mid band.
func bandSplit(samples []float64, sampleRate int) BandEnergy {
	if len(samples) == 0 || sampleRate <= 0 {
		return BandEnergy{}
	}

	lowWindow := sampleRate / 300
	if lowWindow < 1 {
		lowWindow = 1
	}

	lowpassed := make([]float64, len(samples))
	var windowSum float64
	for i, s := range samples {
		windowSum += s
		if i >= lowWindow {
			windowSum -= samples[i-lowWindow]
		}
		n := i + 1
		if n > lowWindow {
			n = lowWindow
		}
		lowpassed[i] = windowSum / float64(n)
	}

	highpassed := make([]float64, len(samples))
	for i := 1; i < len(samples); i++ {
		highpassed[i] = (samples[i] - samples[i-1]) / 2
	}

	total := audio.RMS(samples)
	low := audio.RMS(lowpassed)
	high := audio.RMS(highpassed)

	mid := 0.0
	if residual := total*total - low*low - high*high; residual > 0 {
		mid = math.Sqrt(residual)
	}

	return BandEnergy{Low: low, Mid: mid, High: high}
}
