// Package endpointing decides when a caller's conversational turn has
// ended, combining silence accounting with incremental transcript cues.
package endpointing

import (
	"strings"
	"sync"
	"time"
)

// Reason explains why a detector signalled (or did not signal) end of turn.
type Reason string

const (
	ReasonNone             Reason = "none"
	ReasonSilenceTimeout   Reason = "silence_timeout"
	ReasonSentenceComplete Reason = "sentence_complete"
	ReasonQuestionDetected Reason = "question_detected"
	ReasonIncompletePause  Reason = "incomplete_sentence_pause"
	ReasonConfidence       Reason = "confidence_threshold"
)

// Result is computed per audio chunk or transcript update and never
// persisted.
type Result struct {
	ShouldEnd  bool
	Confidence float64
	Reason     Reason
	Metadata   map[string]any
}

// Detector tracks silence and transcript state for one caller turn.
type Detector struct {
	mu sync.Mutex

	config         Config
	onConfigChange func(Config)

	silenceMs    float64
	wordsSpoken  int
	speechStart  time.Time
	lastActivity time.Time

	now func() time.Time
}

func New(opts ...Option) *Detector {
	d := &Detector{
		config:         DefaultConfig(),
		onConfigChange: func(Config) {},
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ProcessChunk consumes one chunk of normalized samples plus the current
// incremental transcript and decides whether the turn has ended. Signals
// are checked in a fixed priority order; the first match wins.
func (d *Detector) ProcessChunk(samples []float64, transcript string) Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.accountSilenceLocked(samples, now)

	if words := countWords(transcript); words > d.wordsSpoken {
		d.wordsSpoken = words
	}

	switch d.config.Strategy {
	case StrategyOff:
		return Result{Reason: ReasonNone}
	case StrategyLiveKit:
		return d.evaluateLiveKitLocked(transcript)
	default:
		return d.evaluateInvortoLocked(transcript, now)
	}
}

// Reset clears all per-turn counters.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.silenceMs = 0
	d.wordsSpoken = 0
	d.speechStart = time.Time{}
	d.lastActivity = time.Time{}
}

func (d *Detector) accountSilenceLocked(samples []float64, now time.Time) {
	if len(samples) == 0 {
		return
	}

	var meanSquare float64
	for _, s := range samples {
		meanSquare += s * s
	}
	meanSquare /= float64(len(samples))

	chunkMs := float64(len(samples)) / float64(d.config.SampleRate) * 1000

	if meanSquare < d.config.SilenceEnergyFloor {
		d.silenceMs += chunkMs
		return
	}

	d.silenceMs = 0
	d.lastActivity = now
	if d.speechStart.IsZero() {
		d.speechStart = now
	}
}

// evaluateInvortoLocked applies the adaptive strategy: the silence
// threshold stretches with the number of words spoken and contracts for
// fast talkers.
func (d *Detector) evaluateInvortoLocked(transcript string, now time.Time) Result {
	threshold := float64(d.config.SilenceThresholdMs)
	wordBonus := float64(d.wordsSpoken) * 50
	if wordBonus > 1000 {
		wordBonus = 1000
	}
	threshold += wordBonus
	if d.speakingRateLocked(now) > 2 {
		threshold -= 300
	}

	if d.silenceMs >= threshold {
		overrun := d.silenceMs / threshold
		confidence := 0.5 + 0.2*overrun
		if confidence > 0.9 {
			confidence = 0.9
		}
		return Result{
			ShouldEnd:  true,
			Confidence: confidence,
			Reason:     ReasonSilenceTimeout,
			Metadata:   map[string]any{"silence_ms": d.silenceMs, "threshold_ms": threshold},
		}
	}

	trimmed := strings.TrimSpace(transcript)
	if d.wordsSpoken >= d.config.MinWords && endsWithTerminator(trimmed) {
		return Result{ShouldEnd: true, Confidence: 0.85, Reason: ReasonSentenceComplete}
	}

	if looksLikeQuestion(trimmed) {
		return Result{ShouldEnd: true, Confidence: 0.8, Reason: ReasonQuestionDetected}
	}

	if d.wordsSpoken > 0 && !d.lastActivity.IsZero() {
		sinceActivity := float64(now.Sub(d.lastActivity).Microseconds()) / 1000.0
		if sinceActivity > 0.7*threshold {
			return Result{ShouldEnd: true, Confidence: 0.6, Reason: ReasonIncompletePause}
		}
	}

	return Result{Reason: ReasonNone}
}

// evaluateLiveKitLocked applies the conservative fixed-threshold strategy
// with an early-exit confidence estimate over the transcript.
func (d *Detector) evaluateLiveKitLocked(transcript string) Result {
	if d.silenceMs >= float64(d.config.LiveKitSilenceMs) {
		return Result{ShouldEnd: true, Confidence: 0.7, Reason: ReasonSilenceTimeout}
	}

	trimmed := strings.TrimSpace(transcript)
	if len(trimmed) > 10 {
		confidence := 0.5
		lengthBonus := float64(len(trimmed)) / 100
		if lengthBonus > 0.3 {
			lengthBonus = 0.3
		}
		confidence += lengthBonus
		if endsWithTerminator(trimmed) {
			confidence += 0.1
		}
		if first := []rune(trimmed)[0]; first >= 'A' && first <= 'Z' {
			confidence += 0.1
		}

		if confidence > d.config.ConfidenceThreshold {
			return Result{ShouldEnd: true, Confidence: confidence, Reason: ReasonConfidence}
		}
	}

	return Result{Reason: ReasonNone}
}

func (d *Detector) speakingRateLocked(now time.Time) float64 {
	if d.speechStart.IsZero() || d.wordsSpoken == 0 {
		return 0
	}

	elapsed := now.Sub(d.speechStart).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(d.wordsSpoken) / elapsed
}

func countWords(transcript string) int {
	return len(strings.Fields(transcript))
}

func endsWithTerminator(transcript string) bool {
	if transcript == "" {
		return false
	}
	switch transcript[len(transcript)-1] {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}

var questionWords = []string{
	"what", "when", "where", "who", "why", "how",
	"is", "are", "do", "does", "did", "can", "could", "would", "will", "should",
}

func looksLikeQuestion(transcript string) bool {
	if transcript == "" {
		return false
	}
	if strings.HasSuffix(transcript, "?") {
		return true
	}

	first := strings.ToLower(strings.Fields(transcript)[0])
	for _, w := range questionWords {
		if first == w {
			return true
		}
	}
	return false
}
