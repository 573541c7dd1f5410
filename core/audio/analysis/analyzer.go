// Package analysis derives pitch, speech-rate and a coarse emotion
// classification from raw audio chunks.
package analysis

import (
	"sync"
	"time"

	"github.com/invorto/voice-core/core/audio"
	"github.com/invorto/voice-core/internal/rolling"
)

const (
	pitchMinHz          = 50
	pitchMaxHz          = 400
	pitchMinCorrelation = 0.3

	emotionBufferCap  = 50
	emotionMinWindows = 10

	// silenceEnergy is the mean absolute amplitude below which a chunk
	// counts as silent for speech-rate and silence-duration tracking.
	silenceEnergy = 0.01
)

// Metrics is the per-chunk result of AnalyzeChunk.
type Metrics struct {
	EnergyDB          float64
	Energy            float64
	VoiceActivity     float64
	ZeroCrossingRate  float64
	Pitch             float64
	Speaking          bool
	SilenceDurationMs float64
}

// featureWindow is one entry in the rolling emotion buffer.
type featureWindow struct {
	energyDb  float64
	speaking  bool
	pitch     float64
	timestamp time.Time
}

// Analyzer accumulates per-chunk features and classifies an emotional
// state once enough windows are buffered. It keeps its own speaking
// detector, independent of the energy meter's flag.
type Analyzer struct {
	mu sync.Mutex

	encodingInfo audio.EncodingInfo
	onWindow     func(Window)
	onState      func(State)

	features *rolling.Ring[featureWindow]

	speaking      bool
	lastSpeech    time.Time
	lastTimestamp time.Time
	lastClass     Class

	now func() time.Time
}

type Option func(*Analyzer)

func WithEncodingInfo(encodingInfo audio.EncodingInfo) Option {
	return func(a *Analyzer) {
		if !encodingInfo.IsZero() {
			a.encodingInfo = encodingInfo
		}
	}
}

// WithEmotionWindowCallback registers the consumer of per-chunk emotion
// window events.
func WithEmotionWindowCallback(callback func(Window)) Option {
	return func(a *Analyzer) {
		if callback != nil {
			a.onWindow = callback
		}
	}
}

// WithEmotionStateCallback registers the consumer of classified emotion
// state events.
func WithEmotionStateCallback(callback func(State)) Option {
	return func(a *Analyzer) {
		if callback != nil {
			a.onState = callback
		}
	}
}

func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		encodingInfo: audio.GetDefaultEncodingInfo(),
		onWindow:     func(Window) {},
		onState:      func(State) {},
		features:     rolling.NewRing[featureWindow](emotionBufferCap),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeChunk extracts per-chunk metrics from PCM16 audio, feeds the
// rolling emotion buffer, and emits window/state events.
func (a *Analyzer) AnalyzeChunk(pcm16 []byte) Metrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if now.Before(a.lastTimestamp) {
		now = a.lastTimestamp
	}
	a.lastTimestamp = now

	samples := audio.DecodePCM16(pcm16)

	energy := audio.MeanAbs(samples)
	energyDb := audio.DBFS(audio.RMS(samples))
	zcr := audio.ZeroCrossingRate(samples)

	activity := energy * (1 - abs(zcr-0.1)) * 10
	if activity < 0 {
		activity = 0
	}
	if activity > 1 {
		activity = 1
	}

	speaking := energy >= silenceEnergy
	var silenceMs float64
	if speaking {
		a.lastSpeech = now
		a.speaking = true
	} else if !a.lastSpeech.IsZero() {
		silenceMs = float64(now.Sub(a.lastSpeech).Microseconds()) / 1000.0
		a.speaking = false
	}

	pitch := a.estimatePitch(samples)

	a.features.Push(featureWindow{
		energyDb:  energyDb,
		speaking:  speaking,
		pitch:     pitch,
		timestamp: now,
	})

	agg := aggregate(a.features.Values())
	a.onWindow(Window{
		EnergyDB:      energyDb,
		Speaking:      speaking,
		Pitch:         pitch,
		PitchVariance: agg.pitchVariance,
		SpeechRate:    agg.speechRate,
		Timestamp:     now,
	})

	// State events fire on classification changes, not per chunk.
	if a.features.Len() >= emotionMinWindows {
		if state := classify(agg); state.Class != a.lastClass {
			a.lastClass = state.Class
			a.onState(state)
		}
	}

	return Metrics{
		EnergyDB:          energyDb,
		Energy:            energy,
		VoiceActivity:     activity,
		ZeroCrossingRate:  zcr,
		Pitch:             pitch,
		Speaking:          a.speaking,
		SilenceDurationMs: silenceMs,
	}
}

func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.features.Reset()
	a.speaking = false
	a.lastSpeech = time.Time{}
	a.lastClass = ""
}

// estimatePitch runs an autocorrelation search over lag periods for
// 50-400 Hz and accepts the best lag only when its normalized correlation
// reaches the confidence floor. Returns 0 when no pitch is found.
func (a *Analyzer) estimatePitch(samples []float64) float64 {
	sampleRate := a.encodingInfo.SampleRate
	minLag := sampleRate / pitchMaxHz
	maxLag := sampleRate / pitchMinHz
	if len(samples) <= maxLag || minLag < 1 {
		return 0
	}

	var norm float64
	for _, s := range samples {
		norm += s * s
	}
	if norm == 0 {
		return 0
	}

	bestLag, bestCorr := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		for i := 0; i+lag < len(samples); i++ {
			corr += samples[i] * samples[i+lag]
		}
		corr /= norm
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}

	if bestCorr < pitchMinCorrelation || bestLag == 0 {
		return 0
	}
	return float64(sampleRate) / float64(bestLag)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
