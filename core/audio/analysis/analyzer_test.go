package analysis

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func tonePCM16(amplitude, freq float64, durationMs, sampleRate int) []byte {
	samples := sampleRate * durationMs / 1000
	out := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v*32767)))
	}
	return out
}

func silencePCM16(durationMs, sampleRate int) []byte {
	return make([]byte, sampleRate*durationMs/1000*2)
}

func TestAnalyzeChunkDetectsPitchOfPureTone(t *testing.T) {
	a := New()

	metrics := a.AnalyzeChunk(tonePCM16(0.5, 200, 100, 16000))

	if metrics.Pitch < 190 || metrics.Pitch > 210 {
		t.Fatalf("expected pitch near 200 Hz, got %f", metrics.Pitch)
	}
}

func TestAnalyzeChunkReportsNoPitchForSilence(t *testing.T) {
	a := New()

	metrics := a.AnalyzeChunk(silencePCM16(100, 16000))

	if metrics.Pitch != 0 {
		t.Fatalf("expected no pitch for silence, got %f", metrics.Pitch)
	}
	if metrics.Speaking {
		t.Fatal("expected silence chunk to not be speaking")
	}
}

func TestAnalyzeChunkIgnoresPitchAboveSearchRange(t *testing.T) {
	a := New()

	// 3kHz is outside the 50-400 Hz search band; the autocorrelation may
	// still lock onto a harmonic lag, but never report out-of-band pitch.
	metrics := a.AnalyzeChunk(tonePCM16(0.5, 3000, 100, 16000))

	if metrics.Pitch > 400 {
		t.Fatalf("expected pitch within the search band, got %f", metrics.Pitch)
	}
}

func TestSilenceDurationUsesWallClock(t *testing.T) {
	a := New()
	current := time.Unix(0, 0)
	a.now = func() time.Time { return current }

	a.AnalyzeChunk(tonePCM16(0.5, 200, 20, 16000))

	current = current.Add(700 * time.Millisecond)
	metrics := a.AnalyzeChunk(silencePCM16(20, 16000))

	if metrics.SilenceDurationMs != 700 {
		t.Fatalf("expected 700ms of silence, got %f", metrics.SilenceDurationMs)
	}
}

func TestVoiceActivityIsClamped(t *testing.T) {
	a := New()

	loud := a.AnalyzeChunk(tonePCM16(0.9, 200, 50, 16000))
	if loud.VoiceActivity < 0 || loud.VoiceActivity > 1 {
		t.Fatalf("expected voice activity in [0,1], got %f", loud.VoiceActivity)
	}

	quiet := a.AnalyzeChunk(silencePCM16(50, 16000))
	if quiet.VoiceActivity != 0 {
		t.Fatalf("expected zero voice activity for silence, got %f", quiet.VoiceActivity)
	}
}

func TestEmotionStateEmittedAfterMinimumWindows(t *testing.T) {
	states := 0
	a := New(WithEmotionStateCallback(func(State) { states++ }))

	for i := 0; i < 9; i++ {
		a.AnalyzeChunk(tonePCM16(0.3, 200, 20, 16000))
	}
	if states != 0 {
		t.Fatalf("expected no state before 10 windows, got %d emissions", states)
	}

	a.AnalyzeChunk(tonePCM16(0.3, 200, 20, 16000))
	if states != 1 {
		t.Fatalf("expected state after 10th window, got %d emissions", states)
	}
}

func TestSteadySignalEmitsStateOnlyOnChange(t *testing.T) {
	states := 0
	a := New(WithEmotionStateCallback(func(State) { states++ }))

	for i := 0; i < 30; i++ {
		a.AnalyzeChunk(tonePCM16(0.3, 200, 20, 16000))
	}

	if states != 1 {
		t.Fatalf("expected a single state emission for a steady signal, got %d", states)
	}
}

func TestWindowCarriesRunningAggregates(t *testing.T) {
	var last Window
	a := New(WithEmotionWindowCallback(func(w Window) { last = w }))
	current := time.Unix(0, 0)
	a.now = func() time.Time { return current }

	// Alternate silence and speech so at least one onset lands in the
	// rolling buffer.
	for i := 0; i < 8; i++ {
		if i%2 == 0 {
			a.AnalyzeChunk(silencePCM16(20, 16000))
		} else {
			a.AnalyzeChunk(tonePCM16(0.5, 200, 20, 16000))
		}
		current = current.Add(250 * time.Millisecond)
	}

	if last.SpeechRate <= 0 {
		t.Fatalf("expected positive speech rate on the window event, got %f", last.SpeechRate)
	}
	if last.PitchVariance < 0 {
		t.Fatalf("expected non-negative pitch variance, got %f", last.PitchVariance)
	}
}

func TestEmotionWindowEmittedPerChunk(t *testing.T) {
	var windows []Window
	a := New(WithEmotionWindowCallback(func(w Window) { windows = append(windows, w) }))

	a.AnalyzeChunk(tonePCM16(0.3, 200, 20, 16000))
	a.AnalyzeChunk(silencePCM16(20, 16000))

	if len(windows) != 2 {
		t.Fatalf("expected one window per chunk, got %d", len(windows))
	}
	if !windows[0].Speaking || windows[1].Speaking {
		t.Fatalf("expected speaking then silent windows, got %+v", windows)
	}
	if windows[1].Timestamp.Before(windows[0].Timestamp) {
		t.Fatal("expected monotonically non-decreasing timestamps")
	}
}

func TestClassifyRuleTable(t *testing.T) {
	cases := []struct {
		name     string
		features aggregateFeatures
		class    Class
		arousal  float64
		valence  float64
	}{
		{
			name:     "loud varied fast is angry",
			features: aggregateFeatures{avgEnergy: -20, pitchVariance: 60, speechRate: 5},
			class:    ClassAngry, arousal: 0.7, valence: -0.5,
		},
		{
			name:     "loud varied slow is happy",
			features: aggregateFeatures{avgEnergy: -20, pitchVariance: 60, speechRate: 2},
			class:    ClassHappy, arousal: 0.7, valence: 0.6,
		},
		{
			name:     "quiet low slow is sad",
			features: aggregateFeatures{avgEnergy: -50, avgPitch: 120, speechRate: 1},
			class:    ClassSad, arousal: -0.5, valence: -0.6,
		},
		{
			name:     "quiet low fast is neutral",
			features: aggregateFeatures{avgEnergy: -50, avgPitch: 120, speechRate: 3},
			class:    ClassNeutral, arousal: -0.5, valence: 0,
		},
		{
			name:     "high varied fast is fearful",
			features: aggregateFeatures{avgEnergy: -35, avgPitch: 300, pitchVariance: 80, speechRate: 5},
			class:    ClassFearful, arousal: 0.8, valence: -0.7,
		},
		{
			name:     "high steady fast is surprised",
			features: aggregateFeatures{avgEnergy: -35, avgPitch: 300, pitchVariance: 30, speechRate: 5},
			class:    ClassSurprised, arousal: 0.8, valence: 0.1,
		},
		{
			name:     "fallback loud is aroused neutral",
			features: aggregateFeatures{avgEnergy: -32, avgPitch: 200, pitchVariance: 10, speechRate: 1},
			class:    ClassNeutral, arousal: 0.2, valence: 0,
		},
		{
			name:     "fallback quiet is calm neutral",
			features: aggregateFeatures{avgEnergy: -38, avgPitch: 200, pitchVariance: 10, speechRate: 1},
			class:    ClassNeutral, arousal: -0.2, valence: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := classify(tc.features)
			if state.Class != tc.class {
				t.Fatalf("expected class %s, got %s", tc.class, state.Class)
			}
			if state.Arousal != tc.arousal {
				t.Fatalf("expected arousal %f, got %f", tc.arousal, state.Arousal)
			}
			if state.Valence != tc.valence {
				t.Fatalf("expected valence %f, got %f", tc.valence, state.Valence)
			}
		})
	}
}

func TestAggregateCountsSpeechOnsets(t *testing.T) {
	base := time.Unix(0, 0)
	windows := []featureWindow{
		{speaking: false, timestamp: base},
		{speaking: true, timestamp: base.Add(250 * time.Millisecond)},
		{speaking: false, timestamp: base.Add(500 * time.Millisecond)},
		{speaking: true, timestamp: base.Add(750 * time.Millisecond)},
		{speaking: true, timestamp: base.Add(time.Second)},
	}

	agg := aggregate(windows)
	if agg.speechRate != 2 {
		t.Fatalf("expected 2 onsets over 1s, got rate %f", agg.speechRate)
	}
}
