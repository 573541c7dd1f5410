package analysis

import (
	"math"
	"time"
)

// Class is a coarse emotion label.
type Class string

const (
	ClassNeutral   Class = "neutral"
	ClassHappy     Class = "happy"
	ClassSad       Class = "sad"
	ClassAngry     Class = "angry"
	ClassFearful   Class = "fearful"
	ClassDisgusted Class = "disgusted"
	ClassSurprised Class = "surprised"
)

// Window is the short-window feature event emitted per analyzed chunk.
// PitchVariance and SpeechRate are running aggregates over the rolling
// buffer at emission time.
type Window struct {
	EnergyDB      float64
	Speaking      bool
	Pitch         float64
	PitchVariance float64
	SpeechRate    float64
	Timestamp     time.Time
}

// State is the classified emotion aggregated over the rolling buffer.
type State struct {
	Class      Class
	Arousal    float64
	Valence    float64
	Confidence float64
}

// aggregateFeatures summarizes the rolling buffer for classification.
type aggregateFeatures struct {
	avgEnergy     float64
	avgPitch      float64
	pitchVariance float64
	speechRate    float64
}

func aggregate(windows []featureWindow) aggregateFeatures {
	var agg aggregateFeatures
	if len(windows) == 0 {
		return agg
	}

	var energySum float64
	var pitchSum, pitchSquares float64
	voiced := 0
	onsets := 0
	for i, w := range windows {
		energySum += w.energyDb
		if w.pitch > 0 {
			pitchSum += w.pitch
			pitchSquares += w.pitch * w.pitch
			voiced++
		}
		if i > 0 && w.speaking && !windows[i-1].speaking {
			onsets++
		}
	}

	agg.avgEnergy = energySum / float64(len(windows))
	if voiced > 0 {
		agg.avgPitch = pitchSum / float64(voiced)
		agg.pitchVariance = pitchSquares/float64(voiced) - agg.avgPitch*agg.avgPitch
		if agg.pitchVariance < 0 {
			agg.pitchVariance = 0
		}
		agg.pitchVariance = math.Sqrt(agg.pitchVariance)
	}

	// Speech onsets per second approximate the speaking rate.
	span := windows[len(windows)-1].timestamp.Sub(windows[0].timestamp).Seconds()
	if span > 0 {
		agg.speechRate = float64(onsets) / span
	}

	return agg
}

// classify applies the deterministic rule table over the aggregated
// features. Rules are evaluated in order; the first match wins.
func classify(f aggregateFeatures) State {
	var state State

	switch {
	case f.avgEnergy > -30 && f.pitchVariance > 50:
		state.Arousal = 0.7
		state.Confidence = 0.7
		if f.speechRate > 4 {
			state.Class = ClassAngry
			state.Valence = -0.5
		} else {
			state.Class = ClassHappy
			state.Valence = 0.6
		}

	case f.avgEnergy < -40 && f.avgPitch < 150:
		state.Arousal = -0.5
		state.Confidence = 0.6
		if f.speechRate < 2 {
			state.Class = ClassSad
			state.Valence = -0.6
		} else {
			state.Class = ClassNeutral
			state.Valence = 0
		}

	case f.avgPitch > 250 && f.speechRate > 4:
		state.Arousal = 0.8
		state.Confidence = 0.65
		if f.pitchVariance > 70 {
			state.Class = ClassFearful
			state.Valence = -0.7
		} else {
			state.Class = ClassSurprised
			state.Valence = 0.1
		}

	default:
		state.Class = ClassNeutral
		state.Confidence = 0.8
		state.Valence = 0
		if f.avgEnergy > -35 {
			state.Arousal = 0.2
		} else {
			state.Arousal = -0.2
		}
	}

	state.Arousal = clampUnit(state.Arousal)
	state.Valence = clampUnit(state.Valence)
	return state
}

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
