package events

const (
	// KindEmotionWindow identifies a per-interval audio telemetry window.
	KindEmotionWindow Kind = "emotion.window"
	// KindEmotionState identifies a classified emotion state update.
	KindEmotionState Kind = "emotion.state"
)

// EmotionWindow is the per-interval telemetry forwarded to the far end.
type EmotionWindow struct {
	Base
	EnergyDB float64
	Speaking bool
}

// NewEmotionWindow creates an emotion window event.
func NewEmotionWindow(energyDb float64, speaking bool) EmotionWindow {
	return EmotionWindow{Base: NewBase(KindEmotionWindow), EnergyDB: energyDb, Speaking: speaking}
}

// EmotionState is the classified emotional state of the caller.
type EmotionState struct {
	Base
	Class      string
	Arousal    float64
	Valence    float64
	Confidence float64
}

// NewEmotionState creates an emotion state event.
func NewEmotionState(class string, arousal, valence, confidence float64) EmotionState {
	return EmotionState{
		Base:       NewBase(KindEmotionState),
		Class:      class,
		Arousal:    arousal,
		Valence:    valence,
		Confidence: confidence,
	}
}
