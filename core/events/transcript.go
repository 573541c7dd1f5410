package events

const (
	// KindTranscriptPartial identifies an interim user transcript update.
	KindTranscriptPartial Kind = "stt.partial"
	// KindTranscriptFinal identifies a finalized user transcript segment.
	KindTranscriptFinal Kind = "stt.final"
	// KindUtteranceEnded identifies a recognizer-native end-of-utterance
	// signal.
	KindUtteranceEnded Kind = "stt.utterance_end"
)

// TranscriptPartial carries a mutable interim transcript snapshot.
type TranscriptPartial struct {
	Base
	Text       string
	Confidence float64
}

// NewTranscriptPartial creates an interim transcript event.
func NewTranscriptPartial(text string, confidence float64) TranscriptPartial {
	return TranscriptPartial{Base: NewBase(KindTranscriptPartial), Text: text, Confidence: confidence}
}

// TranscriptFinal carries a finalized transcript segment.
type TranscriptFinal struct {
	Base
	Text       string
	Confidence float64
	// DurationSeconds is the audio duration the recognizer attributed to
	// this segment.
	DurationSeconds float64
}

// NewTranscriptFinal creates a final transcript event.
func NewTranscriptFinal(text string, confidence, durationSeconds float64) TranscriptFinal {
	return TranscriptFinal{
		Base:            NewBase(KindTranscriptFinal),
		Text:            text,
		Confidence:      confidence,
		DurationSeconds: durationSeconds,
	}
}

// UtteranceEnded marks a recognizer-native utterance boundary.
type UtteranceEnded struct{ Base }

// NewUtteranceEnded creates an utterance ended event.
func NewUtteranceEnded() UtteranceEnded {
	return UtteranceEnded{Base: NewBase(KindUtteranceEnded)}
}
