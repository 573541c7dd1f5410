package events

const (
	// KindSpeechChunk identifies a synthesized speech audio chunk.
	KindSpeechChunk Kind = "tts.chunk"
	// KindSpeechCompleted identifies the end of speech synthesis for the
	// current response.
	KindSpeechCompleted Kind = "tts.complete"
)

// SpeechChunk carries one synthesized audio chunk in playout order.
type SpeechChunk struct {
	Base
	Seq   uint32
	PCM16 []byte
}

// NewSpeechChunk creates a speech chunk event.
func NewSpeechChunk(seq uint32, pcm16 []byte) SpeechChunk {
	return SpeechChunk{Base: NewBase(KindSpeechChunk), Seq: seq, PCM16: pcm16}
}

// SpeechCompleted marks the end of synthesis for the current response.
type SpeechCompleted struct{ Base }

// NewSpeechCompleted creates a speech completed event.
func NewSpeechCompleted() SpeechCompleted {
	return SpeechCompleted{Base: NewBase(KindSpeechCompleted)}
}
