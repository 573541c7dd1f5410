// Package texttospeech defines the contract the conversation core
// requires of streaming speech-synthesis providers.
package texttospeech

import "github.com/invorto/voice-core/core/audio"

type TextToSpeechOptions struct {
	// SpeechAudioCallback is called for each synthesized audio chunk.
	SpeechAudioCallback func(audio []byte)
	// SpeechEndedCallback is called once all requested speech has been
	// synthesized.
	SpeechEndedCallback func()
	// ErrorCallback is called when synthesis fails or is cancelled.
	ErrorCallback func(error)

	EncodingInfo audio.EncodingInfo
}

type TextToSpeechOption func(*TextToSpeechOptions)

func WithSpeechAudioCallback(callback func([]byte)) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		o.SpeechAudioCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithErrorCallback(callback func(error)) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		o.ErrorCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}
