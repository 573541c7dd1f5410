// Package speechtotext defines the contract the conversation core
// requires of streaming speech-recognition providers.
package speechtotext

import "github.com/invorto/voice-core/core/audio"

type TranscriptionOptions struct {
	// PartialTranscriptCallback receives interim transcript snapshots.
	PartialTranscriptCallback func(transcript string, confidence float64)
	// FinalTranscriptCallback receives finalized utterance transcripts
	// with the audio duration the recognizer attributed to them.
	FinalTranscriptCallback func(transcript string, confidence float64, durationSeconds float64)
	// UtteranceEndCallback fires on the recognizer's native end-of-utterance
	// signal, independent of transcript delivery.
	UtteranceEndCallback func()
	SpeechStartedCallback func()

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func WithPartialTranscriptCallback(callback func(transcript string, confidence float64)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.PartialTranscriptCallback = callback
	}
}

func WithFinalTranscriptCallback(callback func(transcript string, confidence float64, durationSeconds float64)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.FinalTranscriptCallback = callback
	}
}

func WithUtteranceEndCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.UtteranceEndCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}
