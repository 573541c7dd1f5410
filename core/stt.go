package orchestration

import (
	"context"
	"fmt"

	"github.com/invorto/voice-core/core/audio"
	"github.com/invorto/voice-core/core/speechtotext"
)

type speechToText struct {
	// client stores the configured speech-to-text implementation.
	client SpeechToText
}

func (s *speechToText) set(client SpeechToText) {
	if s != nil {
		s.client = client
	}
}

func (s *speechToText) isConfigured() bool {
	return s != nil && s.client != nil
}

type speechToTextCallbacks struct {
	onPartialTranscript func(transcript string, confidence float64)
	onFinalTranscript   func(transcript string, confidence float64, durationSeconds float64)
	onUtteranceEnd      func()
	onSpeechStarted     func()
}

func (s *speechToText) start(ctx context.Context, callbacks speechToTextCallbacks, encodingInfo audio.EncodingInfo) error {
	if !s.isConfigured() {
		return nil
	}

	sttOptions := []speechtotext.TranscriptionOption{
		speechtotext.WithPartialTranscriptCallback(callbacks.onPartialTranscript),
		speechtotext.WithFinalTranscriptCallback(callbacks.onFinalTranscript),
		speechtotext.WithUtteranceEndCallback(callbacks.onUtteranceEnd),
		speechtotext.WithSpeechStartedCallback(callbacks.onSpeechStarted),
		speechtotext.WithEncodingInfo(encodingInfo),
	}

	if err := s.client.Transcribe(ctx, sttOptions...); err != nil {
		return fmt.Errorf("failed to start transcribing: %w", err)
	}
	return nil
}

func (s *speechToText) SendAudio(audio []byte) error {
	if !s.isConfigured() {
		return nil
	}

	return s.client.SendAudio(audio)
}

func (s *speechToText) Close(ctx context.Context) error {
	if !s.isConfigured() {
		return nil
	}

	switch c := s.client.(type) {
	case interface{ Close(context.Context) error }:
		if err := c.Close(ctx); err != nil {
			return fmt.Errorf("failed to close speech-to-text client: %w", err)
		}
	case interface{ Close(context.Context) }:
		c.Close(ctx)
	case interface{ Close() error }:
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close speech-to-text client: %w", err)
		}
	case interface{ Close() }:
		c.Close()
	}

	return nil
}
