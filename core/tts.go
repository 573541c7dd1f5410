package orchestration

import (
	"context"
	"fmt"

	"github.com/invorto/voice-core/core/audio"
	"github.com/invorto/voice-core/core/texttospeech"
)

type textToSpeech struct {
	client TextToSpeech
}

func (t *textToSpeech) set(client TextToSpeech) {
	if t != nil {
		t.client = client
	}
}

func (t *textToSpeech) isConfigured() bool {
	return t != nil && t.client != nil
}

type textToSpeechCallbacks struct {
	onAudio func(audio []byte)
	onEnded func()
	onError func(err error)
}

func (t *textToSpeech) start(ctx context.Context, callbacks textToSpeechCallbacks, encodingInfo audio.EncodingInfo) error {
	if !t.isConfigured() {
		return nil
	}

	ttsOptions := []texttospeech.TextToSpeechOption{
		texttospeech.WithSpeechAudioCallback(callbacks.onAudio),
		texttospeech.WithSpeechEndedCallback(callbacks.onEnded),
		texttospeech.WithErrorCallback(callbacks.onError),
		texttospeech.WithEncodingInfo(encodingInfo),
	}

	if err := t.client.OpenStream(ctx, ttsOptions...); err != nil {
		return fmt.Errorf("failed to open text-to-speech stream: %w", err)
	}
	return nil
}

func (t *textToSpeech) Synthesize(text string) error {
	if !t.isConfigured() {
		return nil
	}

	return t.client.Synthesize(text)
}

func (t *textToSpeech) Interrupt() error {
	if !t.isConfigured() {
		return nil
	}

	return t.client.Interrupt()
}

func (t *textToSpeech) Close(ctx context.Context) error {
	if !t.isConfigured() {
		return nil
	}

	switch c := t.client.(type) {
	case interface{ Close(context.Context) error }:
		if err := c.Close(ctx); err != nil {
			return fmt.Errorf("failed to close text-to-speech client: %w", err)
		}
	case interface{ Close(context.Context) }:
		c.Close(ctx)
	case interface{ Close() error }:
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close text-to-speech client: %w", err)
		}
	case interface{ Close() }:
		c.Close()
	}

	return nil
}
