package orchestration

import (
	"context"

	"github.com/invorto/voice-core/core/audio"
	"github.com/invorto/voice-core/core/audio/energy"
	"github.com/invorto/voice-core/core/audio/jitter"
	"github.com/invorto/voice-core/core/endpointing"
	"github.com/invorto/voice-core/core/events"
	"github.com/invorto/voice-core/core/llms"
	"github.com/invorto/voice-core/core/speechtotext"
	"github.com/invorto/voice-core/core/texttospeech"
	"github.com/invorto/voice-core/core/timeline"
	"github.com/invorto/voice-core/core/tools"
)

type Option func(*Orchestrator)

// SpeechToText is the ASR adapter contract. Close is optional and detected
// by type switch when the call ends.
type SpeechToText interface {
	Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	SendAudio(audio []byte) error
}

func WithSpeechToTextClient(client SpeechToText) Option {
	return func(o *Orchestrator) {
		o.speechToText.set(client)
	}
}

// LLM is the language model adapter contract.
type LLM interface {
	PromptWithStream(ctx context.Context, prompt *string, opts ...llms.PromptOption) llms.Stream
}

func WithStreamingLLM(client LLM) Option {
	return func(o *Orchestrator) {
		o.llm.set(client)
	}
}

// TextToSpeech is the synthesis adapter contract. Close is optional and
// detected by type switch when the call ends.
type TextToSpeech interface {
	OpenStream(ctx context.Context, opts ...texttospeech.TextToSpeechOption) error
	Synthesize(text string) error
	Interrupt() error
}

func WithTextToSpeechClient(client TextToSpeech) Option {
	return func(o *Orchestrator) {
		o.textToSpeech.set(client)
	}
}

func WithToolRegistry(registry *tools.Registry) Option {
	return func(o *Orchestrator) {
		o.tools = registry
	}
}

func WithTimelinePublisher(publisher timeline.Publisher) Option {
	return func(o *Orchestrator) {
		if publisher != nil {
			o.timeline = publisher
		}
	}
}

func WithUsageSink(sink UsageSink) Option {
	return func(o *Orchestrator) {
		o.usageSink = sink
	}
}

// WithEventCallback registers the outbound message consumer. Every message
// the orchestrator produces for the far end goes through this callback.
func WithEventCallback(callback func(events.Event)) Option {
	return func(o *Orchestrator) {
		if callback != nil {
			o.emit = callback
		}
	}
}

func WithCallID(callID string) Option {
	return func(o *Orchestrator) {
		o.callID = callID
	}
}

func WithAgentID(agentID string) Option {
	return func(o *Orchestrator) {
		o.agentID = agentID
	}
}

func WithLocale(locale string) Option {
	return func(o *Orchestrator) {
		o.locale = locale
	}
}

func WithSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) {
		o.systemPrompt = prompt
	}
}

// WithFallbackUtterance overrides the apology spoken when response
// generation or synthesis fails mid-turn.
func WithFallbackUtterance(utterance string) Option {
	return func(o *Orchestrator) {
		o.fallbackUtterance = utterance
	}
}

// WithBargeInThreshold sets how many consecutive speaking energy windows
// must be observed while the agent speaks before playback is interrupted.
func WithBargeInThreshold(windows int) Option {
	return func(o *Orchestrator) {
		if windows > 0 {
			o.bargeThreshold = windows
		}
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) Option {
	return func(o *Orchestrator) {
		o.encodingInfo = encodingInfo
	}
}

func WithEndpointingOptions(opts ...endpointing.Option) Option {
	return func(o *Orchestrator) {
		o.endpointingOptions = append(o.endpointingOptions, opts...)
	}
}

func WithJitterBufferOptions(opts ...jitter.Option) Option {
	return func(o *Orchestrator) {
		o.jitterOptions = append(o.jitterOptions, opts...)
	}
}

func WithEnergyMeterOptions(opts ...energy.Option) Option {
	return func(o *Orchestrator) {
		o.energyOptions = append(o.energyOptions, opts...)
	}
}
