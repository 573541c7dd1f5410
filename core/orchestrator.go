package orchestration

import (
	"context"
	"fmt"
	"sync"

	"github.com/looplab/fsm"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/invorto/voice-core/core/audio"
	"github.com/invorto/voice-core/core/audio/analysis"
	"github.com/invorto/voice-core/core/audio/energy"
	"github.com/invorto/voice-core/core/audio/jitter"
	"github.com/invorto/voice-core/core/endpointing"
	"github.com/invorto/voice-core/core/events"
	"github.com/invorto/voice-core/core/timeline"
	"github.com/invorto/voice-core/core/tools"
)

const defaultBargeInThreshold = 2

const defaultFallbackUtterance = "I'm sorry, I'm having trouble responding right now. Could you say that again?"

// Orchestrator owns one call: the audio pipeline, the conversation state
// machine, the turn history, and the adapters that do the actual listening,
// thinking, and speaking.
//
// All state mutation funnels through the call's priority message queue,
// drained by a single runner at a time. Handlers therefore never run
// concurrently with each other; o.mu only guards reads from outside the
// queue (accessors) against handler writes.
type Orchestrator struct {
	mu sync.Mutex

	callID  string
	agentID string
	locale  string

	state *fsm.FSM

	queue    *messageQueue
	drainMu  sync.Mutex
	draining bool

	encodingInfo audio.EncodingInfo

	jitterOptions      []jitter.Option
	energyOptions      []energy.Option
	endpointingOptions []endpointing.Option

	jitterBuffer *jitter.Buffer
	jitterWarm   bool
	energyMeter  *energy.Meter
	analyzer     *analysis.Analyzer
	endpointing  *endpointing.Detector

	speechToText speechToText
	llm          llm
	textToSpeech textToSpeech
	tools        *tools.Registry
	timeline     timeline.Publisher

	turns     turns
	usage     *usageRecorder
	usageSink UsageSink

	systemPrompt      string
	fallbackUtterance string

	bargeThreshold  int
	speakingWindows int

	speechSeq      uint32
	pendingPartial string
	fellBack       bool

	emit func(events.Event)

	baseContext context.Context
	started     bool
	ended       bool
}

func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		encodingInfo: audio.EncodingInfo{
			SampleRate: 16000,
			Channels:   1,
			Format:     audio.EncodingLinear16,
		},
		queue:             newMessageQueue(),
		timeline:          timeline.Noop{},
		usage:             newUsageRecorder(),
		turns:             newTurns(),
		fallbackUtterance: defaultFallbackUtterance,
		bargeThreshold:    defaultBargeInThreshold,
		emit:              func(events.Event) {},
		baseContext:       context.Background(),
	}

	o.state = newStateMachine(func(from, to string) {
		o.emit(events.NewStateChanged(from, to))
		o.timeline.Publish(o.baseContext, o.callID, string(events.KindStateChanged),
			map[string]string{"from": from, "to": to})
	})

	for _, opt := range opts {
		opt(o)
	}

	o.jitterBuffer = jitter.New(append(
		[]jitter.Option{jitter.WithEncodingInfo(o.encodingInfo)},
		o.jitterOptions...,
	)...)
	o.energyMeter = energy.New(append(
		[]energy.Option{
			energy.WithEncodingInfo(o.encodingInfo),
			energy.WithWindowCallback(o.handleEnergyWindow),
		},
		o.energyOptions...,
	)...)
	o.analyzer = analysis.New(
		analysis.WithEncodingInfo(o.encodingInfo),
		analysis.WithEmotionStateCallback(func(state analysis.State) {
			o.emit(events.NewEmotionState(string(state.Class), state.Arousal, state.Valence, state.Confidence))
		}),
	)
	o.endpointing = endpointing.New(o.endpointingOptions...)

	return o
}

// Start brings the configured adapters up and moves the call from Idle to
// Listening. Any adapter failure is fatal to call start: an error outbound
// message is emitted and the call stays Idle.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.ended {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator already ended")
	}
	if o.started {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator already started")
	}
	o.started = true
	o.baseContext = ctx
	o.mu.Unlock()

	if o.tools != nil {
		if err := o.tools.LoadToolDefinitions(ctx); err != nil {
			return o.failStart(ctx, "tools", err)
		}
	}

	if err := o.speechToText.start(ctx, speechToTextCallbacks{
		onPartialTranscript: o.handlePartialTranscript,
		onFinalTranscript:   o.handleFinalTranscript,
		onUtteranceEnd:      o.handleUtteranceEnd,
		onSpeechStarted:     func() {},
	}, o.encodingInfo); err != nil {
		return o.failStart(ctx, "speech-to-text", err)
	}

	if err := o.textToSpeech.start(ctx, textToSpeechCallbacks{
		onAudio: o.handleSynthesizedAudio,
		onEnded: o.handleSynthesisEnded,
		onError: o.handleSynthesisError,
	}, o.encodingInfo); err != nil {
		return o.failStart(ctx, "text-to-speech", err)
	}

	o.energyMeter.Start(ctx)

	if err := o.state.Event(ctx, transitionStart); err != nil {
		return o.failStart(ctx, "state machine", err)
	}
	o.timeline.Publish(ctx, o.callID, "call.started",
		map[string]string{"agent_id": o.agentID, "locale": o.locale})
	return nil
}

func (o *Orchestrator) failStart(ctx context.Context, stage string, err error) error {
	err = fmt.Errorf("failed to initialize %s: %w", stage, err)
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	o.emit(events.NewCallError(stage, err.Error()))
	o.timeline.Publish(ctx, o.callID, string(events.KindCallError),
		map[string]string{"stage": stage, "error": err.Error()})

	o.mu.Lock()
	o.started = false
	o.mu.Unlock()
	return err
}

// ProcessAudioPacket feeds one inbound audio packet through the jitter
// buffer and fans the recovered frame out to the energy meter, the audio
// analyzer, the ASR adapter, and endpointing.
func (o *Orchestrator) ProcessAudioPacket(sequence uint32, timestampMs uint64, payload []byte, marker bool) {
	o.enqueue(classAudio, kindPacketIn, func(ctx context.Context) {
		o.jitterBuffer.Push(sequence, timestampMs, payload, marker)

		// Playout waits for the buffer to first fill to its target depth.
		if !o.jitterWarm {
			if !o.jitterBuffer.HasEnoughPackets() {
				return
			}
			o.jitterWarm = true
		}

		frame := o.jitterBuffer.Pop()
		if frame == nil {
			return
		}

		o.energyMeter.PushPCM16(frame)
		o.analyzer.AnalyzeChunk(frame)

		state := o.state.Current()

		// ASR keeps running while the agent speaks so barge-in speech is
		// not lost.
		if state == StateListening || state == StateSpeaking {
			if err := o.speechToText.SendAudio(frame); err != nil {
				logger.Error("failed to forward audio to speech-to-text", "error", err)
			} else if o.speechToText.isConfigured() {
				o.usage.addASRAudio(ctx, o.frameSeconds(frame))
			}
		}

		if state == StateListening {
			samples := audio.DecodePCM16(frame)
			result := o.endpointing.ProcessChunk(samples, o.transcriptForEndpointing())
			if result.ShouldEnd {
				o.endpoint(ctx, string(result.Reason))
			}
		}
	})
}

func (o *Orchestrator) frameSeconds(frame []byte) float64 {
	bytesPerSecond := o.encodingInfo.BytesPerFrame(1000)
	if bytesPerSecond == 0 {
		return 0
	}
	return float64(len(frame)) / float64(bytesPerSecond)
}

// Pause suspends the call back to Idle; queued agent speech is dropped.
func (o *Orchestrator) Pause() {
	o.enqueue(classControl, kindControl, func(ctx context.Context) {
		if o.state.Current() == StateSpeaking {
			if err := o.textToSpeech.Interrupt(); err != nil {
				logger.Error("failed to interrupt synthesis on pause", "error", err)
			}
			o.queue.discard(kindSpeechOut)
		}
		if err := o.state.Event(ctx, transitionPause); err != nil {
			logger.Warn("pause ignored", "state", o.state.Current())
		}
	})
}

// Resume returns a paused call to Listening.
func (o *Orchestrator) Resume() {
	o.enqueue(classControl, kindControl, func(ctx context.Context) {
		if err := o.state.Event(ctx, transitionResume); err != nil {
			logger.Warn("resume ignored", "state", o.state.Current())
		}
	})
}

// End terminates the call: the open turn is flushed, usage is handed to the
// billing sink, adapters are closed, and the state machine settles back at
// Idle through Ending.
func (o *Orchestrator) End(reason string) {
	o.enqueue(classControl, kindControl, func(ctx context.Context) {
		o.end(ctx, reason)
	})
}

func (o *Orchestrator) end(ctx context.Context, reason string) {
	o.mu.Lock()
	if o.ended {
		o.mu.Unlock()
		return
	}
	o.ended = true
	o.mu.Unlock()

	if o.state.Current() == StateSpeaking {
		if err := o.textToSpeech.Interrupt(); err != nil {
			logger.Error("failed to interrupt synthesis on end", "error", err)
		}
	}
	o.queue.discard(kindSpeechOut)

	if err := o.state.Event(ctx, transitionEnd); err != nil {
		logger.Error("failed to enter ending state", "error", err)
	}

	o.mu.Lock()
	o.turns.close()
	o.mu.Unlock()

	usage := o.usage.snapshot()
	if o.usageSink != nil {
		o.usageSink.FlushUsage(ctx, o.callID, usage)
	}
	o.timeline.Publish(ctx, o.callID, "usage.flushed", usage)

	o.energyMeter.Close()
	if err := o.speechToText.Close(ctx); err != nil {
		logger.Error("failed to close speech-to-text client", "error", err)
	}
	if err := o.textToSpeech.Close(ctx); err != nil {
		logger.Error("failed to close text-to-speech client", "error", err)
	}

	o.emit(events.NewCallEnded(reason))
	o.timeline.Publish(ctx, o.callID, string(events.KindCallEnded), map[string]string{"reason": reason})

	if err := o.state.Event(ctx, transitionReset); err != nil {
		logger.Error("failed to reset state machine", "error", err)
	}
}

// State returns the current conversation state.
func (o *Orchestrator) State() string {
	return o.state.Current()
}

// Usage returns a snapshot of the call's running usage totals.
func (o *Orchestrator) Usage() UsageCounters {
	return o.usage.snapshot()
}

// Conversation returns the turn history, including the open turn if any.
func (o *Orchestrator) Conversation() []Turn {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.turns.snapshot()
}

// JitterStats returns the jitter buffer's counters and gauges.
func (o *Orchestrator) JitterStats() jitter.Stats {
	return o.jitterBuffer.Stats()
}

func (o *Orchestrator) enqueue(class msgClass, kind msgKind, run func(context.Context)) {
	o.queue.push(class, kind, run)
	o.dispatch()
}

// dispatch drains the queue with a single runner. A message enqueued while
// another goroutine is draining is picked up by that drainer; handlers never
// run concurrently.
func (o *Orchestrator) dispatch() {
	o.drainMu.Lock()
	if o.draining {
		o.drainMu.Unlock()
		return
	}
	o.draining = true
	o.drainMu.Unlock()

	defer func() {
		o.drainMu.Lock()
		o.draining = false
		o.drainMu.Unlock()

		if o.queue.len() > 0 {
			o.dispatch()
		}
	}()

	for {
		msg, ok := o.queue.pop()
		if !ok {
			return
		}
		o.runMessage(msg)
	}
}

// runMessage isolates one message so a failure cannot stall the queue.
func (o *Orchestrator) runMessage(msg queuedMessage) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("queue message processing failed", "panic", r)
		}
	}()

	msg.run(o.baseContext)
}
