package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/invorto/voice-core/core/audio/energy"
	"github.com/invorto/voice-core/core/endpointing"
	"github.com/invorto/voice-core/core/events"
	"github.com/invorto/voice-core/core/llms"
	"github.com/invorto/voice-core/core/speechtotext"
	"github.com/invorto/voice-core/core/texttospeech"
	"github.com/invorto/voice-core/core/tools"
)

type fakeSTT struct {
	transcribeErr error
	started       bool
	closed        bool
	callbacks     speechtotext.TranscriptionOptions
	sent          [][]byte
}

func (f *fakeSTT) Transcribe(_ context.Context, opts ...speechtotext.TranscriptionOption) error {
	if f.transcribeErr != nil {
		return f.transcribeErr
	}
	for _, opt := range opts {
		opt(&f.callbacks)
	}
	f.started = true
	return nil
}

func (f *fakeSTT) SendAudio(audio []byte) error {
	f.sent = append(f.sent, audio)
	return nil
}

func (f *fakeSTT) Close(context.Context) error {
	f.closed = true
	return nil
}

type fakeTTS struct {
	openErr       error
	synthesizeErr error
	callbacks     texttospeech.TextToSpeechOptions
	synthesized   []string
	interrupted   int
	closed        bool
}

func (f *fakeTTS) OpenStream(_ context.Context, opts ...texttospeech.TextToSpeechOption) error {
	if f.openErr != nil {
		return f.openErr
	}
	for _, opt := range opts {
		opt(&f.callbacks)
	}
	return nil
}

func (f *fakeTTS) Synthesize(text string) error {
	if f.synthesizeErr != nil {
		return f.synthesizeErr
	}
	f.synthesized = append(f.synthesized, text)
	return nil
}

func (f *fakeTTS) Interrupt() error {
	f.interrupted++
	return nil
}

func (f *fakeTTS) Close(context.Context) error {
	f.closed = true
	return nil
}

type contentChunk struct{ text string }

func (c contentChunk) FinishReason() *string { return nil }
func (c contentChunk) Content() string       { return c.text }

type toolCallChunk struct{ call llms.ToolCall }

func (c toolCallChunk) FinishReason() *string  { return nil }
func (c toolCallChunk) ToolCall() llms.ToolCall { return c.call }

type usageChunk struct{ usage llms.Usage }

func (c usageChunk) FinishReason() *string { return nil }
func (c usageChunk) Usage() llms.Usage     { return c.usage }

type fakeStream struct {
	chunks []llms.StreamChunk
	err    error
}

func (s fakeStream) Chunks(context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		for _, chunk := range s.chunks {
			if !yield(chunk, nil) {
				return
			}
		}
		if s.err != nil {
			yield(nil, s.err)
		}
	}
}

type fakeLLM struct {
	streams []fakeStream
	prompts []llms.PromptOptions
}

func (f *fakeLLM) PromptWithStream(_ context.Context, prompt *string, opts ...llms.PromptOption) llms.Stream {
	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if prompt != nil {
		options.Messages = append(options.Messages, llms.Message{
			Role:    llms.MessageRoleUser,
			Content: *prompt,
		})
	}
	f.prompts = append(f.prompts, options)

	if len(f.streams) == 0 {
		return fakeStream{}
	}
	stream := f.streams[0]
	f.streams = f.streams[1:]
	return stream
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) record(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) count(kind events.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, event := range r.events {
		if event.Kind() == kind {
			count++
		}
	}
	return count
}

func (r *eventRecorder) last(kind events.Kind) events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind() == kind {
			return r.events[i]
		}
	}
	return nil
}

func newTestOrchestrator(opts ...Option) (*Orchestrator, *fakeSTT, *fakeTTS, *fakeLLM, *eventRecorder) {
	stt := &fakeSTT{}
	tts := &fakeTTS{}
	llm := &fakeLLM{}
	recorder := &eventRecorder{}

	o := NewOrchestrator(append([]Option{
		WithCallID("call-1"),
		WithAgentID("agent-1"),
		WithSpeechToTextClient(stt),
		WithTextToSpeechClient(tts),
		WithStreamingLLM(llm),
		WithEventCallback(recorder.record),
	}, opts...)...)
	return o, stt, tts, llm, recorder
}

func pcm16Frame(ms int) []byte {
	samples := 16000 * ms / 1000
	frame := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		value := int16(6000)
		if i%2 == 1 {
			value = -6000
		}
		frame[2*i] = byte(uint16(value))
		frame[2*i+1] = byte(uint16(value) >> 8)
	}
	return frame
}

func TestStartMovesCallToListening(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o, stt, _, _, recorder := newTestOrchestrator()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer o.End("test over")

	if state := o.State(); state != StateListening {
		t.Fatalf("expected state %q, got %q", StateListening, state)
	}
	if !stt.started {
		t.Fatal("expected speech-to-text adapter to be started")
	}
	if recorder.count(events.KindStateChanged) == 0 {
		t.Fatal("expected a state change event")
	}
}

func TestStartFailureEmitsErrorAndStaysIdle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o, stt, _, _, recorder := newTestOrchestrator()
	stt.transcribeErr = errors.New("connection refused")

	if err := o.Start(ctx); err == nil {
		t.Fatal("expected Start to fail")
	}
	if state := o.State(); state != StateIdle {
		t.Fatalf("expected state %q, got %q", StateIdle, state)
	}

	errEvent := recorder.last(events.KindCallError)
	if errEvent == nil {
		t.Fatal("expected an error event")
	}
	if stage := errEvent.(events.CallError).Stage; stage != "speech-to-text" {
		t.Fatalf("expected error stage speech-to-text, got %q", stage)
	}
}

func TestUserTextProducesSpokenResponse(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o, _, tts, llm, recorder := newTestOrchestrator()
	llm.streams = []fakeStream{{chunks: []llms.StreamChunk{
		contentChunk{text: "Hello"},
		contentChunk{text: " there"},
	}}}

	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer o.End("test over")

	o.SendText("Hi")

	if state := o.State(); state != StateSpeaking {
		t.Fatalf("expected state %q, got %q", StateSpeaking, state)
	}
	if got := recorder.count(events.KindResponseDelta); got != 2 {
		t.Fatalf("expected 2 response deltas, got %d", got)
	}
	if len(tts.synthesized) != 1 || tts.synthesized[0] != "Hello there" {
		t.Fatalf("unexpected synthesized text: %v", tts.synthesized)
	}

	tts.callbacks.SpeechAudioCallback([]byte{1, 2, 3})
	tts.callbacks.SpeechEndedCallback()

	if state := o.State(); state != StateListening {
		t.Fatalf("expected state %q after playback, got %q", StateListening, state)
	}
	if got := recorder.count(events.KindSpeechChunk); got != 1 {
		t.Fatalf("expected 1 speech chunk, got %d", got)
	}

	history := o.Conversation()
	if len(history) != 1 {
		t.Fatalf("expected 1 turn in history, got %d", len(history))
	}
	if history[0].UserTranscript != "Hi" || history[0].AgentResponse != "Hello there" {
		t.Fatalf("unexpected turn: %+v", history[0])
	}
	if history[0].EndTime == nil {
		t.Fatal("expected turn to be closed")
	}
}

func TestBargeInEmitsExactlyOneControlMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o, _, tts, llm, recorder := newTestOrchestrator()
	llm.streams = []fakeStream{{chunks: []llms.StreamChunk{contentChunk{text: "Let me explain at length"}}}}

	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer o.End("test over")

	o.SendText("Tell me something")
	if state := o.State(); state != StateSpeaking {
		t.Fatalf("expected state %q, got %q", StateSpeaking, state)
	}

	o.handleEnergyWindow(energy.Window{EnergyDB: -30, Speaking: true})
	o.handleEnergyWindow(energy.Window{EnergyDB: -30, Speaking: true})

	if got := recorder.count(events.KindBargeIn); got != 1 {
		t.Fatalf("expected exactly 1 barge-in event, got %d", got)
	}
	if state := o.State(); state != StateListening {
		t.Fatalf("expected state %q after barge-in, got %q", StateListening, state)
	}
	if tts.interrupted != 1 {
		t.Fatalf("expected 1 synthesis interrupt, got %d", tts.interrupted)
	}
}

func TestSingleSpeakingWindowDoesNotBargeIn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o, _, tts, llm, recorder := newTestOrchestrator()
	llm.streams = []fakeStream{{chunks: []llms.StreamChunk{contentChunk{text: "A long story"}}}}

	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer o.End("test over")

	o.SendText("Go on")

	o.handleEnergyWindow(energy.Window{EnergyDB: -30, Speaking: true})
	o.handleEnergyWindow(energy.Window{EnergyDB: -80, Speaking: false})
	o.handleEnergyWindow(energy.Window{EnergyDB: -30, Speaking: true})

	if got := recorder.count(events.KindBargeIn); got != 0 {
		t.Fatalf("expected no barge-in events, got %d", got)
	}
	if state := o.State(); state != StateSpeaking {
		t.Fatalf("expected state to remain %q, got %q", StateSpeaking, state)
	}
	if tts.interrupted != 0 {
		t.Fatalf("expected no interrupts, got %d", tts.interrupted)
	}
}

func TestUsageCountsASRSeconds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o, stt, _, _, _ := newTestOrchestrator()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer o.End("test over")

	// The jitter buffer holds back frames until it first reaches its
	// target depth of 3, then keeps 2 buffered in steady state.
	const frames = 50
	const retained = 2
	frame := pcm16Frame(20)
	for i := 0; i < frames+retained; i++ {
		o.ProcessAudioPacket(uint32(i+1), uint64(i*20), frame, false)
	}

	if len(stt.sent) != frames {
		t.Fatalf("expected %d frames forwarded to ASR, got %d", frames, len(stt.sent))
	}
	usage := o.Usage()
	want := 0.02 * frames
	if diff := usage.ASRSeconds - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected ASRSeconds %.4f, got %.4f", want, usage.ASRSeconds)
	}
}

func TestPlayoutWaitsForJitterWarmup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o, stt, _, _, _ := newTestOrchestrator()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer o.End("test over")

	frame := pcm16Frame(20)
	o.ProcessAudioPacket(1, 0, frame, false)
	o.ProcessAudioPacket(2, 20, frame, false)
	if len(stt.sent) != 0 {
		t.Fatalf("expected no playout before the buffer fills, got %d frames", len(stt.sent))
	}

	o.ProcessAudioPacket(3, 40, frame, false)
	if len(stt.sent) != 1 {
		t.Fatalf("expected playout to start at target depth, got %d frames", len(stt.sent))
	}
}

func TestEmptyResponseResetsSilenceTracking(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config := endpointing.DefaultConfig()
	config.SilenceThresholdMs = 100

	// No scripted streams: every generation round comes back empty.
	o, _, _, llm, _ := newTestOrchestrator(
		WithEndpointingOptions(endpointing.WithConfig(config)),
	)
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer o.End("test over")

	silent := make([]byte, 640)
	seq := uint32(0)
	push := func(n int) {
		for i := 0; i < n; i++ {
			seq++
			o.ProcessAudioPacket(seq, uint64(seq)*20, silent, false)
		}
	}

	// Two frames are retained for jitter warm-up; five delivered silent
	// frames reach the 100ms threshold and trigger one empty round.
	push(7)
	if got := len(llm.prompts); got != 1 {
		t.Fatalf("expected 1 generation round after silence timeout, got %d", got)
	}
	if state := o.State(); state != StateListening {
		t.Fatalf("expected state %q, got %q", StateListening, state)
	}

	// Silence accounting restarted; further silence below the threshold
	// must not re-trigger generation.
	push(2)
	if got := len(llm.prompts); got != 1 {
		t.Fatalf("expected no extra generation rounds, got %d", got)
	}
}

func TestEndReachesIdleWithOneClosedTurn(t *testing.T) {
	states := []struct {
		name  string
		setup func(o *Orchestrator, llm *fakeLLM)
	}{
		{name: "from listening with open turn", setup: func(o *Orchestrator, llm *fakeLLM) {
			// Empty generation keeps the turn open and returns to listening.
			o.SendText("Hello?")
		}},
		{name: "from speaking", setup: func(o *Orchestrator, llm *fakeLLM) {
			llm.streams = []fakeStream{{chunks: []llms.StreamChunk{contentChunk{text: "Hi"}}}}
			o.SendText("Hello?")
		}},
	}

	for _, tc := range states {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			o, stt, tts, llm, recorder := newTestOrchestrator()
			if err := o.Start(ctx); err != nil {
				t.Fatalf("Start failed: %v", err)
			}
			tc.setup(o, llm)

			o.End("goodbye")

			if state := o.State(); state != StateIdle {
				t.Fatalf("expected state %q, got %q", StateIdle, state)
			}
			if got := recorder.count(events.KindCallEnded); got != 1 {
				t.Fatalf("expected 1 call ended event, got %d", got)
			}
			if !stt.closed || !tts.closed {
				t.Fatal("expected both adapters to be closed")
			}

			history := o.Conversation()
			if len(history) != 1 {
				t.Fatalf("expected exactly 1 closed turn, got %d", len(history))
			}
			if history[0].EndTime == nil {
				t.Fatal("expected the turn to be closed")
			}
		})
	}
}

func TestEndFromIdleIsCleanAndIdempotent(t *testing.T) {
	o, _, _, _, recorder := newTestOrchestrator()

	o.End("abandoned")
	o.End("again")

	if state := o.State(); state != StateIdle {
		t.Fatalf("expected state %q, got %q", StateIdle, state)
	}
	if got := recorder.count(events.KindCallEnded); got != 1 {
		t.Fatalf("expected 1 call ended event, got %d", got)
	}
	if got := len(o.Conversation()); got != 0 {
		t.Fatalf("expected no turns, got %d", got)
	}
}

func TestToolCallRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := tools.NewRegistry(tools.WithDefinitions(
		tools.New("lookup_order", "Look up an order by ID",
			func(_ context.Context, params struct {
				OrderID string `json:"order_id"`
			}) (any, error) {
				return map[string]string{"status": "shipped", "order_id": params.OrderID}, nil
			}),
	))

	o, _, tts, llm, recorder := newTestOrchestrator(WithToolRegistry(registry))
	llm.streams = []fakeStream{
		{chunks: []llms.StreamChunk{
			toolCallChunk{call: llms.ToolCall{ID: "t1", Name: "lookup_order", Arguments: `{"order_id":"42"}`}},
			usageChunk{usage: llms.Usage{InputTokens: 10, OutputTokens: 5}},
		}},
		{chunks: []llms.StreamChunk{
			contentChunk{text: "Your order shipped."},
			usageChunk{usage: llms.Usage{InputTokens: 20, OutputTokens: 6}},
		}},
	}

	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer o.End("test over")

	o.SendText("Where is order 42?")

	if got := recorder.count(events.KindToolCallRequested); got != 1 {
		t.Fatalf("expected 1 tool call request event, got %d", got)
	}
	if got := recorder.count(events.KindToolCallCompleted); got != 1 {
		t.Fatalf("expected 1 tool call completed event, got %d", got)
	}
	if len(tts.synthesized) != 1 || tts.synthesized[0] != "Your order shipped." {
		t.Fatalf("unexpected synthesized text: %v", tts.synthesized)
	}

	usage := o.Usage()
	if usage.ToolCalls != 1 {
		t.Fatalf("expected 1 tool call counted, got %d", usage.ToolCalls)
	}
	if usage.LLMTokensIn != 30 || usage.LLMTokensOut != 11 {
		t.Fatalf("unexpected token usage: %+v", usage)
	}

	// The second round must carry the executed call and its result back to
	// the model.
	if len(llm.prompts) != 2 {
		t.Fatalf("expected 2 generation rounds, got %d", len(llm.prompts))
	}
	second := llm.prompts[1].Messages
	last := second[len(second)-1]
	if last.Role != llms.MessageRoleAssistant || len(last.ToolCalls) != 1 {
		t.Fatalf("expected assistant tool call message, got %+v", last)
	}
	if !strings.Contains(last.ToolCalls[0].Response, "shipped") {
		t.Fatalf("expected tool response to carry the result, got %q", last.ToolCalls[0].Response)
	}
}

func TestMissingToolReportsStructuredError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o, _, _, llm, recorder := newTestOrchestrator(WithToolRegistry(tools.NewRegistry()))
	llm.streams = []fakeStream{
		{chunks: []llms.StreamChunk{
			toolCallChunk{call: llms.ToolCall{ID: "t1", Name: "no_such_tool", Arguments: "{}"}},
		}},
		{chunks: []llms.StreamChunk{contentChunk{text: "Sorry, I can't do that."}}},
	}

	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer o.End("test over")

	o.SendText("Do the thing")

	if got := recorder.count(events.KindToolCallFailed); got != 1 {
		t.Fatalf("expected 1 tool call failed event, got %d", got)
	}
	if len(llm.prompts) != 2 {
		t.Fatalf("expected 2 generation rounds, got %d", len(llm.prompts))
	}
	second := llm.prompts[1].Messages
	response := second[len(second)-1].ToolCalls[0].Response
	if !strings.Contains(response, tools.ErrorCodeNoToolDefinition) {
		t.Fatalf("expected structured %s error, got %q", tools.ErrorCodeNoToolDefinition, response)
	}
	if !strings.Contains(response, `"ok":false`) {
		t.Fatalf("expected ok:false payload, got %q", response)
	}
}

func TestLLMFailureFallsBackToApology(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o, _, tts, llm, _ := newTestOrchestrator(WithFallbackUtterance("Sorry, give me a moment."))
	llm.streams = []fakeStream{{err: fmt.Errorf("model overloaded")}}

	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer o.End("test over")

	o.SendText("Hello")

	if state := o.State(); state != StateSpeaking {
		t.Fatalf("expected state %q, got %q", StateSpeaking, state)
	}
	if len(tts.synthesized) != 1 || tts.synthesized[0] != "Sorry, give me a moment." {
		t.Fatalf("expected fallback utterance, got %v", tts.synthesized)
	}
}

func TestFinalTranscriptUpdatesOpenTurn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o, stt, _, _, recorder := newTestOrchestrator()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer o.End("test over")

	stt.callbacks.PartialTranscriptCallback("hello", 0.5)
	stt.callbacks.FinalTranscriptCallback("hello world", 0.93, 1.2)

	if got := recorder.count(events.KindTranscriptPartial); got != 1 {
		t.Fatalf("expected 1 partial transcript event, got %d", got)
	}
	final := recorder.last(events.KindTranscriptFinal)
	if final == nil {
		t.Fatal("expected a final transcript event")
	}
	if text := final.(events.TranscriptFinal).Text; text != "hello world" {
		t.Fatalf("unexpected final transcript %q", text)
	}

	history := o.Conversation()
	if len(history) != 1 || history[0].UserTranscript != "hello world" {
		t.Fatalf("expected open turn with transcript, got %+v", history)
	}
	if history[0].EndTime != nil {
		t.Fatal("expected the turn to still be open")
	}
}

func TestUtteranceEndTriggersResponse(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o, stt, tts, llm, _ := newTestOrchestrator()
	llm.streams = []fakeStream{{chunks: []llms.StreamChunk{contentChunk{text: "Hi!"}}}}

	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer o.End("test over")

	stt.callbacks.FinalTranscriptCallback("good morning", 0.9, 0.8)
	stt.callbacks.UtteranceEndCallback()

	if state := o.State(); state != StateSpeaking {
		t.Fatalf("expected state %q, got %q", StateSpeaking, state)
	}
	if len(tts.synthesized) != 1 || tts.synthesized[0] != "Hi!" {
		t.Fatalf("unexpected synthesized text: %v", tts.synthesized)
	}
}
