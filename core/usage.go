package orchestration

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// UsageCounters are running totals accumulated for the life of a call and
// flushed to the billing collaborator when the call ends.
type UsageCounters struct {
	ASRSeconds    float64
	LLMTokensIn   int64
	LLMTokensOut  int64
	TTSCharacters int64
	ToolCalls     int64
}

// UsageSink receives the final usage totals at call end.
type UsageSink interface {
	FlushUsage(ctx context.Context, callID string, usage UsageCounters)
}

type usageRecorder struct {
	mu       sync.Mutex
	counters UsageCounters

	asrSeconds    metric.Float64Counter
	llmTokens     metric.Int64Counter
	ttsCharacters metric.Int64Counter
	toolCalls     metric.Int64Counter
}

func newUsageRecorder() *usageRecorder {
	asrSeconds, _ := meter.Float64Counter("voice_core.usage.asr_seconds")
	llmTokens, _ := meter.Int64Counter("voice_core.usage.llm_tokens")
	ttsCharacters, _ := meter.Int64Counter("voice_core.usage.tts_characters")
	toolCalls, _ := meter.Int64Counter("voice_core.usage.tool_calls")

	return &usageRecorder{
		asrSeconds:    asrSeconds,
		llmTokens:     llmTokens,
		ttsCharacters: ttsCharacters,
		toolCalls:     toolCalls,
	}
}

func (u *usageRecorder) addASRAudio(ctx context.Context, seconds float64) {
	u.mu.Lock()
	u.counters.ASRSeconds += seconds
	u.mu.Unlock()

	u.asrSeconds.Add(ctx, seconds)
}

func (u *usageRecorder) addLLMTokens(ctx context.Context, in, out int64) {
	u.mu.Lock()
	u.counters.LLMTokensIn += in
	u.counters.LLMTokensOut += out
	u.mu.Unlock()

	u.llmTokens.Add(ctx, in, metric.WithAttributes(attribute.String("direction", "in")))
	u.llmTokens.Add(ctx, out, metric.WithAttributes(attribute.String("direction", "out")))
}

func (u *usageRecorder) addTTSCharacters(ctx context.Context, characters int64) {
	u.mu.Lock()
	u.counters.TTSCharacters += characters
	u.mu.Unlock()

	u.ttsCharacters.Add(ctx, characters)
}

func (u *usageRecorder) addToolCall(ctx context.Context) {
	u.mu.Lock()
	u.counters.ToolCalls++
	u.mu.Unlock()

	u.toolCalls.Add(ctx, 1)
}

func (u *usageRecorder) snapshot() UsageCounters {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.counters
}
