package orchestration

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/codes"

	"github.com/invorto/voice-core/core/llms"
)

type llm struct {
	// client is the configured streaming LLM implementation.
	client LLM
}

func (l *llm) set(client LLM) {
	if l != nil {
		l.client = client
	}
}

func (l *llm) isConfigured() bool {
	return l != nil && l.client != nil
}

type generateOptions struct {
	systemPrompt string
	history      []llms.Message
	tools        []llms.Tool

	// onDelta receives each streamed content fragment.
	onDelta func(delta string)
	// onUsage receives token usage reports as the provider emits them.
	onUsage func(usage llms.Usage)
	// executeTool runs a requested tool call and returns the serialized
	// result handed back to the model.
	executeTool func(ctx context.Context, call llms.ToolCall) string
	// cancelled aborts generation between chunks when it returns true.
	cancelled func() bool
}

// generate runs the model until it produces a response without further tool
// calls, executing requested tools between rounds.
func (l *llm) generate(ctx context.Context, prompt string, opts generateOptions) (*llms.Response, error) {
	if !l.isConfigured() {
		return nil, nil
	}

	ctx, span := tracer.Start(ctx, "generate response")
	defer span.End()

	messages := slices.Clone(opts.history)
	if prompt != "" {
		messages = append(messages, llms.Message{
			Role:    llms.MessageRoleUser,
			Content: prompt,
		})
	}

	var fullText strings.Builder
	turnCalls := []llms.ToolCall{}
	for {
		promptOptions := []llms.PromptOption{
			llms.WithMessages(messages...),
		}
		if opts.systemPrompt != "" {
			promptOptions = append([]llms.PromptOption{llms.WithSystemPrompt(opts.systemPrompt)}, promptOptions...)
		}
		if len(opts.tools) > 0 {
			promptOptions = append(promptOptions, llms.WithTools(opts.tools...))
		}

		stream := l.client.PromptWithStream(ctx, nil, promptOptions...)

		var message strings.Builder
		toolCalls := []llms.ToolCall{}
		for chunk, err := range stream.Chunks(ctx) {
			if err != nil {
				err = fmt.Errorf("failed to stream llm response: %w", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}

			if opts.cancelled != nil && opts.cancelled() {
				return nil, nil
			}

			switch chunk := chunk.(type) {
			case llms.StreamContentChunk:
				message.WriteString(chunk.Content())
				if opts.onDelta != nil {
					opts.onDelta(chunk.Content())
				}

			case llms.StreamToolCallChunk:
				toolCalls = append(toolCalls, chunk.ToolCall())

			case llms.StreamUsageChunk:
				if opts.onUsage != nil {
					opts.onUsage(chunk.Usage())
				}
			}
		}

		fullText.WriteString(message.String())
		if len(toolCalls) == 0 {
			return &llms.Response{
				Content:   fullText.String(),
				ToolCalls: turnCalls,
			}, nil
		}

		for i := range toolCalls {
			if opts.executeTool != nil {
				toolCalls[i].Response = opts.executeTool(ctx, toolCalls[i])
			}
		}
		turnCalls = append(turnCalls, toolCalls...)
		messages = append(messages, llms.Message{
			Role:      llms.MessageRoleAssistant,
			Content:   message.String(),
			ToolCalls: toolCalls,
		})
	}
}
