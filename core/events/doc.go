// Package events defines the typed event contract emitted by the call
// orchestrator toward the transport collaborator.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - stt.*       incremental and final user transcripts
//   - llm.*       streamed agent response text
//   - tool_call.* tool invocation lifecycle
//   - tts.*       synthesized agent speech
//   - control.*   playback control (barge-in)
//   - emotion.*   audio telemetry windows and classified emotion state
//   - call.*      call lifecycle (state changes, end, fatal errors)
package events
