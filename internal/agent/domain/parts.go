package domain

import "corax/internal/agent/ports"

// PartType enumerates the internal stream-part vocabulary emitted by the
// processors. The event normalizer maps it onto the external vocabulary.
type PartType string

const (
	PartReasoning   PartType = "reasoning"
	PartPlanning    PartType = "planning"
	PartTaskStart   PartType = "task-start"
	PartReplanning  PartType = "replanning"
	PartToolCall    PartType = "tool-call"
	PartObservation PartType = "observation"
	PartTextDelta   PartType = "text-delta"
	PartError       PartType = "error"
	PartFinish      PartType = "finish"
)

// StreamPart is one internal progress record. Text carries the human-visible
// payload; Metadata carries the type-specific structured payload. Tool-call
// parts may use either the native toolName/toolArgs/toolId key set or the
// provider-native toolCallId/toolName/args one.
type StreamPart struct {
	Type     PartType
	Text     string
	Metadata map[string]any
}

// Emitter delivers one part to the consumer, blocking until it is taken. A
// non-nil error means the consumer is gone and the processor must unwind.
type Emitter func(StreamPart) error

func reasoningPart(text string) StreamPart {
	return StreamPart{Type: PartReasoning, Text: text}
}

func planningPart(text string) StreamPart {
	return StreamPart{Type: PartPlanning, Text: text}
}

func taskStartPart(task Task) StreamPart {
	return StreamPart{
		Type: PartTaskStart,
		Text: task.Description,
		Metadata: map[string]any{
			"taskId":   task.ID,
			"priority": task.Priority,
		},
	}
}

func replanningPart(reason string) StreamPart {
	return StreamPart{Type: PartReplanning, Text: reason}
}

func toolCallPart(call ports.ToolCall) StreamPart {
	return StreamPart{
		Type: PartToolCall,
		Metadata: map[string]any{
			"toolName": call.Name,
			"toolArgs": call.Arguments,
			"toolId":   call.ID,
		},
	}
}

func observationPart(obs ports.Observation) StreamPart {
	content := obs.Err
	if !obs.Failed() {
		content = stringifyResult(obs.Result)
	}
	return StreamPart{
		Type: PartObservation,
		Text: content,
		Metadata: map[string]any{
			"toolCallId": obs.ToolCallID,
			"toolName":   obs.ToolName,
			"result":     obs.Result,
			"error":      obs.Err,
		},
	}
}

func textDeltaPart(text string) StreamPart {
	return StreamPart{Type: PartTextDelta, Text: text}
}

func errorPart(msg string) StreamPart {
	return StreamPart{Type: PartError, Text: msg}
}

func finishPart(reason string) StreamPart {
	return StreamPart{
		Type:     PartFinish,
		Metadata: map[string]any{"reason": reason},
	}
}
