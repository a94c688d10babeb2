package agent

import (
	"corax/internal/agent/domain"
	"corax/internal/agent/ports"
)

// normalizeStreamPart maps one internal stream part onto the external event
// vocabulary. The second return is false for parts that have no external
// representation; callers drop those instead of inventing an event type.
func normalizeStreamPart(part domain.StreamPart) (ports.Event, bool) {
	switch part.Type {
	case domain.PartReasoning:
		return ports.Event{Type: ports.EventProgress, Stage: ports.StageThinking, Message: part.Text}, true
	case domain.PartPlanning:
		return ports.Event{Type: ports.EventProgress, Stage: ports.StagePlanning, Message: part.Text}, true
	case domain.PartTaskStart:
		return ports.Event{Type: ports.EventProgress, Stage: ports.StageExecuting, Message: part.Text}, true
	case domain.PartReplanning:
		return ports.Event{Type: ports.EventProgress, Stage: ports.StageReplanning, Message: part.Text}, true

	case domain.PartToolCall:
		ev := ports.Event{Type: ports.EventToolCall}
		// Processors use toolName/toolArgs/toolId; provider-shaped parts
		// carry toolCallId/args instead. Accept both.
		ev.ToolName = metaString(part.Metadata, "toolName")
		if id := metaString(part.Metadata, "toolId"); id != "" {
			ev.ToolID = id
		} else {
			ev.ToolID = metaString(part.Metadata, "toolCallId")
		}
		if args, ok := part.Metadata["toolArgs"].(map[string]any); ok {
			ev.ToolArgs = args
		} else if args, ok := part.Metadata["args"].(map[string]any); ok {
			ev.ToolArgs = args
		}
		return ev, true

	case domain.PartObservation:
		return ports.Event{
			Type:       ports.EventObservation,
			Content:    part.Text,
			ToolCallID: metaString(part.Metadata, "toolCallId"),
			ToolName:   metaString(part.Metadata, "toolName"),
			Result:     part.Metadata["result"],
			Err:        metaString(part.Metadata, "error"),
		}, true

	case domain.PartTextDelta:
		return ports.Event{Type: ports.EventTextDelta, TextDelta: part.Text}, true

	case domain.PartError:
		return ports.Event{Type: ports.EventError, Err: part.Text}, true

	case domain.PartFinish:
		return ports.Event{Type: ports.EventDone, Message: metaString(part.Metadata, "reason")}, true
	}

	return ports.Event{}, false
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	s, _ := meta[key].(string)
	return s
}
