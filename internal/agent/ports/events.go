package ports

// EventType enumerates the external event vocabulary.
type EventType string

const (
	EventProgress    EventType = "progress"
	EventToolCall    EventType = "tool-call"
	EventObservation EventType = "observation"
	EventTextDelta   EventType = "text-delta"
	EventError       EventType = "error"
	EventDone        EventType = "done"
)

// Stage qualifies a progress event.
type Stage string

const (
	StageThinking   Stage = "thinking"
	StagePlanning   Stage = "planning"
	StageExecuting  Stage = "executing"
	StageReplanning Stage = "replanning"
)

// Event is one normalized progress record emitted to the caller. Only the
// fields relevant to Type are populated.
type Event struct {
	Type EventType `json:"type"`

	// progress
	Message string `json:"message,omitempty"`
	Stage   Stage  `json:"stage,omitempty"`

	// tool-call
	ToolName string         `json:"toolName,omitempty"`
	ToolArgs map[string]any `json:"toolArgs,omitempty"`
	ToolID   string         `json:"toolId,omitempty"`

	// observation
	Content    string `json:"content,omitempty"`
	ToolCallID string `json:"toolCallId,omitempty"`
	Result     any    `json:"result,omitempty"`

	// text-delta
	TextDelta string `json:"textDelta,omitempty"`

	// error, and the error side of an observation
	Err string `json:"error,omitempty"`
}
