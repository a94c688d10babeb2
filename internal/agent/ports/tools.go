package ports

import (
	"context"
	"encoding/json"
)

// ToolService is the remote capability registry collaborator. List returns
// the available capabilities keyed by name; Invoke runs one of them.
type ToolService interface {
	List(ctx context.Context) (map[string]ToolSchema, error)
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
}

// ToolSchema describes a capability for the LLM.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}

// ParameterSchema defines tool parameters (JSON Schema format).
type ParameterSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Property defines a single parameter.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Enum        []any  `json:"enum,omitempty"`
}

// ToolCall represents a request to execute a tool. ID is always non-empty:
// when the model omits or malforms it, the parser synthesizes one.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Observation is the result (or error) of one tool invocation. Exactly one of
// Result and Err is meaningful; the constructors guarantee that both are never
// empty at once. Observations live only as long as it takes to serialize them
// back into the conversation.
type Observation struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Result     any    `json:"result,omitempty"`
	Err        string `json:"error,omitempty"`
}

// NewObservation builds a successful observation. A nil result is coerced to
// an empty string so the result/error union always has one populated side.
func NewObservation(call ToolCall, result any) Observation {
	if result == nil {
		result = ""
	}
	return Observation{
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Result:     result,
	}
}

// NewErrorObservation builds a failed observation.
func NewErrorObservation(call ToolCall, err error) Observation {
	msg := "unknown tool error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return Observation{
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Err:        msg,
	}
}

// Failed reports whether the observation carries an error.
func (o Observation) Failed() bool { return o.Err != "" }

// AsMessage serializes the observation into the conversation message the
// model reads on its next turn.
func (o Observation) AsMessage() Message {
	payload, err := json.Marshal(o)
	if err != nil {
		payload = []byte(`{"tool_call_id":"` + o.ToolCallID + `","error":"unserializable observation"}`)
	}
	return Message{
		Role:    "user",
		Content: "<observation>" + string(payload) + "</observation>",
	}
}
