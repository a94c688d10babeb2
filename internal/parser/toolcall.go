package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"

	"corax/internal/agent/ports"
)

// IDGenerator synthesizes tool-call ids as call_<session>_<sequence>. The
// session component is fixed for one runtime's lifetime and the sequence is
// monotonic, so ids are unique without coordination.
type IDGenerator struct {
	session string
	seq     atomic.Int64
}

// NewIDGenerator creates a generator with a fresh session id.
func NewIDGenerator() *IDGenerator {
	return NewIDGeneratorWithSession(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// NewIDGeneratorWithSession creates a generator bound to an existing session id.
func NewIDGeneratorWithSession(session string) *IDGenerator {
	return &IDGenerator{session: session}
}

// Next returns the next synthesized id.
func (g *IDGenerator) Next() string {
	return fmt.Sprintf("call_%s_%d", g.session, g.seq.Add(1))
}

// Session returns the fixed session component.
func (g *IDGenerator) Session() string { return g.session }

var toolNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

func isValidToolName(name string) bool {
	return toolNamePattern.MatchString(name)
}

type rawToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	ID        any            `json:"id"`
}

// ParseToolCall extracts and decodes the first <tool_call> body from a
// completed assistant turn. The second return reports whether a tool_call tag
// was present at all; a present-but-unparseable call returns found=true with
// a non-nil error, which the loop treats as recoverable.
func ParseToolCall(content string, ids *IDGenerator) (ports.ToolCall, bool, error) {
	body, ok := ExtractTagContent(content, TagToolCall)
	if !ok {
		return ports.ToolCall{}, false, nil
	}

	var raw rawToolCall
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(body)
		if repairErr != nil {
			return ports.ToolCall{}, true, fmt.Errorf("tool call is not valid JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
			return ports.ToolCall{}, true, fmt.Errorf("tool call is not valid JSON after repair: %w", err)
		}
	}

	if !isValidToolName(raw.Name) {
		return ports.ToolCall{}, true, fmt.Errorf("invalid tool name %q", raw.Name)
	}

	call := ports.ToolCall{
		Name:      raw.Name,
		Arguments: raw.Arguments,
	}
	if call.Arguments == nil {
		call.Arguments = map[string]any{}
	}
	if id, ok := raw.ID.(string); ok && strings.TrimSpace(id) != "" {
		call.ID = id
	} else {
		call.ID = ids.Next()
	}
	return call, true, nil
}
