package domain

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corax/internal/agent/ports"
	"corax/internal/llm"
	"corax/internal/toolregistry"
)

type stubToolService struct {
	tools  map[string]ports.ToolSchema
	invoke func(name string, args map[string]any) (any, error)
}

func (s *stubToolService) List(context.Context) (map[string]ports.ToolSchema, error) {
	if s.tools != nil {
		return s.tools, nil
	}
	return map[string]ports.ToolSchema{
		"x": {Name: "x", Description: "test tool"},
	}, nil
}

func (s *stubToolService) Invoke(_ context.Context, name string, args map[string]any) (any, error) {
	if s.invoke != nil {
		return s.invoke(name, args)
	}
	return "tool output", nil
}

// collector gathers emitted parts and offers views a test can assert on.
type collector struct {
	parts []StreamPart
}

func (c *collector) emit(part StreamPart) error {
	c.parts = append(c.parts, part)
	return nil
}

// typeSequence returns the part types in order with consecutive duplicates
// collapsed, so assertions are independent of delta chunking.
func (c *collector) typeSequence() []PartType {
	var seq []PartType
	for _, part := range c.parts {
		if len(seq) == 0 || seq[len(seq)-1] != part.Type {
			seq = append(seq, part.Type)
		}
	}
	return seq
}

func (c *collector) joined(t PartType) string {
	var b strings.Builder
	for _, part := range c.parts {
		if part.Type == t {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func (c *collector) first(t PartType) (StreamPart, bool) {
	for _, part := range c.parts {
		if part.Type == t {
			return part, true
		}
	}
	return StreamPart{}, false
}

func (c *collector) finishReason(t *testing.T) string {
	t.Helper()
	part, ok := c.first(PartFinish)
	require.True(t, ok, "no finish part emitted")
	return part.Metadata["reason"].(string)
}

func newReact(t *testing.T, client ports.ModelStream, maxIterations int) *ReactProcessor {
	t.Helper()
	return NewReactProcessor(ReactConfig{
		LLM:           client,
		Tools:         toolregistry.New(&stubToolService{}, nil, nil),
		MaxIterations: maxIterations,
	})
}

func TestReactToolCallThenAnswer(t *testing.T) {
	client := llm.NewScriptedClient(
		`<thought>A</thought><tool_call>{"name": "x", "arguments": {}, "id": "c1"}</tool_call>`,
		`<thought>B</thought><response>done</response>`,
	)
	client.SetChunkSize(3)
	var out collector

	err := newReact(t, client, 4).Run(context.Background(), "do the thing", nil, out.emit)
	require.NoError(t, err)

	assert.Equal(t, []PartType{
		PartReasoning, PartToolCall, PartObservation,
		PartReasoning, PartTextDelta, PartFinish,
	}, out.typeSequence())
	assert.Equal(t, "AB", out.joined(PartReasoning))
	assert.Equal(t, "done", out.joined(PartTextDelta))

	call, ok := out.first(PartToolCall)
	require.True(t, ok)
	assert.Equal(t, "x", call.Metadata["toolName"])
	assert.Equal(t, "c1", call.Metadata["toolId"])

	obs, ok := out.first(PartObservation)
	require.True(t, ok)
	assert.Equal(t, "c1", obs.Metadata["toolCallId"])
	assert.Equal(t, "tool output", obs.Text)

	assert.Equal(t, "completed", out.finishReason(t))
}

func TestReactIterationBudgetExhausted(t *testing.T) {
	client := llm.NewScriptedClient(`<thought>still thinking</thought>`)
	client.RepeatLast = true
	var out collector

	err := newReact(t, client, 3).Run(context.Background(), "q", nil, out.emit)
	require.NoError(t, err)

	assert.Equal(t, 3, client.Calls())
	errPart, ok := out.first(PartError)
	require.True(t, ok)
	assert.Contains(t, errPart.Text, "no answer after 3 iterations")
	assert.Equal(t, "max_iterations", out.finishReason(t))
}

func TestReactUntaggedAnswerTolerated(t *testing.T) {
	client := llm.NewScriptedClient(`Paris is the capital of France.`)
	var out collector

	err := newReact(t, client, 4).Run(context.Background(), "capital?", nil, out.emit)
	require.NoError(t, err)

	assert.Equal(t, "Paris is the capital of France.", out.joined(PartTextDelta))
	assert.Equal(t, "completed", out.finishReason(t))
}

func TestReactMalformedToolCallIsRecoverable(t *testing.T) {
	client := llm.NewScriptedClient(
		`<tool_call>{"arguments": {}}</tool_call>`,
		`<response>recovered</response>`,
	)
	var out collector

	err := newReact(t, client, 4).Run(context.Background(), "q", nil, out.emit)
	require.NoError(t, err)

	obs, ok := out.first(PartObservation)
	require.True(t, ok)
	assert.Contains(t, obs.Text, "malformed tool call")
	assert.Equal(t, "recovered", out.joined(PartTextDelta))
	assert.Equal(t, "completed", out.finishReason(t))
}

func TestReactStreamFailure(t *testing.T) {
	client := llm.NewScriptedClient()
	var out collector

	err := newReact(t, client, 4).Run(context.Background(), "q", nil, out.emit)
	require.NoError(t, err)

	errPart, ok := out.first(PartError)
	require.True(t, ok)
	assert.Contains(t, errPart.Text, "model stream failed")
	assert.Equal(t, "stream_failed", out.finishReason(t))
}

func TestReactCancellationUnwinds(t *testing.T) {
	client := llm.NewScriptedClient(`<thought>looping</thought>`)
	client.RepeatLast = true
	ctx, cancel := context.WithCancel(context.Background())

	proc := newReact(t, client, 100)
	var calls int
	err := proc.Run(ctx, "q", nil, func(StreamPart) error {
		calls++
		if calls >= 2 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
