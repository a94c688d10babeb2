package agent

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corax/internal/agent/ports"
	"corax/internal/llm"
)

type recordingToolService struct {
	mu        sync.Mutex
	listCalls int
}

func (s *recordingToolService) List(context.Context) (map[string]ports.ToolSchema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	return map[string]ports.ToolSchema{
		"echo": {Name: "echo", Description: "Echoes its input"},
	}, nil
}

func (s *recordingToolService) Invoke(_ context.Context, _ string, args map[string]any) (any, error) {
	return args, nil
}

func (s *recordingToolService) lists() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

type recordingHistory struct {
	mu        sync.Mutex
	messages  []ports.Message
	exchanges [][2]string
	facts     []string
}

func (h *recordingHistory) Load(context.Context) ([]ports.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.messages, nil
}

func (h *recordingHistory) SaveExchange(_ context.Context, user, answer string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exchanges = append(h.exchanges, [2]string{user, answer})
	return nil
}

func (h *recordingHistory) SaveFact(_ context.Context, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.facts = append(h.facts, text)
	return nil
}

func drain(t *testing.T, events <-chan ports.Event) []ports.Event {
	t.Helper()
	var out []ports.Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func newRuntime(t *testing.T, client ports.ModelStream, history ports.HistoryStore) *Runtime {
	t.Helper()
	rt, err := New(Config{Strategy: StrategyReact, MaxIterations: 4}, Deps{
		LLM:     client,
		Tools:   &recordingToolService{},
		History: history,
	})
	require.NoError(t, err)
	return rt
}

func TestNewValidatesDeps(t *testing.T) {
	_, err := New(Config{}, Deps{Tools: &recordingToolService{}})
	assert.ErrorContains(t, err, "model stream is required")

	_, err = New(Config{}, Deps{LLM: llm.NewScriptedClient()})
	assert.ErrorContains(t, err, "tool service is required")

	_, err = New(Config{Strategy: "zigzag"}, Deps{
		LLM:   llm.NewScriptedClient(),
		Tools: &recordingToolService{},
	})
	assert.ErrorContains(t, err, `unknown strategy "zigzag"`)
}

func TestProcessRejectsEmptyInput(t *testing.T) {
	rt := newRuntime(t, llm.NewScriptedClient(), nil)

	_, err := rt.Process(context.Background(), "   ")
	assert.ErrorContains(t, err, "empty input")
}

func TestProcessFullTurn(t *testing.T) {
	client := llm.NewScriptedClient(
		`<thought>using the tool</thought><tool_call>{"name": "echo", "arguments": {"v": 1}}</tool_call>`,
		`<thought>done now</thought><response>all done</response>`,
	)
	history := &recordingHistory{}
	rt := newRuntime(t, client, history)

	events, err := rt.Process(context.Background(), "run it")
	require.NoError(t, err)
	got := drain(t, events)

	var types []ports.EventType
	var answer string
	for _, ev := range got {
		if len(types) == 0 || types[len(types)-1] != ev.Type {
			types = append(types, ev.Type)
		}
		answer += ev.TextDelta
	}
	assert.Equal(t, []ports.EventType{
		ports.EventProgress, ports.EventToolCall, ports.EventObservation,
		ports.EventProgress, ports.EventTextDelta, ports.EventDone,
	}, types)
	assert.Equal(t, "all done", answer)

	last := got[len(got)-1]
	assert.Equal(t, ports.EventDone, last.Type)
	assert.Equal(t, "completed", last.Message)

	require.Len(t, history.exchanges, 1)
	assert.Equal(t, "run it", history.exchanges[0][0])
	assert.Equal(t, "all done", history.exchanges[0][1])
	assert.Empty(t, history.facts)
}

func TestProcessPersistsDisclosedFacts(t *testing.T) {
	client := llm.NewScriptedClient(`<response>noted</response>`)
	history := &recordingHistory{}
	rt := newRuntime(t, client, history)

	events, err := rt.Process(context.Background(), "My name is Dana and I like tea")
	require.NoError(t, err)
	drain(t, events)

	require.Len(t, history.facts, 1)
	assert.Equal(t, "My name is Dana and I like tea", history.facts[0])
}

func TestProcessSynthesizesToolCallIDs(t *testing.T) {
	client := llm.NewScriptedClient(
		`<tool_call>{"name": "echo", "arguments": {}}</tool_call>`,
		`<response>ok</response>`,
	)
	rt := newRuntime(t, client, nil)

	events, err := rt.Process(context.Background(), "go")
	require.NoError(t, err)

	var toolID string
	for ev := range events {
		if ev.Type == ports.EventToolCall {
			toolID = ev.ToolID
		}
	}
	assert.Equal(t, "call_"+rt.Session()+"_1", toolID)
}

func TestResetClearsToolCache(t *testing.T) {
	client := llm.NewScriptedClient(
		`<response>one</response>`,
		`<response>two</response>`,
	)
	tools := &recordingToolService{}
	rt, err := New(Config{}, Deps{LLM: client, Tools: tools})
	require.NoError(t, err)

	events, err := rt.Process(context.Background(), "first")
	require.NoError(t, err)
	drain(t, events)
	assert.Equal(t, 1, tools.lists())

	rt.Reset()

	events, err = rt.Process(context.Background(), "second")
	require.NoError(t, err)
	drain(t, events)
	assert.Equal(t, 2, tools.lists())
}

func TestProcessCoActStrategy(t *testing.T) {
	client := llm.NewScriptedClient(
		`<plan>{"strategy": "single", "tasks": [{"id": "task_1", "description": "answer", "priority": 1}]}</plan>`,
		`<response>coact answer</response>`,
	)
	rt, err := New(Config{Strategy: StrategyCoAct}, Deps{
		LLM:   client,
		Tools: &recordingToolService{},
	})
	require.NoError(t, err)

	events, err := rt.Process(context.Background(), "plan this")
	require.NoError(t, err)
	got := drain(t, events)

	sawPlanning := false
	answer := ""
	for _, ev := range got {
		if ev.Type == ports.EventProgress && ev.Stage == ports.StagePlanning {
			sawPlanning = true
		}
		answer += ev.TextDelta
	}
	assert.True(t, sawPlanning)
	assert.Equal(t, "coact answer", answer)
}
