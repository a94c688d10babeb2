package toolregistry

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corax/internal/agent/ports"
)

type fakeToolService struct {
	listCalls atomic.Int64
	listErr   error
	tools     map[string]ports.ToolSchema
	invoke    func(name string, args map[string]any) (any, error)
}

func (f *fakeToolService) List(context.Context) (map[string]ports.ToolSchema, error) {
	f.listCalls.Add(1)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.tools, nil
}

func (f *fakeToolService) Invoke(_ context.Context, name string, args map[string]any) (any, error) {
	if f.invoke != nil {
		return f.invoke(name, args)
	}
	return "ok", nil
}

func demoTools() map[string]ports.ToolSchema {
	return map[string]ports.ToolSchema{
		"weather": {
			Name:        "weather",
			Description: "Current weather for a city",
			Parameters: ports.ParameterSchema{
				Type: "object",
				Properties: map[string]ports.Property{
					"city": {Type: "string", Description: "City name"},
				},
				Required: []string{"city"},
			},
		},
		"clock": {Name: "clock", Description: "Current time"},
	}
}

func TestToolsFetchedOnceAndCached(t *testing.T) {
	svc := &fakeToolService{tools: demoTools()}
	adapter := New(svc, nil, nil)

	first, err := adapter.Tools(context.Background())
	require.NoError(t, err)
	second, err := adapter.Tools(context.Background())
	require.NoError(t, err)

	assert.Len(t, first, 2)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), svc.listCalls.Load())
}

func TestClearCacheForcesRefetch(t *testing.T) {
	svc := &fakeToolService{tools: demoTools()}
	adapter := New(svc, nil, nil)

	_, err := adapter.Tools(context.Background())
	require.NoError(t, err)
	_, err = adapter.PromptBlock(context.Background())
	require.NoError(t, err)

	adapter.ClearCache()

	_, err = adapter.Tools(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), svc.listCalls.Load())
}

func TestPromptBlockFormatsAndCaches(t *testing.T) {
	svc := &fakeToolService{tools: demoTools()}
	adapter := New(svc, nil, nil)

	block, err := adapter.PromptBlock(context.Background())
	require.NoError(t, err)

	assert.Contains(t, block, "- clock: Current time")
	assert.Contains(t, block, "- weather: Current weather for a city")
	assert.Contains(t, block, `"city"`)
	// Sorted output: clock before weather.
	assert.Less(t, strings.Index(block, "clock"), strings.Index(block, "weather"))

	again, err := adapter.PromptBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, block, again)
	assert.Equal(t, int64(1), svc.listCalls.Load())
}

func TestPromptBlockEmptyRegistry(t *testing.T) {
	svc := &fakeToolService{tools: map[string]ports.ToolSchema{}}
	adapter := New(svc, nil, nil)

	block, err := adapter.PromptBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "(no tools available)", block)
}

func TestToolsPropagatesListError(t *testing.T) {
	svc := &fakeToolService{listErr: errors.New("registry down")}
	adapter := New(svc, nil, nil)

	_, err := adapter.Tools(context.Background())
	assert.ErrorContains(t, err, "registry down")
}

func TestExecuteSuccess(t *testing.T) {
	svc := &fakeToolService{
		tools: demoTools(),
		invoke: func(name string, args map[string]any) (any, error) {
			return map[string]any{"echo": args["city"]}, nil
		},
	}
	adapter := New(svc, nil, nil)

	obs := adapter.Execute(context.Background(), ports.ToolCall{
		ID: "c1", Name: "weather", Arguments: map[string]any{"city": "Oslo"},
	})
	assert.False(t, obs.Failed())
	assert.Equal(t, "c1", obs.ToolCallID)
	assert.Equal(t, "weather", obs.ToolName)
	assert.NotNil(t, obs.Result)
}

func TestExecuteFailureBecomesObservation(t *testing.T) {
	svc := &fakeToolService{
		invoke: func(string, map[string]any) (any, error) {
			return nil, errors.New("boom")
		},
	}
	adapter := New(svc, nil, nil)

	obs := adapter.Execute(context.Background(), ports.ToolCall{ID: "c2", Name: "weather"})
	assert.True(t, obs.Failed())
	assert.Equal(t, "boom", obs.Err)
	assert.Nil(t, obs.Result)
}

func TestObservationNeverBothEmpty(t *testing.T) {
	// A tool legitimately returning nil still yields a populated result side.
	obs := ports.NewObservation(ports.ToolCall{ID: "c3", Name: "noop"}, nil)
	assert.False(t, obs.Failed())
	assert.NotNil(t, obs.Result)

	obs = ports.NewErrorObservation(ports.ToolCall{ID: "c4", Name: "noop"}, nil)
	assert.True(t, obs.Failed())
}
